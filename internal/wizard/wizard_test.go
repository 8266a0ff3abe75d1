package wizard

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
)

func TestNewPrefillsFromDefaults(t *testing.T) {
	d := config.Default()
	d.Repository = "facebook/react"

	w := New(d, nil)
	if w.answers.Repository != "facebook/react" {
		t.Errorf("repository = %q", w.answers.Repository)
	}
	if w.answers.Interval != "30s" || w.answers.MaxRetries != "20" {
		t.Errorf("poll answers = %q/%q", w.answers.Interval, w.answers.MaxRetries)
	}
	if !w.answers.Publish || w.answers.PushBranch != "main" {
		t.Errorf("publish answers = %v/%q", w.answers.Publish, w.answers.PushBranch)
	}
}

func TestBuildConfig(t *testing.T) {
	w := New(nil, []string{"ci.yml"})
	w.answers.Repository = " facebook/react "
	w.answers.Workflow = "ci.yml"
	w.answers.Channel = "Experimental"
	w.answers.Interval = "1m"
	w.answers.MaxRetries = "5"
	w.answers.Publish = false

	cfg, err := w.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Repository != "facebook/react" || cfg.Workflow != "ci.yml" || cfg.Channel != "experimental" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Poll.Interval != time.Minute || cfg.Poll.MaxRetries != 5 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Publish.Git.Enabled {
		t.Errorf("git publishing should be disabled")
	}
	if cfg.Artifact != config.DefaultArtifact {
		t.Errorf("artifact default lost: %q", cfg.Artifact)
	}
}

func TestBuildConfigInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*answers)
	}{
		{"missing repository", func(a *answers) { a.Repository = "" }},
		{"bad interval", func(a *answers) { a.Interval = "soon" }},
		{"bad retries", func(a *answers) { a.MaxRetries = "many" }},
		{"unknown channel", func(a *answers) { a.Channel = "nightly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(nil, nil)
			w.answers.Repository = "facebook/react"
			tt.modify(&w.answers)
			if _, err := w.buildConfig(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestBuildConfigKindIsConfiguration(t *testing.T) {
	w := New(nil, nil)
	w.answers.Repository = "not-a-repo"
	_, err := w.buildConfig()
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWorkflowOptions(t *testing.T) {
	opts := workflowOptions([]string{"a.yml", "b.yml"}, "custom.yml")
	var got []string
	for _, o := range opts {
		got = append(got, o.Value)
	}
	want := []string{"custom.yml", "a.yml", "b.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("options = %v, want %v", got, want)
	}

	if opts := workflowOptions([]string{"a.yml"}, "a.yml"); len(opts) != 1 {
		t.Errorf("current workflow duplicated: %d options", len(opts))
	}
}

func TestValidators(t *testing.T) {
	if validateInterval("30s") != nil || validateInterval("-1s") == nil || validateInterval("x") == nil {
		t.Error("validateInterval")
	}
	if validateRetries("3") != nil || validateRetries("0") == nil || validateRetries("x") == nil {
		t.Error("validateRetries")
	}
	if required("artifact")(" ") == nil {
		t.Error("required should reject blank input")
	}
}

func TestDiscoverWorkflows(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"test.yml", "build.yaml", "README.md", ".draft.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("on: push"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.yml"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := DiscoverWorkflows(dir)
	if err != nil {
		t.Fatalf("DiscoverWorkflows: %v", err)
	}
	want := []string{"build.yaml", "test.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := DiscoverWorkflows(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestRunPlain(t *testing.T) {
	var buf bytes.Buffer
	got, err := runPlain(&buf, "Fetching workflows", func() ([]string, error) {
		return []string{"ci.yml"}, nil
	})
	if err != nil || !reflect.DeepEqual(got, []string{"ci.yml"}) {
		t.Fatalf("runPlain = %v, %v", got, err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Fetching workflows...")) || !bytes.Contains(buf.Bytes(), []byte("✓ Fetching workflows")) {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	boom := errors.New("boom")
	if _, err := runPlain(&buf, "Fetching workflows", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("failed: boom")) {
		t.Errorf("failure not reported: %q", buf.String())
	}
}

func TestIsTTY(t *testing.T) {
	result := IsTTY()
	t.Logf("IsTTY returned: %v", result)
}
