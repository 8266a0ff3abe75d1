package release

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/internal/github"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/pkg/models"
)

func artifactZip(t *testing.T) []byte {
	t.Helper()
	var tgz bytes.Buffer
	gz := gzip.NewWriter(&tgz)
	tw := tar.NewWriter(gz)
	body := []byte(`{"name":"react","version":"0.0.0-experimental"}`)
	tw.WriteHeader(&tar.Header{Name: "build/oss-experimental/react/package.json", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg})
	tw.Write(body)
	tw.Close()
	gz.Close()

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	w, _ := zw.Create("build.tgz")
	w.Write(tgz.Bytes())
	zw.Close()
	return out.Bytes()
}

// fakeGitHub serves the run, artifact and download endpoints used by a
// staging run. statuses is consumed one entry per run listing.
func fakeGitHub(t *testing.T, statuses []string, downloads *int) *httptest.Server {
	t.Helper()
	payload := artifactZip(t)
	var srv *httptest.Server
	polls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/facebook/react/actions/workflows/runtime_build_and_test.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		status := statuses[min(polls, len(statuses)-1)]
		polls++
		conclusion := ""
		if status == "completed" {
			conclusion = "success"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"workflow_runs": []map[string]any{{
				"id": 555, "status": status, "conclusion": conclusion,
				"head_sha": r.URL.Query().Get("head_sha"), "head_branch": "main",
			}},
		})
	})
	mux.HandleFunc("/repos/facebook/react/actions/runs/555/artifacts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"artifacts": []map[string]any{{
				"id": 77, "name": "artifacts_combined", "size_in_bytes": len(payload),
				"archive_download_url": srv.URL + "/repos/facebook/react/actions/artifacts/77/zip",
			}},
		})
	})
	mux.HandleFunc("/repos/facebook/react/actions/artifacts/77/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/storage/77.zip?sig=abc", http.StatusFound)
	})
	mux.HandleFunc("/storage/77.zip", func(w http.ResponseWriter, r *http.Request) {
		*downloads++
		w.Write(payload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(apiURL, workDir string) *config.Config {
	cfg := config.Default()
	cfg.Repository = "facebook/react"
	cfg.Channel = string(models.ChannelExperimental)
	cfg.WorkDir = workDir
	cfg.APIURL = apiURL
	cfg.Token = "test-token"
	cfg.Poll.Interval = time.Millisecond
	cfg.Publish.Git.Enabled = false
	return cfg
}

func TestFromConfigRequiresToken(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/", t.TempDir())
	cfg.Token = ""

	if _, err := FromConfig(cfg, Deps{}, logging.Discard()); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFromConfigSelectsCollaborators(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/", t.TempDir())
	cfg.Publish.Git.Enabled = true
	cfg.Publish.Git.Exclude = []string{"secrets.yaml"}

	o, err := FromConfig(cfg, Deps{}, logging.Discard())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := o.Heads.(*git.RemoteHeads); !ok {
		t.Errorf("default head source should be git, got %T", o.Heads)
	}
	if len(o.Publishers) != 1 || o.Publishers[0].Name() != "git" {
		t.Errorf("publishers = %v", o.Publishers)
	} else if gp := o.Publishers[0].(*git.Publisher); len(gp.Exclude) != 1 || gp.Exclude[0] != "secrets.yaml" {
		t.Errorf("git excludes = %v", gp.Exclude)
	}

	cfg.HeadSource = config.HeadSourceGraphQL
	o, err = FromConfig(cfg, Deps{NoPush: true}, logging.Discard())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := o.Heads.(*github.HeadResolver); !ok {
		t.Errorf("graphql head source should use the GitHub resolver, got %T", o.Heads)
	}
	if len(o.Publishers) != 0 {
		t.Errorf("--no-push should drop the git publisher, got %d publishers", len(o.Publishers))
	}
}

func TestEndToEndStaging(t *testing.T) {
	var downloads int
	srv := fakeGitHub(t, []string{"queued", "in_progress", "completed"}, &downloads)
	work := t.TempDir()
	cfg := testConfig(srv.URL, work)

	o, err := FromConfig(cfg, Deps{Client: []github.Option{github.WithHTTPClient(srv.Client())}}, logging.Discard())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	opts := Options{
		Repository:   cfg.Repository,
		Branch:       cfg.Branch,
		Channel:      models.ChannelExperimental,
		ArtifactName: cfg.Artifact,
		Commit:       head,
	}

	report, err := o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped || report.Run.ID != 555 || report.Artifact.ID != 77 {
		t.Errorf("report = %+v", report)
	}
	pkg := filepath.Join(work, head.String(), "node_modules", "react", "package.json")
	if _, err := os.Stat(pkg); err != nil {
		t.Fatalf("staged package missing: %v", err)
	}

	report, err = o.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !report.Skipped {
		t.Error("second run should be skipped")
	}
	if downloads != 1 {
		t.Errorf("downloads = %d, want 1", downloads)
	}
}

func TestEndToEndTimeoutDoesNotDownload(t *testing.T) {
	var downloads int
	srv := fakeGitHub(t, []string{"queued"}, &downloads)
	cfg := testConfig(srv.URL, t.TempDir())
	cfg.Poll.MaxRetries = 3

	o, err := FromConfig(cfg, Deps{Client: []github.Option{github.WithHTTPClient(srv.Client())}}, logging.Discard())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	_, err = o.Run(context.Background(), Options{
		Repository:   cfg.Repository,
		Branch:       cfg.Branch,
		Channel:      models.ChannelExperimental,
		ArtifactName: cfg.Artifact,
		Commit:       head,
	})
	if !errors.Is(err, apperr.ErrTimeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if downloads != 0 {
		t.Errorf("downloads = %d, want 0", downloads)
	}
}
