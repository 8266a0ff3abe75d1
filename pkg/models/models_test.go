package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Cloudsky01/relstage/internal/apperr"
)

func TestChannelSourceDir(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"stable", "oss-stable"},
		{"experimental", "oss-experimental"},
		{"rc", "oss-stable-rc"},
		{"latest", "oss-stable-semver"},
		{" Experimental ", "oss-experimental"},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			c, err := ParseChannel(tt.channel)
			if err != nil {
				t.Fatalf("ParseChannel(%q) error: %v", tt.channel, err)
			}
			dir, err := c.SourceDir()
			if err != nil {
				t.Fatalf("SourceDir() error: %v", err)
			}
			if dir != tt.want {
				t.Errorf("SourceDir() = %q, want %q", dir, tt.want)
			}
		})
	}
}

func TestUnknownChannel(t *testing.T) {
	for _, name := range []string{"", "canary", "nightly"} {
		if _, err := ParseChannel(name); !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("ParseChannel(%q) error = %v, want configuration error", name, err)
		}
		if _, err := Channel(name).SourceDir(); !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("Channel(%q).SourceDir() error = %v, want configuration error", name, err)
		}
	}
}

func TestWorkflowRunStatusString(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{"string", `{"status":"in_progress"}`, "in_progress", true},
		{"unknown string", `{"status":"pending"}`, "pending", true},
		{"number", `{"status":3}`, "", false},
		{"null", `{"status":null}`, "", false},
		{"missing", `{}`, "", false},
		{"object", `{"status":{"phase":"queued"}}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var run WorkflowRun
			if err := json.Unmarshal([]byte(tt.body), &run); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, ok := run.StatusString()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("StatusString() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCommitRefShort(t *testing.T) {
	c := CommitRef("0123456789abcdef0123")
	if c.Short() != "0123456789ab" {
		t.Errorf("Short() = %q", c.Short())
	}
	if CommitRef("abc").Short() != "abc" {
		t.Error("short refs should be returned unchanged")
	}
}
