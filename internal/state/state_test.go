package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cloudsky01/relstage/internal/paths"
)

func TestLoadNonExistent(t *testing.T) {
	h, err := Load("/nonexistent/path/state.yaml", "facebook/react")
	if err != nil {
		t.Fatalf("Load should not return error for non-existent file: %v", err)
	}
	if h.Repository != "facebook/react" {
		t.Errorf("Repository = %q", h.Repository)
	}
	if len(h.Entries) != 0 {
		t.Errorf("Expected empty history, got %v", h.Entries)
	}
}

func TestLoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("entries: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Load(path, "facebook/react")
	if err != nil {
		t.Fatalf("Load should recover from a corrupt file: %v", err)
	}
	if len(h.Entries) != 0 {
		t.Errorf("Expected empty history, got %v", h.Entries)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "facebook_react.state.yaml")
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	original := &History{Repository: "facebook/react"}
	original.Add(Entry{Commit: "abc1234", Channel: "stable", RunID: 9, ArtifactID: 11, Dir: "/w/abc1234", Outcome: OutcomePublished, At: at})

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path, "ignored/when-set")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Repository != "facebook/react" {
		t.Errorf("Repository = %q", loaded.Repository)
	}
	got, ok := loaded.Latest()
	if !ok {
		t.Fatal("expected an entry")
	}
	want := original.Entries[0]
	if !got.At.Equal(want.At) {
		t.Errorf("At = %v, want %v", got.At, want.At)
	}
	got.At, want.At = time.Time{}, time.Time{}
	if got != want {
		t.Errorf("entry = %+v, want %+v", got, want)
	}
}

func TestAddTrimsOldest(t *testing.T) {
	h := &History{}
	for i := range MaxEntries + 5 {
		h.Add(Entry{Commit: fmt.Sprintf("c%d", i)})
	}
	if len(h.Entries) != MaxEntries {
		t.Fatalf("len = %d, want %d", len(h.Entries), MaxEntries)
	}
	if h.Entries[0].Commit != "c5" {
		t.Errorf("oldest kept = %s, want c5", h.Entries[0].Commit)
	}
}

func TestFind(t *testing.T) {
	h := &History{}
	h.Add(Entry{Commit: "a", Outcome: OutcomeStaged})
	h.Add(Entry{Commit: "b", Outcome: OutcomeStaged})
	h.Add(Entry{Commit: "a", Outcome: OutcomeSkipped})

	e, ok := h.Find("a")
	if !ok || e.Outcome != OutcomeSkipped {
		t.Errorf("Find(a) = %+v, %v; want the most recent entry", e, ok)
	}
	if _, ok := h.Find("missing"); ok {
		t.Error("Find should miss unknown commits")
	}
	if _, ok := (&History{}).Latest(); ok {
		t.Error("Latest on empty history should report false")
	}
}

func TestStoreRecord(t *testing.T) {
	tmp := t.TempDir()
	store := &Store{Paths: &paths.Paths{
		UserConfigDir: filepath.Join(tmp, "config"),
		UserStateDir:  filepath.Join(tmp, "state"),
		UserCacheDir:  filepath.Join(tmp, "cache"),
	}}

	for _, c := range []string{"one", "two"} {
		if err := store.Record("facebook/react", Entry{Commit: c, Outcome: OutcomeStaged}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	h, err := store.Load("facebook/react")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.Entries) != 2 || h.Entries[1].Commit != "two" {
		t.Errorf("entries = %+v", h.Entries)
	}
	if _, err := os.Stat(filepath.Join(tmp, "state", "facebook_react.state.yaml")); err != nil {
		t.Errorf("state file not written: %v", err)
	}

	if err := store.Record("not-a-repo", Entry{}); err == nil {
		t.Error("Record should reject a malformed repository")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := Clear(path); err != nil {
		t.Errorf("Clear on missing file: %v", err)
	}
	os.WriteFile(path, []byte("repository: x\n"), 0o644)
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
}
