// Package state keeps a per-repository history of staged commits.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/relstage/internal/paths"
)

// MaxEntries bounds the history kept per repository
const MaxEntries = 50

// Outcome of one staging run
type Outcome string

const (
	OutcomeStaged    Outcome = "staged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomePublished Outcome = "published"
)

// Entry records one staging run
type Entry struct {
	Commit     string    `yaml:"commit"`
	Channel    string    `yaml:"channel"`
	Branch     string    `yaml:"branch,omitempty"`
	RunID      int64     `yaml:"runId,omitempty"`
	ArtifactID int64     `yaml:"artifactId,omitempty"`
	Dir        string    `yaml:"dir"`
	Outcome    Outcome   `yaml:"outcome"`
	At         time.Time `yaml:"at"`
}

// History is the persisted state for one repository
type History struct {
	Repository string  `yaml:"repository"`
	Entries    []Entry `yaml:"entries"`
}

func defaultHistory(repository string) *History {
	return &History{Repository: repository, Entries: []Entry{}}
}

// Load reads a history file. A missing or corrupt file yields an empty history.
func Load(path, repository string) (*History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultHistory(repository), nil
		}
		return nil, err
	}

	var h History
	if err := yaml.Unmarshal(data, &h); err != nil {
		return defaultHistory(repository), nil
	}
	if h.Repository == "" {
		h.Repository = repository
	}
	if h.Entries == nil {
		h.Entries = []Entry{}
	}
	return &h, nil
}

// Save writes the history, creating the parent directory
func (h *History) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Add appends e, dropping the oldest entries beyond MaxEntries
func (h *History) Add(e Entry) {
	h.Entries = append(h.Entries, e)
	if over := len(h.Entries) - MaxEntries; over > 0 {
		h.Entries = append([]Entry(nil), h.Entries[over:]...)
	}
}

// Latest returns the most recent entry
func (h *History) Latest() (Entry, bool) {
	if len(h.Entries) == 0 {
		return Entry{}, false
	}
	return h.Entries[len(h.Entries)-1], true
}

// Find returns the most recent entry for commit
func (h *History) Find(commit string) (Entry, bool) {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if h.Entries[i].Commit == commit {
			return h.Entries[i], true
		}
	}
	return Entry{}, false
}

// Clear removes a state file
func Clear(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Store resolves state files through the user's state directory
type Store struct {
	Paths *paths.Paths
}

func (s *Store) path(repository string) (string, error) {
	path, err := s.Paths.StateFileFor(repository)
	if err != nil {
		return "", err
	}
	if err := s.Paths.EnsureDirs(); err != nil {
		return "", fmt.Errorf("failed to ensure state directory: %w", err)
	}
	return path, nil
}

func (s *Store) Load(repository string) (*History, error) {
	path, err := s.path(repository)
	if err != nil {
		return nil, err
	}
	return Load(path, repository)
}

// Record appends e to the repository's history
func (s *Store) Record(repository string, e Entry) error {
	path, err := s.path(repository)
	if err != nil {
		return err
	}
	h, err := Load(path, repository)
	if err != nil {
		return err
	}
	h.Add(e)
	return h.Save(path)
}
