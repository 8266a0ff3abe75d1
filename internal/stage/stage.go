// Package stage turns a downloaded build artifact into a commit-named
// directory ready for publishing.
//
// Layout under the work directory:
//
//	<work>/.relstage/artifact.zip   downloaded archive (transient)
//	<work>/.relstage/outer/         first extraction layer (transient)
//	<work>/.relstage/tree/          nested archive contents (transient)
//	<work>/<commit>/                staged build, node_modules copied from the channel dir
//
// Staging is not safe to run concurrently against the same work directory.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/executor"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/pkg/models"
)

const (
	TransientDir     = ".relstage"
	CompletionMarker = ".relstage-staged"

	downloadName = "artifact.zip"
	outerDir     = "outer"
	treeDir      = "tree"
)

var (
	ErrNoNestedArchive       = errors.New("stage: artifact contains no nested archive")
	ErrMultipleNestedArchive = errors.New("stage: artifact contains more than one nested archive")
	ErrMissingChannelDir     = errors.New("stage: build has no directory for channel")
)

// DownloadSource resolves where an artifact's archive can be fetched from
type DownloadSource interface {
	DownloadURL(ctx context.Context, a models.Artifact) (string, error)
}

type Request struct {
	Commit   models.CommitRef
	Channel  models.Channel
	RunID    int64
	Artifact models.Artifact
}

type Result struct {
	Commit  models.CommitRef
	Channel models.Channel
	Dir     string
	// Skipped is set when the commit directory already existed
	Skipped bool
	// Complete reports whether the directory carries the completion marker
	Complete bool
}

// Marker is written into every staged directory once it is fully populated
type Marker struct {
	Commit     string    `yaml:"commit"`
	Channel    string    `yaml:"channel"`
	SourceDir  string    `yaml:"sourceDir"`
	RunID      int64     `yaml:"runId"`
	ArtifactID int64     `yaml:"artifactId"`
	StagedAt   time.Time `yaml:"stagedAt"`
}

type Stager struct {
	Exec    executor.Executor
	Source  DownloadSource
	WorkDir string
	Logger  *slog.Logger
	Now     func() time.Time
}

// CommitDir is where commit ends up once staged
func (s *Stager) CommitDir(commit models.CommitRef) string {
	return filepath.Join(s.WorkDir, commit.String())
}

func (s *Stager) transient(parts ...string) string {
	return filepath.Join(append([]string{s.WorkDir, TransientDir}, parts...)...)
}

// Stage downloads and unpacks req.Artifact into the commit directory. An
// existing commit directory is left untouched and reported as skipped.
func (s *Stager) Stage(ctx context.Context, req Request) (*Result, error) {
	logger := logging.Ensure(s.Logger).With("component", "stager", "commit", req.Commit.Short(), "channel", string(req.Channel))

	sourceDir, err := req.Channel.SourceDir()
	if err != nil {
		return nil, err
	}
	if err := validateCommit(req.Commit); err != nil {
		return nil, err
	}

	dest := s.CommitDir(req.Commit)
	result := &Result{Commit: req.Commit, Channel: req.Channel, Dir: dest}

	exists, err := s.Exec.Exists(dest)
	if err != nil {
		return nil, err
	}
	if exists {
		complete, err := s.Exec.Exists(filepath.Join(dest, CompletionMarker))
		if err != nil {
			return nil, err
		}
		if !complete {
			logger.Warn("commit directory exists without completion marker, treating as staged", "dir", dest)
		} else {
			logger.Info("commit already staged, skipping", "dir", dest)
		}
		result.Skipped = true
		result.Complete = complete
		return result, nil
	}

	if err := s.Exec.RemoveAll(s.transient()); err != nil {
		return nil, err
	}

	url, err := s.Source.DownloadURL(ctx, req.Artifact)
	if err != nil {
		return nil, err
	}
	archive := s.transient(downloadName)
	logger.Info("downloading artifact", "artifact", req.Artifact.Name, "id", req.Artifact.ID, "bytes", req.Artifact.SizeInBytes)
	if err := s.Exec.Fetch(ctx, url, archive); err != nil {
		return nil, err
	}

	outer := s.transient(outerDir)
	if err := s.Exec.Extract(ctx, archive, outer); err != nil {
		return nil, err
	}
	nested, err := s.nestedArchive(outer)
	if err != nil {
		return nil, err
	}
	tree := s.transient(treeDir)
	if err := s.Exec.Extract(ctx, nested, tree); err != nil {
		return nil, err
	}
	root, err := s.buildRoot(tree, sourceDir)
	if err != nil {
		return nil, err
	}

	channelDir := filepath.Join(root, sourceDir)
	ok, err := s.Exec.Exists(channelDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Execution("stage "+req.Commit.Short(), fmt.Errorf("%w: %s", ErrMissingChannelDir, sourceDir))
	}
	logger.Info("copying channel build", "from", sourceDir, "to", models.DependencyRoot)
	if err := s.Exec.CopyDir(channelDir, filepath.Join(root, models.DependencyRoot)); err != nil {
		return nil, err
	}
	if err := s.writeMarker(root, req, sourceDir); err != nil {
		return nil, err
	}

	if err := s.Exec.Rename(root, dest); err != nil {
		return nil, err
	}
	if err := s.Exec.RemoveAll(s.transient()); err != nil {
		logger.Warn("failed to clean transient directory", "error", err)
	}

	logger.Info("staged build", "dir", dest)
	result.Complete = true
	return result, nil
}

// nestedArchive returns the single archive inside the outer extraction layer
func (s *Stager) nestedArchive(outer string) (string, error) {
	entries, err := s.Exec.ReadDir(outer)
	if err != nil {
		return "", err
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && executor.IsArchive(e.Name()) {
			found = append(found, e.Name())
		}
	}
	switch len(found) {
	case 0:
		return "", apperr.Execution("extract "+outer, ErrNoNestedArchive)
	case 1:
		return filepath.Join(outer, found[0]), nil
	default:
		return "", apperr.Execution("extract "+outer, fmt.Errorf("%w: %s", ErrMultipleNestedArchive, strings.Join(found, ", ")))
	}
}

// buildRoot finds the directory holding the channel builds. Archives of a
// build/ folder carry a single top-level directory which is unwrapped.
func (s *Stager) buildRoot(tree, sourceDir string) (string, error) {
	ok, err := s.Exec.Exists(filepath.Join(tree, sourceDir))
	if err != nil || ok {
		return tree, err
	}
	entries, err := s.Exec.ReadDir(tree)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(tree, entries[0].Name()), nil
	}
	return tree, nil
}

func (s *Stager) writeMarker(root string, req Request, sourceDir string) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	data, err := yaml.Marshal(Marker{
		Commit:     req.Commit.String(),
		Channel:    string(req.Channel),
		SourceDir:  sourceDir,
		RunID:      req.RunID,
		ArtifactID: req.Artifact.ID,
		StagedAt:   now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode completion marker: %w", err)
	}
	return s.Exec.WriteFile(filepath.Join(root, CompletionMarker), data)
}

// ReadMarker loads the completion marker of a staged directory
func ReadMarker(dir string) (*Marker, error) {
	path := filepath.Join(dir, CompletionMarker)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("no completion marker in %s", dir)
		}
		return nil, fmt.Errorf("failed to read completion marker: %w", err)
	}
	var m Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse completion marker: %w", err)
	}
	return &m, nil
}

func validateCommit(commit models.CommitRef) error {
	c := commit.String()
	if c == "" || c == "." || c == ".." || strings.ContainsAny(c, `/\`) || strings.HasPrefix(c, ".") {
		return apperr.Configuration("invalid commit reference %q", c)
	}
	return nil
}
