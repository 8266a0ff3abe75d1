// Package release drives one staging invocation end to end: resolve the
// branch head, wait for its build, fetch the artifact, stage it and publish.
package release

import (
	"context"
	"log/slog"
	"time"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/internal/stage"
	"github.com/Cloudsky01/relstage/internal/state"
	"github.com/Cloudsky01/relstage/pkg/models"
)

// HeadResolver returns the current head commit of a branch
type HeadResolver interface {
	HeadCommit(ctx context.Context, branch string) (models.CommitRef, error)
}

// RunWaiter blocks until the run for a commit succeeded
type RunWaiter interface {
	Wait(ctx context.Context, commit models.CommitRef) (*models.WorkflowRun, error)
}

// ArtifactLocator finds a named artifact of a run
type ArtifactLocator interface {
	FindArtifact(ctx context.Context, runID int64, name string) (*models.Artifact, error)
}

type Stager interface {
	Stage(ctx context.Context, req stage.Request) (*stage.Result, error)
}

// Publisher ships a freshly staged directory somewhere
type Publisher interface {
	Name() string
	Publish(ctx context.Context, res *stage.Result) error
}

// Recorder keeps the staging history
type Recorder interface {
	Record(repository string, e state.Entry) error
}

type Orchestrator struct {
	Heads      HeadResolver
	Runs       RunWaiter
	Artifacts  ArtifactLocator
	Stager     Stager
	Publishers []Publisher
	State      Recorder
	Logger     *slog.Logger
	Now        func() time.Time
}

type Options struct {
	Repository   string
	Branch       string
	Channel      models.Channel
	ArtifactName string
	// Commit skips head resolution when set
	Commit models.CommitRef
}

// Report summarizes a finished invocation
type Report struct {
	Commit    models.CommitRef
	Channel   models.Channel
	Run       *models.WorkflowRun
	Artifact  *models.Artifact
	Dir       string
	Skipped   bool
	Published []string
	Duration  time.Duration
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run performs one invocation. Any failure aborts it with the typed error
// of the failing step.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	start := o.now()
	logger := logging.Ensure(o.Logger).With("component", "orchestrator", "repository", opts.Repository, "channel", string(opts.Channel))

	if _, err := opts.Channel.SourceDir(); err != nil {
		return nil, err
	}
	if opts.ArtifactName == "" {
		return nil, apperr.Configuration("no artifact name configured")
	}

	commit := opts.Commit
	if commit == "" {
		head, err := o.Heads.HeadCommit(ctx, opts.Branch)
		if err != nil {
			return nil, err
		}
		commit = head
		logger.Info("resolved branch head", "branch", opts.Branch, "commit", commit.Short())
	} else {
		logger.Info("using requested commit", "commit", commit.Short())
	}

	run, err := o.Runs.Wait(ctx, commit)
	if err != nil {
		return nil, err
	}

	artifact, err := o.Artifacts.FindArtifact(ctx, run.ID, opts.ArtifactName)
	if err != nil {
		return nil, err
	}
	logger.Info("found artifact", "run", run.ID, "artifact", artifact.Name, "id", artifact.ID)

	res, err := o.Stager.Stage(ctx, stage.Request{
		Commit:   commit,
		Channel:  opts.Channel,
		RunID:    run.ID,
		Artifact: *artifact,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Commit:   commit,
		Channel:  opts.Channel,
		Run:      run,
		Artifact: artifact,
		Dir:      res.Dir,
		Skipped:  res.Skipped,
	}

	// Publishers run for skipped directories too: an earlier invocation may
	// have staged the commit and then failed to push it.
	for _, p := range o.Publishers {
		logger.Info("publishing", "publisher", p.Name(), "skipped", res.Skipped)
		if err := p.Publish(ctx, res); err != nil {
			return nil, err
		}
		report.Published = append(report.Published, p.Name())
	}

	outcome := state.OutcomeStaged
	switch {
	case res.Skipped:
		outcome = state.OutcomeSkipped
	case len(report.Published) > 0:
		outcome = state.OutcomePublished
	}

	if o.State != nil {
		entry := state.Entry{
			Commit:     commit.String(),
			Channel:    string(opts.Channel),
			Branch:     opts.Branch,
			RunID:      run.ID,
			ArtifactID: artifact.ID,
			Dir:        res.Dir,
			Outcome:    outcome,
			At:         o.now().UTC(),
		}
		if err := o.State.Record(opts.Repository, entry); err != nil {
			logger.Warn("failed to record staging history", "error", err)
		}
	}

	report.Duration = o.now().Sub(start)
	return report, nil
}
