// Package poll waits for a workflow run to finish.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/pkg/models"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultMaxRetries = 20
)

// Resolver looks up the workflow run for a commit
type Resolver interface {
	ResolveRun(ctx context.Context, commit models.CommitRef) (*models.WorkflowRun, error)
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller re-resolves a run on a fixed interval until it reaches a terminal
// state or MaxRetries non-terminal observations have been made.
type Poller struct {
	Resolver   Resolver
	Interval   time.Duration
	MaxRetries int
	Sleep      SleepFunc
	Logger     *slog.Logger
}

func New(resolver Resolver, logger *slog.Logger) *Poller {
	return &Poller{
		Resolver:   resolver,
		Interval:   DefaultInterval,
		MaxRetries: DefaultMaxRetries,
		Sleep:      Sleep,
		Logger:     logger,
	}
}

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait returns the run for commit once it completed successfully.
func (p *Poller) Wait(ctx context.Context, commit models.CommitRef) (*models.WorkflowRun, error) {
	logger := logging.Ensure(p.Logger).With("component", "poller", "commit", commit.Short())
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var last *models.WorkflowRun
	for retries := 0; ; {
		run, err := p.Resolver.ResolveRun(ctx, commit)
		if err != nil {
			return nil, err
		}
		last = run

		status, ok := run.StatusString()
		switch {
		case !ok:
			logger.Warn("run status is not a string, retrying", "run", run.ID, "status", string(run.Status))
		case status == models.StatusCompleted:
			if run.Conclusion != models.ConclusionSuccess {
				return nil, apperr.RemoteFailure("run %d for commit %s finished with conclusion %q", run.ID, commit.Short(), run.Conclusion)
			}
			logger.Info("run completed successfully", "run", run.ID, "url", run.HTMLURL)
			return run, nil
		case isPending(status):
			logger.Info("run not finished yet", "run", run.ID, "status", status, "attempt", retries+1, "max", maxRetries)
		default:
			return nil, apperr.UnexpectedStatus("run %d has unrecognized status %q", run.ID, status)
		}

		retries++
		if retries >= maxRetries {
			return nil, apperr.Timeout("run for commit %s did not complete after %d polls (last observed: %s)", commit.Short(), retries, describe(last))
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func isPending(status string) bool {
	switch status {
	case models.StatusQueued, models.StatusInProgress, models.StatusWaiting:
		return true
	}
	return false
}

func describe(run *models.WorkflowRun) string {
	if run == nil {
		return "none observed"
	}
	status, ok := run.StatusString()
	if !ok {
		status = string(run.Status)
	}
	return fmt.Sprintf("run %d status=%s conclusion=%q", run.ID, status, run.Conclusion)
}
