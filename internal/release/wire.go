package release

import (
	"log/slog"
	"path/filepath"

	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/executor"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/internal/github"
	"github.com/Cloudsky01/relstage/internal/objectstore"
	"github.com/Cloudsky01/relstage/internal/poll"
	"github.com/Cloudsky01/relstage/internal/stage"
)

// Deps lets callers replace the side-effecting pieces FromConfig builds
type Deps struct {
	Exec     executor.Executor
	Client   []github.Option
	Recorder Recorder
	// NoPush disables the git publisher regardless of config
	NoPush bool
}

// FromConfig assembles an orchestrator for a validated configuration. The
// token is checked first so a missing token fails before any network call.
func FromConfig(cfg *config.Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}

	exec := deps.Exec
	if exec == nil {
		exec = executor.NewLocal(logger)
	}

	clientOpts := append([]github.Option{github.WithBaseURL(cfg.APIURL)}, deps.Client...)
	client, err := github.NewClient(cfg.Repository, cfg.Token, clientOpts...)
	if err != nil {
		return nil, err
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	var heads HeadResolver
	switch cfg.HeadSource {
	case config.HeadSourceGraphQL:
		heads = client.Heads()
	default:
		heads = &git.RemoteHeads{Runner: exec, URL: cfg.CloneURL(), Dir: workDir}
	}

	poller := poll.New(client.Runs(cfg.Workflow, cfg.Branch), logger)
	poller.Interval = cfg.Poll.Interval
	poller.MaxRetries = cfg.Poll.MaxRetries

	var publishers []Publisher
	if cfg.Publish.Git.Enabled && !deps.NoPush {
		publishers = append(publishers, &git.Publisher{
			Runner:  exec,
			Dir:     workDir,
			Remote:  cfg.Publish.Git.Remote,
			Branch:  cfg.Publish.Git.Branch,
			Message: cfg.Publish.Git.Message,
			Exclude: cfg.Publish.Git.Exclude,
			Logger:  logger,
		})
	}
	if cfg.Publish.ObjectStore.Enabled() {
		p, err := objectstore.NewPublisher(cfg.Publish.ObjectStore, logger)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}

	return &Orchestrator{
		Heads:     heads,
		Runs:      poller,
		Artifacts: client,
		Stager: &stage.Stager{
			Exec:    exec,
			Source:  client,
			WorkDir: workDir,
			Logger:  logger,
		},
		Publishers: publishers,
		State:      deps.Recorder,
		Logger:     logger,
	}, nil
}
