package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/internal/paths"
	"github.com/Cloudsky01/relstage/internal/release"
	"github.com/Cloudsky01/relstage/internal/state"
	"github.com/Cloudsky01/relstage/internal/wizard"
	"github.com/Cloudsky01/relstage/pkg/models"
)

// app carries what every command shares
type app struct {
	levelVar *slog.LevelVar
	logger   *slog.Logger

	configPath string
	logLevel   string
	logFormat  string

	// interactive reports whether prompts can be shown
	interactive func() bool
}

func newApp(levelVar *slog.LevelVar) *app {
	if levelVar == nil {
		levelVar = new(slog.LevelVar)
	}
	return &app{
		levelVar:    levelVar,
		logger:      logging.Discard(),
		interactive: wizard.IsTTY,
	}
}

func newRootCommand(a *app) *cobra.Command {
	var (
		commitRef string
		noPush    bool
	)

	root := &cobra.Command{
		Use:   "relstage",
		Short: "Stage GitHub Actions build artifacts into commit directories",
		Long: `relstage waits for the workflow run of a branch head commit, downloads its
combined build artifact and stages it into a <commit>/ directory of the work
directory, with node_modules populated from the selected release channel.
The result is committed and pushed.

Requirements:
  - A GitHub token in GITHUB_TOKEN or RELSTAGE_GITHUB_TOKEN
  - git, when pushing or resolving heads with ls-remote

Get started:
  relstage init                       # Create a configuration file
  relstage --repo owner/repo          # Stage the head of main
  relstage watch --every 10m          # Keep staging new commits`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStage(cmd, commitRef, noPush)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (default: .relstage.yaml, then the user config)")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log verbosity (debug, info, warning, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")
	addConfigFlags(pf)

	root.Flags().StringVar(&commitRef, "commit", "", "Stage this commit instead of the branch head")
	root.Flags().BoolVar(&noPush, "no-push", false, "Stage without committing and pushing")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setupLogging(cmd.ErrOrStderr())
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperr.Configuration("%v", err)
	})
	root.SetVersionTemplate(fmt.Sprintf("{{printf \"relstage %%s (commit %s, built %s)\\n\" .Version}}", commit, date))

	root.AddCommand(
		newWatchCommand(a),
		newStatusCommand(a),
		newInitCommand(a),
		newConfigCommand(a),
	)
	return root
}

// addConfigFlags declares the flags config.Load binds to config keys
func addConfigFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringP("repo", "r", "", "Repository in OWNER/REPO format (defaults to the work directory's origin)")
	fs.StringP("branch", "b", d.Branch, "Branch whose head commit is staged")
	fs.String("workflow", d.Workflow, "Workflow file that builds the artifact")
	fs.String("artifact", d.Artifact, "Name of the combined build artifact")
	fs.String("channel", d.Channel, "Release channel: "+channelList())
	fs.String("work-dir", d.WorkDir, "Directory receiving <commit>/ directories")
	fs.String("head-source", d.HeadSource, "Head commit source (git, graphql)")
	fs.String("api-url", d.APIURL, "GitHub API base URL")
	fs.Duration("poll-interval", d.Poll.Interval, "Wait between workflow run checks")
	fs.Int("max-retries", d.Poll.MaxRetries, "Workflow run checks before giving up")
}

func channelList() string {
	return strings.Join(models.ChannelNames(), ", ")
}

func (a *app) setupLogging(w io.Writer) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return apperr.Configuration("%v", err)
	}
	format, err := logging.ParseFormat(a.logFormat)
	if err != nil {
		return apperr.Configuration("%v", err)
	}
	a.levelVar.Set(level)
	a.logger = logging.New(format, w, a.levelVar).With("invocation", uuid.NewString())
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) paths() (*paths.Paths, error) {
	var (
		p   *paths.Paths
		err error
	)
	if wd, werr := os.Getwd(); werr == nil {
		p, err = paths.NewWithProject(wd)
	} else {
		p, err = paths.New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize paths: %w", err)
	}
	p.Logger = a.logger
	return p, nil
}

// loadConfig resolves and validates the effective configuration. A missing
// repository is detected from the work directory's origin remote.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper, *paths.Paths, error) {
	p, err := a.paths()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, v, err := config.Load(config.Options{Path: a.configPath, Paths: p, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.Repository == "" {
		if repo, err := git.DetectRepository(cfg.WorkDir, git.DefaultRemote); err == nil {
			a.logger.Debug("detected repository", "repository", repo, "dir", cfg.WorkDir)
			cfg.Repository = repo
		}
	}
	if cfg.Repository == "" && v.ConfigFileUsed() == "" {
		handleMissingConfig(cmd.ErrOrStderr(), p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return cfg, v, p, nil
}

func (a *app) orchestrator(cfg *config.Config, p *paths.Paths, noPush bool) (*release.Orchestrator, error) {
	return release.FromConfig(cfg, release.Deps{
		Recorder: &state.Store{Paths: p},
		NoPush:   noPush,
	}, a.logger)
}

func releaseOptions(cfg *config.Config, commitRef string) (release.Options, error) {
	channel, err := cfg.ChannelValue()
	if err != nil {
		return release.Options{}, err
	}
	if commitRef != "" {
		if err := git.ValidateCommit(commitRef); err != nil {
			return release.Options{}, err
		}
	}
	return release.Options{
		Repository:   cfg.Repository,
		Branch:       cfg.Branch,
		Channel:      channel,
		ArtifactName: cfg.Artifact,
		Commit:       models.CommitRef(commitRef),
	}, nil
}

func (a *app) runStage(cmd *cobra.Command, commitRef string, noPush bool) error {
	cfg, _, p, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := releaseOptions(cfg, commitRef)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(cfg, p, noPush)
	if err != nil {
		return err
	}

	report, err := orch.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}
