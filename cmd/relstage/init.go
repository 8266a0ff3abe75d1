package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/internal/github"
	"github.com/Cloudsky01/relstage/internal/paths"
	"github.com/Cloudsky01/relstage/internal/wizard"
)

const localWorkflowDir = ".github/workflows"

func newInitCommand(a *app) *cobra.Command {
	var (
		force bool
		user  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Long: `Create a configuration file interactively. Values given as flags or
RELSTAGE_* variables prefill the form. Without a terminal the prefilled
configuration is validated and written as is.

The file goes to --config when set, the user config with --user, and
.relstage.yaml in the current directory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.paths()
			if err != nil {
				return err
			}
			target := initTarget(p, a.configPath, user)
			if _, err := os.Stat(target); err == nil && !force {
				overwrite := false
				if a.interactive() {
					if err := wizard.AskConfirm("Configuration exists", "Overwrite "+target+"?", &overwrite); err != nil {
						return err
					}
				}
				if !overwrite {
					return apperr.Configuration("configuration file %s already exists, use --force to overwrite", target)
				}
			}

			defaults, _, err := config.Load(config.Options{Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			if defaults.Repository == "" {
				if repo, err := git.DetectRepository(".", git.DefaultRemote); err == nil {
					defaults.Repository = repo
				}
			}

			var cfg *config.Config
			if a.interactive() {
				workflows := a.discoverWorkflows(cmd.Context(), defaults)
				cfg, err = wizard.New(defaults, workflows).Run()
				if err != nil {
					return err
				}
			} else {
				if err := defaults.Validate(); err != nil {
					return err
				}
				cfg = defaults
			}

			if err := a.checkRepository(cmd.Context(), cfg); err != nil {
				return err
			}

			if err := cfg.Save(target); err != nil {
				return apperr.Execution("save "+target, err)
			}
			printSuccessSummary(cmd.OutOrStdout(), target, cfg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user configuration instead of .relstage.yaml")
	return cmd
}

func initTarget(p *paths.Paths, explicit string, user bool) string {
	switch {
	case explicit != "":
		return explicit
	case user || p.ProjectDir == "":
		return p.UserConfigFile()
	default:
		return p.ProjectConfigFile()
	}
}

// checkRepository rejects a repository the token cannot see. Without a token
// or a reachable API the check is skipped.
func (a *app) checkRepository(ctx context.Context, cfg *config.Config) error {
	if cfg.RequireToken() != nil {
		return nil
	}
	client, err := github.NewClient(cfg.Repository, cfg.Token, github.WithBaseURL(cfg.APIURL))
	if err != nil {
		return err
	}
	exists, err := wizard.RunWithSpinner(ctx, "Checking "+cfg.Repository, func() (bool, error) {
		return client.RepositoryExists(ctx)
	})
	if err != nil {
		a.logger.Warn("could not verify repository", "repository", cfg.Repository, "error", err)
		return nil
	}
	if !exists {
		return apperr.Configuration("repository %s not found or not visible with the configured token", cfg.Repository)
	}
	return nil
}

// discoverWorkflows lists the repository's workflows through the API when a
// token is available and falls back to the local workflow directory.
func (a *app) discoverWorkflows(ctx context.Context, cfg *config.Config) []string {
	if cfg.Repository != "" && cfg.RequireToken() == nil {
		client, err := github.NewClient(cfg.Repository, cfg.Token, github.WithBaseURL(cfg.APIURL))
		if err == nil {
			workflows, err := wizard.RunWithSpinner(ctx, "Fetching workflows from "+cfg.Repository, func() ([]string, error) {
				return client.GetWorkflows(ctx)
			})
			if err == nil && len(workflows) > 0 {
				return workflows
			}
			a.logger.Debug("remote workflow listing unavailable", "error", err)
		}
	}

	workflows, err := wizard.DiscoverWorkflows(filepath.FromSlash(localWorkflowDir))
	if err != nil {
		a.logger.Debug("no local workflows", "dir", localWorkflowDir, "error", err)
		return nil
	}
	return workflows
}
