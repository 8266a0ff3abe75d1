package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/relstage/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect relstage configuration",
		Long: `Inspect relstage configuration files.

Configuration Locations:
  User config:     ~/.config/relstage/config.yaml
  Project config:  ./.relstage.yaml (wins over the user config)
  Env files:       ./.env, ./relstage.env, ~/.config/relstage/relstage.env

Configuration Precedence (lowest to highest):
  1. Defaults
  2. Config file
  3. Environment variables (RELSTAGE_*)
  4. CLI flags`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file locations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runConfigPath(cmd)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Display the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runConfigShow(cmd)
			},
		},
	)
	return cmd
}

func (a *app) runConfigPath(cmd *cobra.Command) error {
	p, err := a.paths()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, headerStyle.Render("Configuration File Locations"))
	fmt.Fprintln(w, dividerStyle.Render("════════════════════════════════════════════════════════════"))
	fmt.Fprintf(w, "User Config:        %s %s\n", p.UserConfigFile(), existsIndicator(fileExists(p.UserConfigFile())))
	if project := p.ProjectConfigFile(); project != "" {
		fmt.Fprintf(w, "Project Config:     %s %s\n", project, existsIndicator(fileExists(project)))
	}
	if a.configPath != "" {
		fmt.Fprintf(w, "Explicit Config:    %s %s\n", a.configPath, existsIndicator(fileExists(a.configPath)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "State Directory:    %s\n", p.UserStateDir)
	fmt.Fprintf(w, "Cache Directory:    %s\n", p.UserCacheDir)

	if files := p.EnvFiles(); len(files) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Env Files:")
		for _, f := range files {
			fmt.Fprintf(w, "  • %s\n", f)
		}
	}
	return nil
}

func (a *app) runConfigShow(cmd *cobra.Command) error {
	p, err := a.paths()
	if err != nil {
		return err
	}
	cfg, v, err := config.Load(config.Options{Path: a.configPath, Paths: p, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	source := "defaults"
	if used := v.ConfigFileUsed(); used != "" {
		source = fmt.Sprintf("%s (%s)", used, p.GetConfigSource(used))
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(w, headerStyle.Render("Effective Configuration"))
	fmt.Fprintln(w, dividerStyle.Render("════════════════════════════════════════════════════════════"))
	fmt.Fprintf(w, "Source: %s\n\n", source)
	fmt.Fprint(w, string(data))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "token: %s\n", presence(cfg.Token))
	if cfg.Publish.ObjectStore.Enabled() {
		fmt.Fprintf(w, "object store secret key: %s\n", presence(cfg.Publish.ObjectStore.SecretKey))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render("⚠ "+err.Error()))
	}
	return nil
}

func presence(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func existsIndicator(exists bool) string {
	if exists {
		return "✓"
	}
	return "✗"
}
