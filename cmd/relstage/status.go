package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/relstage/internal/state"
)

func newStatusCommand(a *app) *cobra.Command {
	var (
		limit        int
		clearHistory bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recently staged commits",
		Long:  `Show the staging history recorded for the configured repository.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, p, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			path, err := p.StateFileFor(cfg.Repository)
			if err != nil {
				return err
			}

			if clearHistory {
				if err := state.Clear(path); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ History cleared for "+cfg.Repository))
				return nil
			}

			h, err := state.Load(path, cfg.Repository)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			printHistory(cmd.OutOrStdout(), h, limit)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Number of entries to show")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Remove the recorded history")
	return cmd
}
