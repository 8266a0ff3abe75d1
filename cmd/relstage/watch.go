package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/config"
	"github.com/Cloudsky01/relstage/internal/poll"
)

const defaultWatchInterval = 5 * time.Minute

func newWatchCommand(a *app) *cobra.Command {
	var (
		every  time.Duration
		noPush bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stage new head commits on a timer",
		Long: `Run a staging invocation every --every interval until interrupted.

Failed invocations are logged and retried on the next tick, except for
configuration errors which stop the watch. Edits to the config file are
picked up between invocations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if every <= 0 {
				return apperr.Configuration("--every must be positive, got %s", every)
			}

			cfg, v, p, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			var mu sync.Mutex
			current := cfg
			if v.ConfigFileUsed() != "" {
				config.WatchConfig(v, a.logger, func(next *config.Config) {
					mu.Lock()
					defer mu.Unlock()
					if next.Repository == "" {
						next.Repository = current.Repository
					}
					current = next
				})
			}

			w := &watcher{
				every:  every,
				logger: a.logger.With("component", "watch"),
				sleep:  poll.Sleep,
				cycle: func(ctx context.Context) error {
					mu.Lock()
					cfg := current
					mu.Unlock()

					opts, err := releaseOptions(cfg, "")
					if err != nil {
						return err
					}
					orch, err := a.orchestrator(cfg, p, noPush)
					if err != nil {
						return err
					}
					report, err := orch.Run(ctx, opts)
					if err != nil {
						return err
					}
					printReport(cmd.OutOrStdout(), report)
					return nil
				},
			}
			return w.run(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&every, "every", defaultWatchInterval, "Interval between staging invocations")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Stage without committing and pushing")
	return cmd
}

// watcher runs cycle back-to-back, sleeping every in between
type watcher struct {
	every  time.Duration
	logger *slog.Logger
	sleep  poll.SleepFunc
	cycle  func(ctx context.Context) error
}

func (w *watcher) run(ctx context.Context) error {
	for n := 1; ; n++ {
		err := w.cycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case apperr.KindOf(err) == apperr.KindConfiguration:
			return err
		default:
			w.logger.Error("staging failed, retrying next cycle", "cycle", n, "kind", apperr.KindOf(err).String(), "error", err)
		}

		w.logger.Debug("waiting for next cycle", "cycle", n, "in", w.every)
		if err := w.sleep(ctx, w.every); err != nil {
			return err
		}
	}
}
