package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/indexer"
	"github.com/dshills/ptags/internal/report"
	"github.com/dshills/ptags/internal/watcher"
)

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Regenerate the tag file whenever the tree changes",
		Long: `Generate the tag file, then watch DIR and regenerate it after every burst
of changes once the tree has been quiet for watch.debounce_ms. Every
regeneration is a complete run; nothing is reused between runs.

Changes under .git and writes to the tag file itself are ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(args)
			if err != nil {
				return err
			}
			env, err := a.open(cfg, cfg.History.Enabled)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			r := report.New(cmd.OutOrStdout())
			regenerate := func(ctx context.Context, changed []string) {
				log := env.logger.With("changed", len(changed))
				summary, err := env.indexer.TryRun(ctx, cfg)
				switch {
				case errors.Is(err, indexer.ErrRunInProgress):
					log.Debug("regeneration skipped; run in progress")
				case err != nil:
					if ctx.Err() == nil {
						log.Error("regeneration failed", "error", err)
					}
				default:
					if err := printStats(r, cfg, summary); err != nil {
						log.Warn("failed to print statistics", "error", err)
					}
				}
			}

			w, err := watcher.New(cfg.Dir, watcher.Options{
				Output:   cfg.OutputPath(),
				Ignore:   watchIgnores(cfg),
				Debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
			}, env.logger.WithPhase("watch"))
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			regenerate(ctx, nil)
			env.logger.Info("watching for changes", "dir", cfg.Dir)

			if err := w.Run(ctx, regenerate); err != nil && !isCanceled(err) {
				return err
			}
			return nil
		},
	}
}

// watchIgnores lists files ptags itself writes during a run
func watchIgnores(cfg *config.Config) []string {
	var ignore []string
	if cfg.Metrics.File != "" {
		ignore = append(ignore, cfg.Metrics.File)
	}
	if cfg.Logging.File != "" {
		ignore = append(ignore, cfg.Logging.File)
	}
	if cfg.History.Enabled && cfg.History.Path != "" {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			ignore = append(ignore, cfg.History.Path+suffix)
		}
	}
	return ignore
}
