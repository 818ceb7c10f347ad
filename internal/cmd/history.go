package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/ptags/internal/report"
	"github.com/dshills/ptags/internal/storage"
	"github.com/dshills/ptags/pkg/types"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit  int
		runID  string
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [DIR]",
		Short: "Show recorded runs",
		Long: `List the most recent runs recorded with --history for DIR (default: the
configured dir), newest first. With --run, show one run including the outcome
of every chunk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(args)
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer func() { _ = store.Close() }()

			r := report.New(cmd.OutOrStdout())
			ctx := cmd.Context()

			if runID != "" {
				run, err := store.GetRun(ctx, runID)
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("run %s not found", runID)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return r.JSON(run.ToSummary())
				}
				return r.Text(run.ToSummary())
			}

			root := ""
			if !all {
				if root, err = filepath.Abs(cfg.Dir); err != nil {
					return err
				}
			}
			runs, err := store.ListRuns(ctx, root, limit)
			if err != nil {
				return err
			}
			summaries := make([]*types.RunSummary, len(runs))
			for i, run := range runs {
				summaries[i] = run.ToSummary()
			}
			return r.Runs(summaries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show a single run")
	cmd.Flags().BoolVar(&all, "all", false, "list runs for every directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON (with --run)")
	return cmd
}
