package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dshills/ptags/internal/mcp"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
generate_tags, list_runs and get_run tools.

Flags and the config file set the defaults every generate_tags call starts
from. Logs go to stderr or --log-file; stdout is reserved for the protocol.`,
		Args: cobra.NoArgs,
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

			srv := mcp.NewServer(cfg, env.indexer, env.history, env.logger.With("component", "mcp"))
			if err := srv.Serve(cmd.Context()); err != nil && !isCanceled(err) {
				return err
			}
			return nil
		},
	}
}
