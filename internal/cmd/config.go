package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after files, environment and flags are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# config file: %s\n", used)
			} else {
				fmt.Fprintln(out, "# config file: (none - using defaults)")
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			return enc.Close()
		},
	})
	return configCmd
}
