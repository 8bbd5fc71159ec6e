package cmd

import (
	"github.com/spf13/cobra"
)

var configPathFlag string

// NewRootCmd builds the graphrag CLI: status, query, and serve (the
// MCP stdio entry point).
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "graphrag",
		Short:         "Embed, search, and expand a labeled property graph over chunks, articles, and authors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to the YAML config file (overrides "+"APP_CONFIG_PATH")

	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
