package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/siherrmann/graphrag-core/internal/mcpadapter"
)

// newServeCmd runs the MCP stdio server, the process entry point a
// tool host actually launches.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the graph_retrieve MCP tool over stdio until terminated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runServe(cmd))
			return nil
		},
	}
}

func runServe(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, configPathFlag)
	if err != nil {
		return exitFailure
	}
	defer application.Close()

	adapter, err := mcpadapter.New(application.retriever, application.logger, application.perCallTimeout())
	if err != nil {
		return exitFailure
	}

	if err := adapter.Serve(ctx); err != nil {
		return exitFailure
	}
	return exitSuccess
}
