package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siherrmann/graphrag-core/internal/tracing"
)

type statusOutput struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify config, graph connectivity, and the embedding model, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runStatus(cmd))
			return nil
		},
	}
}

func runStatus(cmd *cobra.Command) int {
	requestID := tracing.NewRequestID()

	application, err := buildApp(cmd.Context(), configPathFlag)
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "graph/embedder initialization failed")
		printEnvelope(newFailureEnvelope(requestID, err))
		return exitFailure
	}
	defer application.Close()

	color.New(color.FgGreen).Fprintln(os.Stderr, "ready")
	printEnvelope(statusOutput{Status: "ok", RequestID: requestID})
	return exitSuccess
}
