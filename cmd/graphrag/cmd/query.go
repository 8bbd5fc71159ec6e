package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siherrmann/graphrag-core/internal/tracing"
)

type queryOutput struct {
	Results      []queryRow `json:"results"`
	TotalResults int        `json:"total_results"`
	RequestID    string     `json:"request_id"`
}

type queryRow struct {
	Author    string  `json:"author"`
	Article   string  `json:"article"`
	ChunkText string  `json:"chunk_text"`
	Score     float64 `json:"score"`
}

func newQueryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Embed text, search the graph, and print the ranked results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runQuery(cmd, args[0], limit))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows to return (0 uses the configured default)")

	return cmd
}

func runQuery(cmd *cobra.Command, text string, limit int) int {
	requestID := tracing.NewRequestID()

	application, err := buildApp(cmd.Context(), configPathFlag)
	if err != nil {
		printEnvelope(newFailureEnvelope(requestID, err))
		return exitFailure
	}
	defer application.Close()

	ctx := tracing.WithRequestID(cmd.Context(), requestID)
	result, err := application.retriever.Retrieve(ctx, text, limit)
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "retrieve failed")
		printEnvelope(newFailureEnvelope(requestID, err))
		return exitFailure
	}

	rows := make([]queryRow, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = queryRow{Author: row.Author, Article: row.Article, ChunkText: row.ChunkText, Score: row.Score}
	}

	color.New(color.FgGreen).Fprintf(os.Stderr, "%d result(s)\n", result.TotalResults)
	printEnvelope(queryOutput{Results: rows, TotalResults: result.TotalResults, RequestID: requestID})
	return exitSuccess
}
