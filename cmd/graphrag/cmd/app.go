// Package cmd provides the graphrag CLI: status, query, and serve
// subcommands wired to the same injected Config -> Embedder ->
// GraphClient -> Retriever chain the MCP adapter uses.
package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/config"
	"github.com/siherrmann/graphrag-core/internal/embedding"
	"github.com/siherrmann/graphrag-core/internal/graph"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
	"github.com/siherrmann/graphrag-core/internal/obslog"
	"github.com/siherrmann/graphrag-core/internal/retrieval"
)

// app bundles the constructed core for a single CLI invocation. Every
// subcommand builds one from the resolved config path and tears it
// down before returning, a one-shot command style rather than a
// long-lived daemon state.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	embedder  *embedding.Embedder
	graph     *graph.GraphClient
	retriever *retrieval.Retriever
}

// buildApp loads config, connects the GraphClient, and initializes the
// Embedder. Logs go to stderr as JSON lines (internal/obslog) so
// stdout stays reserved for the single JSON envelope each subcommand
// prints on exit.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	logger := slog.New(obslog.New(os.Stderr, obslog.Options{}))

	resolved := config.ResolvePath(configPath)
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, err
	}

	gc := graph.New(obslog.ForComponent(logger, "graph"))
	if err := gc.Connect(ctx, cfg.Graph, cfg.Vector.IndexName); err != nil {
		return nil, err
	}

	emb := embedding.New()
	if err := emb.Init(cfg.Embedding.ModelID, cfg.Vector.Dimension); err != nil {
		_ = gc.Close()
		return nil, err
	}

	r := retrieval.New(emb, gc, cfg.Retrieval.DefaultLimit, cfg.Retrieval.MaxLimit)

	return &app{cfg: cfg, logger: logger, embedder: emb, graph: gc, retriever: r}, nil
}

// Close releases the Embedder session and GraphClient pool.
func (a *app) Close() {
	_ = a.embedder.Close()
	_ = a.graph.Close()
}

// perCallTimeout derives a per-invocation deadline from config.
func (a *app) perCallTimeout() time.Duration {
	return time.Duration(a.cfg.Timeout.PerCallMillis) * time.Millisecond
}

// Exit codes for the CLI contract. Usage errors (exit 2) are produced
// by cobra argument validation and mapped in main.go, not by
// subcommand bodies.
const (
	exitSuccess = 0
	exitFailure = 1
)

// printEnvelope writes v as the single JSON document to stdout the
// CLI contract requires.
func printEnvelope(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(v)
}

// newFailureEnvelope builds the same wire shape the ToolAdapter uses,
// so the CLI and the MCP surface agree on failure serialization.
func newFailureEnvelope(requestID string, err error) graphmodel.FailureEnvelope {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.New(apperr.CodePanic, err.Error(), err)
	}
	return graphmodel.FailureEnvelope{
		Error:     true,
		Code:      ae.Code,
		Message:   ae.Message,
		Details:   ae.Details,
		RequestID: requestID,
	}
}
