// Package mcpadapter implements ToolAdapter: it registers exactly one
// tool, graph_retrieve, on an MCP host and routes invocations into the
// Retriever, translating every failure into an in-band failure
// envelope rather than raising to the host.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
	"github.com/siherrmann/graphrag-core/internal/tracing"
)

const toolName = "graph_retrieve"

// retriever is the subset of internal/retrieval.Retriever the adapter
// depends on.
type retriever interface {
	Retrieve(ctx context.Context, query string, limit int) (*graphmodel.Result, error)
}

// RetrieveInput is the inbound parameter schema for graph_retrieve; the
// SDK derives the tool's input schema from this struct and its tags.
// The handler receives only the decoded struct, never the raw
// arguments, so it does not itself reject unrecognized keys, and no
// path in this package returns 4002.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the natural-language question to retrieve chunks for,required"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of rows to return, clamped to the configured maximum"`
}

// RetrieveOutput is the success envelope.
type RetrieveOutput struct {
	Results      []graphmodel.ResultRow `json:"results"`
	TotalResults int                    `json:"total_results"`
	RequestID    string                 `json:"request_id"`
}

// ToolAdapter owns the MCP server handle and the shutdown drain state.
type ToolAdapter struct {
	mcp            *mcp.Server
	retriever      retriever
	log            *slog.Logger
	perCallTimeout time.Duration

	draining atomic.Bool
	inFlight sync.WaitGroup
}

// New constructs a ToolAdapter and registers graph_retrieve. The
// returned error is always nil: mcp.AddTool reports no refusal, so New
// never produces 4001.
func New(r retriever, logger *slog.Logger, perCallTimeout time.Duration) (*ToolAdapter, error) {
	a := &ToolAdapter{
		retriever:      r,
		log:            logger,
		perCallTimeout: perCallTimeout,
	}

	a.mcp = mcp.NewServer(&mcp.Implementation{Name: "graphrag-core", Version: "0.1.0"}, nil)

	mcp.AddTool(a.mcp, &mcp.Tool{
		Name:        toolName,
		Description: "Embed a query, search the chunk vector index, and expand matched chunks with their article and author context.",
	}, a.handleRetrieve)

	return a, nil
}

// Serve runs the MCP server over transport until ctx is canceled, then
// drains in-flight invocations before returning.
func (a *ToolAdapter) Serve(ctx context.Context) error {
	err := a.mcp.Run(ctx, &mcp.StdioTransport{})
	a.drain()
	return err
}

// drain marks the adapter as shutting down and waits for in-flight
// calls to finish. New invocations arriving after this point observe
// draining=true and fail fast with 4003.
func (a *ToolAdapter) drain() {
	a.draining.Store(true)
	a.inFlight.Wait()
}

func (a *ToolAdapter) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (
	*mcp.CallToolResult,
	RetrieveOutput,
	error,
) {
	requestID := tracing.NewRequestID()
	ctx = tracing.WithRequestID(ctx, requestID)
	start := time.Now()

	if a.draining.Load() {
		return a.fail(requestID, apperr.New(apperr.CodeServerShutdown, "server shutting down", nil)), RetrieveOutput{}, nil
	}

	a.inFlight.Add(1)
	defer a.inFlight.Done()

	result, err := a.callRetrieverSafely(ctx, input, requestID)
	duration := time.Since(start)

	if err != nil {
		a.log.Error("graph_retrieve failed",
			slog.String("request_id", requestID),
			slog.String("operation", "retrieve"),
			slog.Int64("duration_ms", duration.Milliseconds()),
			slog.String("outcome", "error"),
			slog.Int("error_code", apperr.CodeOf(err)),
		)
		return a.fail(requestID, err), RetrieveOutput{}, nil
	}

	a.log.Info("graph_retrieve succeeded",
		slog.String("request_id", requestID),
		slog.String("operation", "retrieve"),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.String("outcome", "success"),
		slog.Int("total_results", result.TotalResults),
	)

	return nil, RetrieveOutput{Results: result.Rows, TotalResults: result.TotalResults, RequestID: requestID}, nil
}

// callRetrieverSafely recovers a panic inside Retrieve and converts it
// to the reserved 4099 code rather than letting it cross the MCP
// handler boundary.
func (a *ToolAdapter) callRetrieverSafely(ctx context.Context, input RetrieveInput, requestID string) (result *graphmodel.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error("panic recovered in graph_retrieve",
				slog.String("request_id", requestID),
				slog.Any("panic", rec),
			)
			err = apperr.Panic(rec)
		}
	}()

	if a.perCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.perCallTimeout)
		defer cancel()
	}

	result, err = a.retriever.Retrieve(ctx, input.Query, input.Limit)
	return result, err
}

// fail builds the *mcp.CallToolResult carrying the JSON failure
// envelope as in-band text content, with IsError set so the host can
// distinguish it without the call itself having errored at the
// protocol level.
func (a *ToolAdapter) fail(requestID string, err error) *mcp.CallToolResult {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.New(apperr.CodePanic, "unclassified failure", err)
	}
	env := graphmodel.FailureEnvelope{
		Error:     true,
		Code:      ae.Code,
		Message:   ae.Message,
		Details:   ae.Details,
		RequestID: requestID,
	}
	payload, marshalErr := json.Marshal(env)
	if marshalErr != nil {
		payload = []byte(`{"error":true,"error_code":4099,"error_message":"failed to marshal failure envelope"}`)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}
}
