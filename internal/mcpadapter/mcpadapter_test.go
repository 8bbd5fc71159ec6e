package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
)

type fakeRetriever struct {
	result *graphmodel.Result
	err    error
	panic  bool
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, limit int) (*graphmodel.Result, error) {
	if f.panic {
		panic("simulated fault")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(r retriever) *ToolAdapter {
	a, _ := New(r, testLogger(), 0)
	return a
}

func extractText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleRetrieveSuccess(t *testing.T) {
	r := &fakeRetriever{result: &graphmodel.Result{
		Rows:         []graphmodel.ResultRow{{Author: "Alice", Article: "Transformers", ChunkText: "text", Score: 0.9}},
		TotalResults: 1,
	}}
	a := newTestAdapter(r)

	res, out, err := a.handleRetrieve(context.Background(), nil, RetrieveInput{Query: "who wrote this?"})
	require.NoError(t, err)
	require.Nil(t, res)
	assert.Equal(t, 1, out.TotalResults)
	assert.Equal(t, "Alice", out.Results[0].Author)
	assert.NotEmpty(t, out.RequestID)
}

func TestHandleRetrieveFailureIsInBand(t *testing.T) {
	r := &fakeRetriever{err: apperr.New(apperr.CodeEmptyQuery, "query is empty after trimming", nil)}
	a := newTestAdapter(r)

	res, out, err := a.handleRetrieve(context.Background(), nil, RetrieveInput{Query: "   "})
	require.NoError(t, err, "failures must never be raised to the host")
	assert.Equal(t, RetrieveOutput{}, out)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestHandleRetrieveFailureEnvelopeShape(t *testing.T) {
	r := &fakeRetriever{err: apperr.New(apperr.CodeEmptyQuery, "query is empty after trimming", nil)}
	a := newTestAdapter(r)

	res, _, err := a.handleRetrieve(context.Background(), nil, RetrieveInput{Query: "   "})
	require.NoError(t, err)

	var env graphmodel.FailureEnvelope
	require.NoError(t, json.Unmarshal([]byte(extractText(t, res)), &env))
	assert.True(t, env.Error)
	assert.Equal(t, apperr.CodeEmptyQuery, env.Code)
	assert.NotEmpty(t, env.RequestID)
}

func TestHandleRetrieveRecoversPanic(t *testing.T) {
	r := &fakeRetriever{panic: true}
	a := newTestAdapter(r)

	res, out, err := a.handleRetrieve(context.Background(), nil, RetrieveInput{Query: "query"})
	require.NoError(t, err)
	assert.Equal(t, RetrieveOutput{}, out)

	var env graphmodel.FailureEnvelope
	require.NoError(t, json.Unmarshal([]byte(extractText(t, res)), &env))
	assert.Equal(t, apperr.CodePanic, env.Code)
}

func TestHandleRetrieveDuringDrainFailsWith4003(t *testing.T) {
	a := newTestAdapter(&fakeRetriever{result: &graphmodel.Result{}})
	a.draining.Store(true)

	res, out, err := a.handleRetrieve(context.Background(), nil, RetrieveInput{Query: "query"})
	require.NoError(t, err)
	assert.Equal(t, RetrieveOutput{}, out)

	var env graphmodel.FailureEnvelope
	require.NoError(t, json.Unmarshal([]byte(extractText(t, res)), &env))
	assert.Equal(t, apperr.CodeServerShutdown, env.Code)
}

func TestCallRetrieverSafelyPropagatesNonPanicError(t *testing.T) {
	a := newTestAdapter(&fakeRetriever{err: errors.New("plain error")})
	_, err := a.callRetrieverSafely(context.Background(), RetrieveInput{Query: "q"}, "req-1")
	require.Error(t, err)
}
