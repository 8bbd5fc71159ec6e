// Package embedding implements Embedder: a process-wide
// sentence-embedding model, loaded once and reused across concurrent
// encode calls.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
)

// sentencePipeline is the subset of hugot's feature-extraction
// pipeline the Embedder depends on, narrowed for testability.
type sentencePipeline interface {
	RunPipeline(inputs []string) (*hugot.FeatureExtractionOutput, error)
}

// session is the subset of hugot's session handle the Embedder owns
// and must release on Close.
type session interface {
	Destroy() error
}

// Embedder wraps a hugot Go-backend session and feature-extraction
// pipeline. It owns the session handle so Close() always releases it.
type Embedder struct {
	modelID    string
	dimension  int
	sess       session
	pipeline   sentencePipeline
	mu         sync.Mutex // serializes RunPipeline: hugot's pipeline is not documented concurrent-safe
	modelDir   string
}

// Option configures New. ModelDir defaults to "./models".
type Option func(*Embedder)

// WithModelDir overrides the local model cache directory.
func WithModelDir(dir string) Option {
	return func(e *Embedder) { e.modelDir = dir }
}

// New constructs an unintialized Embedder; call Init before Embed.
func New(opts ...Option) *Embedder {
	e := &Embedder{modelDir: "./models"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init loads modelID and verifies its output dimension equals
// expectedDimension. Fails with 3001 on load error, 3003 on dimension
// mismatch.
func (e *Embedder) Init(modelID string, expectedDimension int) error {
	modelPath, err := prepareModel(modelID, e.modelDir)
	if err != nil {
		return apperr.Wrap(apperr.CodeEmbedModelLoad, err)
	}

	sess, err := hugot.NewGoSession()
	if err != nil {
		return apperr.Wrap(apperr.CodeEmbedModelLoad, fmt.Errorf("create hugot session: %w", err))
	}

	cfg := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "graphrag-embedder",
	}
	pipe, err := hugot.NewPipeline(sess, cfg)
	if err != nil {
		_ = sess.Destroy()
		return apperr.Wrap(apperr.CodeEmbedModelLoad, fmt.Errorf("create feature extraction pipeline: %w", err))
	}

	e.sess = sess
	e.pipeline = pipe
	e.modelID = modelID

	result, err := pipe.RunPipeline([]string{"dimension probe"})
	if err != nil || len(result.Embeddings) == 0 {
		_ = sess.Destroy()
		return apperr.New(apperr.CodeEmbedModelLoad, "model failed to produce a probe embedding", err)
	}

	dim := len(result.Embeddings[0])
	if dim != expectedDimension {
		_ = sess.Destroy()
		return apperr.New(apperr.CodeEmbedDimensionMismatch,
			fmt.Sprintf("model %s declares dimension %d, config expects %d", modelID, dim, expectedDimension), nil)
	}

	e.dimension = dim
	return nil
}

// Embed encodes text into a fixed-dimension vector. text must be
// non-empty after trimming; the caller (Retriever) is responsible for
// that trim/reject, Embed itself passes the string through verbatim
// per §4.1's no-normalization policy, so it only rejects an
// already-empty string defensively.
func (e *Embedder) Embed(ctx context.Context, text string) (graphmodel.Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.CodeEmbedEncode, "embed called with empty text", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, apperr.New(apperr.CodeEmbedEncode, "embed canceled", ctx.Err()).WithDetail("kind", "Timeout")
	default:
	}

	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeEmbedEncode, fmt.Errorf("run embedding pipeline: %w", err))
	}
	if len(result.Embeddings) == 0 {
		return nil, apperr.New(apperr.CodeEmbedEncode, "no embedding produced", nil)
	}
	if got := len(result.Embeddings[0]); got != e.dimension {
		return nil, apperr.New(apperr.CodeEmbedEncode,
			fmt.Sprintf("model produced dimension %d, expected %d", got, e.dimension), nil)
	}

	return graphmodel.Embedding(result.Embeddings[0]), nil
}

// Info is a pure accessor; never fails after successful Init.
func (e *Embedder) Info() (modelID string, dimension int) {
	return e.modelID, e.dimension
}

// Close releases the underlying hugot session. Safe to call once;
// repeated calls are not guaranteed idempotent by hugot itself, so the
// caller (shutdown path) calls it exactly once.
func (e *Embedder) Close() error {
	if e.sess == nil {
		return nil
	}
	return e.sess.Destroy()
}
