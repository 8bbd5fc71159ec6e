// Package retrieval implements Retriever: the single orchestration
// point that turns a query into a ranked Result by composing the
// Embedder and GraphClient.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
)

// embedder is the subset of internal/embedding.Embedder the Retriever
// depends on, narrowed so tests can substitute a fake.
type embedder interface {
	Embed(ctx context.Context, text string) (graphmodel.Embedding, error)
}

// graphClient is the subset of internal/graph.GraphClient the
// Retriever depends on.
type graphClient interface {
	VectorSearch(ctx context.Context, vec graphmodel.Embedding, k int) ([]graphmodel.Hit, error)
	Expand(ctx context.Context, chunkIDs []string) ([]graphmodel.GraphContext, error)
}

// Retriever is stateless beyond its two injected dependencies and is
// safe to invoke from multiple goroutines at once.
type Retriever struct {
	embedder     embedder
	graph        graphClient
	defaultLimit int
	maxLimit     int
}

// New constructs a Retriever. defaultLimit and maxLimit come from
// Config (internal/config.RetrievalConfig), injected at build time
// rather than looked up from a global.
func New(e embedder, g graphClient, defaultLimit, maxLimit int) *Retriever {
	return &Retriever{embedder: e, graph: g, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Retrieve runs the full pipeline: normalize, embed, search, expand,
// merge, tie-break.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) (*graphmodel.Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, apperr.New(apperr.CodeEmptyQuery, "query is empty after trimming", nil)
	}
	k := r.clampLimit(limit)

	vec, err := r.embedder.Embed(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	hits, err := r.graph.VectorSearch(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &graphmodel.Result{Rows: []graphmodel.ResultRow{}, TotalResults: 0}, nil
	}

	hits = dedupeByChunkID(hits)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ChunkID < hits[j].ChunkID
		}
		return false
	})

	chunkIDs := make([]string, len(hits))
	for i, h := range hits {
		chunkIDs[i] = h.ChunkID
	}

	ctxs, err := r.graph.Expand(ctx, chunkIDs)
	if err != nil {
		return nil, apperr.New(apperr.CodeExpansionFailed, "graph expansion failed", err)
	}

	byID := make(map[string]graphmodel.GraphContext, len(ctxs))
	for _, gc := range ctxs {
		byID[gc.ChunkID] = gc
	}

	rows := make([]graphmodel.ResultRow, len(hits))
	for i, h := range hits {
		author, article := graphmodel.UnknownAuthor, graphmodel.UnknownArticle
		if gc, ok := byID[h.ChunkID]; ok {
			if gc.HasAuthor {
				author = gc.AuthorName
			}
			if gc.HasArticle {
				article = gc.ArticleTitle
			}
		}
		rows[i] = graphmodel.ResultRow{
			Author:    author,
			Article:   article,
			ChunkText: h.Text,
			Score:     h.Score,
		}
	}

	return &graphmodel.Result{Rows: rows, TotalResults: len(rows)}, nil
}

// clampLimit implements the invariant also exposed by
// internal/config.Config.ClampLimit: absent (<= 0) uses the default,
// over-max clamps down, in-range passes through unchanged.
func (r *Retriever) clampLimit(requested int) int {
	if requested <= 0 {
		return r.defaultLimit
	}
	if requested > r.maxLimit {
		return r.maxLimit
	}
	return requested
}

// dedupeByChunkID collapses repeated chunk ids to their first
// occurrence, preserving the order vectorSearch returned.
func dedupeByChunkID(hits []graphmodel.Hit) []graphmodel.Hit {
	seen := make(map[string]bool, len(hits))
	out := make([]graphmodel.Hit, 0, len(hits))
	for _, h := range hits {
		if seen[h.ChunkID] {
			continue
		}
		seen[h.ChunkID] = true
		out = append(out, h)
	}
	return out
}
