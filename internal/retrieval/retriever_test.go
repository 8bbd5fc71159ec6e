package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
)

type fakeEmbedder struct {
	vec       graphmodel.Embedding
	err       error
	callCount int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (graphmodel.Embedding, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeGraph struct {
	hits          []graphmodel.Hit
	contexts      []graphmodel.GraphContext
	searchErr     error
	expandErr     error
	searchCalled  bool
	expandCalled  bool
	expandedIDs   []string
	searchK       int
}

func (f *fakeGraph) VectorSearch(ctx context.Context, vec graphmodel.Embedding, k int) ([]graphmodel.Hit, error) {
	f.searchCalled = true
	f.searchK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeGraph) Expand(ctx context.Context, chunkIDs []string) ([]graphmodel.GraphContext, error) {
	f.expandCalled = true
	f.expandedIDs = chunkIDs
	if f.expandErr != nil {
		return nil, f.expandErr
	}
	return f.contexts, nil
}

func newRetriever(e *fakeEmbedder, g *fakeGraph) *Retriever {
	return New(e, g, 5, 50)
}

// S1: happy path, single match.
func TestRetrieveHappyPath(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1, 0.2}}
	g := &fakeGraph{
		hits:     []graphmodel.Hit{{ChunkID: "c1", Text: "GPT-4 generalizes across tasks.", Score: 0.91}},
		contexts: []graphmodel.GraphContext{{ChunkID: "c1", ArticleTitle: "Transformers", HasArticle: true, AuthorName: "Alice", HasAuthor: true}},
	}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "Who wrote about GPT-4?", 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalResults)
	assert.Equal(t, "Alice", result.Rows[0].Author)
	assert.Equal(t, "Transformers", result.Rows[0].Article)
	assert.Equal(t, "GPT-4 generalizes across tasks.", result.Rows[0].ChunkText)
	assert.Equal(t, 0.91, result.Rows[0].Score)
}

// S2: multiple matches, ordering preserved from vectorSearch.
func TestRetrievePreservesVectorSearchOrder(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{
		hits: []graphmodel.Hit{
			{ChunkID: "7", Score: 0.91},
			{ChunkID: "3", Score: 0.87},
			{ChunkID: "12", Score: 0.85},
		},
		contexts: []graphmodel.GraphContext{
			{ChunkID: "7", HasArticle: true, ArticleTitle: "A"},
			{ChunkID: "3", HasArticle: true, ArticleTitle: "B"},
			{ChunkID: "12", HasArticle: true, ArticleTitle: "C"},
		},
	}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalResults)
	assert.Equal(t, []string{"A", "B", "C"}, []string{result.Rows[0].Article, result.Rows[1].Article, result.Rows[2].Article})
}

// S3: tie-breaking by chunkId ascending.
func TestRetrieveTieBreaksByChunkIDAscending(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{
		hits: []graphmodel.Hit{
			{ChunkID: "9", Score: 0.80},
			{ChunkID: "4", Score: 0.80},
		},
		contexts: []graphmodel.GraphContext{
			{ChunkID: "9", HasArticle: true, ArticleTitle: "Nine"},
			{ChunkID: "4", HasArticle: true, ArticleTitle: "Four"},
		},
	}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Four", result.Rows[0].Article)
	assert.Equal(t, "Nine", result.Rows[1].Article)
}

// S4: missing author substitutes "Unknown".
func TestRetrieveMissingAuthorIsUnknown(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{
		hits:     []graphmodel.Hit{{ChunkID: "c1", Score: 0.5}},
		contexts: []graphmodel.GraphContext{{ChunkID: "c1", HasArticle: true, ArticleTitle: "Some Article"}},
	}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Equal(t, graphmodel.UnknownAuthor, result.Rows[0].Author)
	assert.Equal(t, "Some Article", result.Rows[0].Article)
}

// S5 / B2: empty query rejected with 5001 before touching dependencies.
func TestRetrieveEmptyQueryRejected(t *testing.T) {
	e := &fakeEmbedder{}
	g := &fakeGraph{}
	r := newRetriever(e, g)

	_, err := r.Retrieve(context.Background(), "   ", 5)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmptyQuery, apperr.CodeOf(err))
	assert.Zero(t, e.callCount)
	assert.False(t, g.searchCalled)
	assert.False(t, g.expandCalled)
}

// B1: empty vectorSearch result short-circuits before expand.
func TestRetrieveEmptyHitsSkipsExpand(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{hits: nil}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalResults)
	assert.Empty(t, result.Rows)
	assert.False(t, g.expandCalled)
}

// B3: over-max limit is silently clamped.
func TestRetrieveClampsLimitSilently(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{hits: []graphmodel.Hit{{ChunkID: "c1", Score: 0.5}}}
	r := newRetriever(e, g)

	_, err := r.Retrieve(context.Background(), "query", 10000)
	require.NoError(t, err)
	assert.Equal(t, 50, g.searchK)
}

func TestRetrieveDedupesDuplicateChunkIDs(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{
		hits: []graphmodel.Hit{
			{ChunkID: "c1", Text: "first", Score: 0.9},
			{ChunkID: "c1", Text: "duplicate", Score: 0.9},
		},
	}
	r := newRetriever(e, g)

	result, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "first", result.Rows[0].ChunkText)
}

func TestRetrievePropagatesEmbedError(t *testing.T) {
	e := &fakeEmbedder{err: apperr.New(apperr.CodeEmbedEncode, "boom", nil)}
	g := &fakeGraph{}
	r := newRetriever(e, g)

	_, err := r.Retrieve(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmbedEncode, apperr.CodeOf(err))
	assert.False(t, g.searchCalled)
}

func TestRetrievePropagatesVectorSearchError(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{searchErr: apperr.New(apperr.CodeGraphQuery, "timeout", nil)}
	r := newRetriever(e, g)

	_, err := r.Retrieve(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGraphQuery, apperr.CodeOf(err))
}

func TestRetrieveExpansionFailureSurfacesAs5002(t *testing.T) {
	e := &fakeEmbedder{vec: graphmodel.Embedding{0.1}}
	g := &fakeGraph{
		hits:      []graphmodel.Hit{{ChunkID: "c1", Score: 0.5}},
		expandErr: errors.New("connection reset"),
	}
	r := newRetriever(e, g)

	_, err := r.Retrieve(context.Background(), "query", 5)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeExpansionFailed, apperr.CodeOf(err))
}

func TestClampLimit(t *testing.T) {
	r := New(nil, nil, 5, 50)
	assert.Equal(t, 5, r.clampLimit(0))
	assert.Equal(t, 50, r.clampLimit(1000))
	assert.Equal(t, 10, r.clampLimit(10))
}
