// Package graphmodel defines the core value types shared across the
// retrieval pipeline: queries, embeddings, vector-search hits, graph
// context, and the assembled result rows returned to callers.
package graphmodel

import (
	"time"

	"github.com/google/uuid"
)

// UnknownAuthor substitutes for an author name that graph expansion
// could not resolve.
const UnknownAuthor = "Unknown"

// UnknownArticle substitutes for an article title that graph expansion
// could not resolve.
const UnknownArticle = "Unknown"

// Query is a single retrieval request.
type Query struct {
	Text  string
	Limit int
}

// Embedding is a dense vector produced by the Embedder.
type Embedding []float32

// Hit is a single vector-search match.
type Hit struct {
	ChunkID  string
	Text     string
	Score    float64
}

// GraphContext is the authorship/article annotation obtained by
// traversing back from a chunk. Either field may be empty when the
// corresponding node is absent.
type GraphContext struct {
	ChunkID       string
	ArticleTitle  string
	AuthorName    string
	HasArticle    bool
	HasAuthor     bool
}

// ResultRow is one row of a retrieval result, shape-normalized for the
// tool/CLI envelopes.
type ResultRow struct {
	Author    string  `json:"author"`
	Article   string  `json:"article"`
	ChunkText string  `json:"chunk_text"`
	Score     float64 `json:"score"`
}

// Result is the ordered outcome of a retrieve call.
type Result struct {
	Rows         []ResultRow `json:"results"`
	TotalResults int         `json:"total_results"`
}

// FailureEnvelope is the wire-level error shape returned by the tool
// adapter and the CLI. It is mutually exclusive with Result.
type FailureEnvelope struct {
	Error        bool              `json:"error"`
	Code         int               `json:"error_code"`
	Message      string            `json:"error_message"`
	Details      map[string]string `json:"error_details,omitempty"`
	RequestID    string            `json:"request_id"`
}

// Chunk is a unit of indexed text carrying a dense embedding. Read-only
// from the retrieval core's point of view; ingestion populates it.
type Chunk struct {
	ID        uuid.UUID
	ArticleID uuid.UUID
	Text      string
	Embedding Embedding
	CreatedAt time.Time
}

// Article groups one or more chunks.
type Article struct {
	ID        uuid.UUID
	Title     string
	Metadata  Metadata
	CreatedAt time.Time
}

// Author is the writer of an article.
type Author struct {
	ID        uuid.UUID
	Name      string
	Metadata  Metadata
	CreatedAt time.Time
}

// EdgeType is a closed, two-value enum naming the only two
// relationship kinds the graph schema carries.
type EdgeType string

const (
	EdgeHasChunk EdgeType = "HAS_CHUNK"
	EdgeWrote    EdgeType = "WROTE"
)

// Edge is a directed relationship between two nodes identified by id.
type Edge struct {
	ID        uuid.UUID
	SourceID  uuid.UUID
	TargetID  uuid.UUID
	Type      EdgeType
	CreatedAt time.Time
}
