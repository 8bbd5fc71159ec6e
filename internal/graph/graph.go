// Package graph implements GraphClient: all interaction with the
// property graph, exposed as two narrow operations (VectorSearch,
// Expand) plus connection lifecycle.
//
// The graph is modeled relationally on Postgres + pgvector rather than
// a native graph driver.
package graph

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // registers the "postgres" driver, also used for pq.Array
	"github.com/pgvector/pgvector-go"

	"github.com/siherrmann/graphrag-core/internal/apperr"
	"github.com/siherrmann/graphrag-core/internal/config"
	"github.com/siherrmann/graphrag-core/internal/graphmodel"
)

// connection states.
const (
	stateUnconnected int32 = iota
	stateConnected
	stateClosed
)

// GraphClient owns the pooled Postgres connection and the vector/edge
// queries. Constructed once per process and handed to the Retriever.
type GraphClient struct {
	db        *sql.DB
	state     atomic.Int32
	indexName string
	log       *slog.Logger
}

// New constructs an unconnected GraphClient. logger is injected at
// construction time, never looked up from a package-level global.
func New(logger *slog.Logger) *GraphClient {
	gc := &GraphClient{log: logger}
	gc.state.Store(stateUnconnected)
	return gc
}

// Connect opens a pooled connection per cfg and verifies connectivity
// with a trivial round-trip. It does not create or alter anything: the
// node/edge tables, the vector index, and the stored query functions
// are assumed to already exist, provisioned separately via Migrate.
// Only valid from Unconnected. Fails with 2001 on connect/timeout,
// 2002 on authentication failure.
func (c *GraphClient) Connect(ctx context.Context, cfg config.GraphConfig, indexName string) error {
	if !c.state.CompareAndSwap(stateUnconnected, stateConnected) {
		return apperr.New(apperr.CodeGraphConnect, "connect called outside Unconnected state", nil)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		hostOf(cfg.Endpoint), portOf(cfg.Endpoint), cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		c.state.Store(stateUnconnected)
		return apperr.Wrap(apperr.CodeGraphConnect, fmt.Errorf("open connection: %w", err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		c.state.Store(stateUnconnected)
		if isAuthError(err) {
			return apperr.Wrap(apperr.CodeGraphAuth, err)
		}
		return apperr.Wrap(apperr.CodeGraphConnect, err)
	}

	c.db = db
	c.indexName = indexName
	c.log.Info("graph client connected", slog.String("endpoint", cfg.Endpoint), slog.String("database", cfg.Database))
	return nil
}

// VectorSearch checks that the configured vector index exists (one
// query), then issues one parameterized ANN query and returns up to k nearest chunks under
// cosine similarity. pgvector's <=> operator returns distance;
// VectorSearch inverts it to similarity (score = 1 - distance) so
// higher-is-better holds from this boundary outward.
func (c *GraphClient) VectorSearch(ctx context.Context, vec graphmodel.Embedding, k int) ([]graphmodel.Hit, error) {
	if c.state.Load() != stateConnected {
		return nil, apperr.New(apperr.CodeGraphQuery, "vectorSearch called outside Connected state", nil)
	}

	exists, err := c.indexExists(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGraphQuery, err)
	}
	if !exists {
		return nil, apperr.New(apperr.CodeGraphIndexMissing, "vector index not found: "+c.indexName, nil)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2)`,
		pgvector.NewVector(vec), k,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.CodeGraphQuery, ctx.Err()).WithDetail("kind", "Timeout")
		}
		return nil, apperr.Wrap(apperr.CodeGraphQuery, err)
	}
	defer rows.Close()

	var hits []graphmodel.Hit
	for rows.Next() {
		var id uuid.UUID
		var text string
		var distance float64
		if err := rows.Scan(&id, &text, &distance); err != nil {
			return nil, apperr.Wrap(apperr.CodeGraphResultShape, err)
		}
		hits = append(hits, graphmodel.Hit{
			ChunkID: id.String(),
			Text:    text,
			Score:   1 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeGraphResultShape, err)
	}

	return hits, nil
}

// Expand traverses, for each chunk id, at most one HAS_CHUNK back-edge
// to an article and at most one WROTE back-edge from an author to that
// article, in a single query (two LEFT JOINs through the edges table).
// With VectorSearch's two queries, a retrieve call that reaches
// expansion makes three round-trips to the database. Returns one
// GraphContext per input id; a chunk id with no matching row (missing
// chunk, or no article/author) yields a GraphContext with both fields
// absent, which is not an error.
func (c *GraphClient) Expand(ctx context.Context, chunkIDs []string) ([]graphmodel.GraphContext, error) {
	if c.state.Load() != stateConnected {
		return nil, apperr.New(apperr.CodeGraphQuery, "expand called outside Connected state", nil)
	}
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(chunkIDs))
	for _, s := range chunkIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeGraphResultShape, fmt.Errorf("malformed chunk id %q: %w", s, err))
		}
		ids = append(ids, id)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT * FROM expand_chunk_context($1, $2, $3)`,
		pq.Array(ids), string(graphmodel.EdgeHasChunk), string(graphmodel.EdgeWrote),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.CodeGraphQuery, ctx.Err()).WithDetail("kind", "Timeout")
		}
		return nil, apperr.Wrap(apperr.CodeGraphQuery, err)
	}
	defer rows.Close()

	byID := make(map[string]graphmodel.GraphContext, len(chunkIDs))
	for rows.Next() {
		var id uuid.UUID
		var title, author sql.NullString
		if err := rows.Scan(&id, &title, &author); err != nil {
			return nil, apperr.Wrap(apperr.CodeGraphResultShape, err)
		}
		byID[id.String()] = graphmodel.GraphContext{
			ChunkID:      id.String(),
			ArticleTitle: title.String,
			HasArticle:   title.Valid,
			AuthorName:   author.String,
			HasAuthor:    author.Valid,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeGraphResultShape, err)
	}

	ctxs := make([]graphmodel.GraphContext, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if gc, ok := byID[id]; ok {
			ctxs = append(ctxs, gc)
		} else {
			ctxs = append(ctxs, graphmodel.GraphContext{ChunkID: id})
		}
	}
	return ctxs, nil
}

// Close idempotently releases the pool and driver. Valid from any
// non-Closed state, leaves Closed (terminal).
func (c *GraphClient) Close() error {
	if c.state.Swap(stateClosed) == stateClosed {
		return nil
	}
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *GraphClient) indexExists(ctx context.Context) (bool, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = $1)`, c.indexName,
	).Scan(&exists)
	return exists, err
}

func hostOf(endpoint string) string {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return host
}

func portOf(endpoint string) string {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		return host[i+1:]
	}
	return "5432"
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password authentication failed") || strings.Contains(msg, "authentication failed")
}
