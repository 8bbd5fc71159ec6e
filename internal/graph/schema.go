package graph

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"

	"github.com/siherrmann/graphrag-core/internal/apperr"
)

//go:embed sql/functions.sql
var functionsSQL string

// graphFunctions lists the stored functions functionsSQL defines, used
// to verify a Migrate run actually installed them.
var graphFunctions = []string{
	"select_chunks_by_similarity",
	"expand_chunk_context",
}

// Migrate creates the node/edge tables, the named vector index, and the
// stored query functions VectorSearch/Expand call through. It is not
// invoked by Connect: the core otherwise only consumes a graph schema
// assumed to already exist, and Migrate exists as an explicit,
// separately-invoked provisioning step for tests and deployment
// tooling.
func (c *GraphClient) Migrate(ctx context.Context, dimension int) error {
	if c.state.Load() != stateConnected {
		return apperr.New(apperr.CodeGraphConnect, "migrate called outside Connected state", nil)
	}
	for _, stmt := range ddlStatements(c.indexName, dimension) {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return apperr.Wrap(apperr.CodeGraphConnect, fmt.Errorf("exec ddl: %w", err))
		}
	}

	if _, err := c.db.ExecContext(ctx, functionsSQL); err != nil {
		return apperr.Wrap(apperr.CodeGraphConnect, fmt.Errorf("load sql functions: %w", err))
	}

	installed, err := checkFunctions(ctx, c.db, graphFunctions)
	if err != nil {
		return apperr.Wrap(apperr.CodeGraphConnect, fmt.Errorf("verify sql functions: %w", err))
	}
	if !installed {
		return apperr.New(apperr.CodeGraphConnect, "not all required sql functions were created", nil)
	}
	return nil
}

// ddlStatements creates the property graph's relational shape: three
// node tables (chunks, articles, authors) and one generic edges table
// carrying typed back-edges (HAS_CHUNK, WROTE), plus the pgvector
// extension and an ivfflat cosine index over chunks.embedding, named
// per the configured vector index rather than a fixed literal.
func ddlStatements(indexName string, dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS authors (
			id uuid PRIMARY KEY,
			name text NOT NULL,
			metadata jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id uuid PRIMARY KEY,
			title text NOT NULL,
			metadata jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id uuid PRIMARY KEY,
			article_id uuid,
			text text NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE TABLE IF NOT EXISTS edges (
			id uuid PRIMARY KEY,
			source_id uuid NOT NULL,
			target_id uuid NOT NULL,
			type text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS edges_target_type_idx ON edges (target_id, type)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON chunks
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`, pq.QuoteIdentifier(indexName)),
	}
}

// checkFunctions verifies that every named function exists in the
// database via pg_proc.
func checkFunctions(ctx context.Context, db *sql.DB, names []string) (bool, error) {
	for _, name := range names {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`, name,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("check function %s: %w", name, err)
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
