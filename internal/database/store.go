//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/corpus"
)

// Store is a corpus.Store and corpus.Writer over a pgvector table.
type Store struct {
	pool       *Pool
	table      config.TableConfig
	dimensions int
}

var (
	_ corpus.Store  = (*Store)(nil)
	_ corpus.Writer = (*Store)(nil)
)

// NewStore creates a Store over the configured table.
func NewStore(pool *Pool, table config.TableConfig, dimensions int) *Store {
	return &Store{
		pool:       pool,
		table:      table,
		dimensions: dimensions,
	}
}

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	return pgx.Identifier(parts)
}

// formatVector converts a float32 slice to pgvector string format [x,y,z,...].
func formatVector(embedding []float32) string {
	strs := make([]string, len(embedding))
	for i, v := range embedding {
		strs[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// buildSearchQuery returns the similarity query. With a category the
// filter is bound as $3. Ties on distance are broken by id.
func buildSearchQuery(t config.TableConfig, withCategory bool) string {
	vec := pgx.Identifier{t.EmbeddingColumn}.Sanitize()
	id := pgx.Identifier{t.IDColumn}.Sanitize()
	cat := pgx.Identifier{t.CategoryColumn}.Sanitize()

	where := fmt.Sprintf(" WHERE %s IS NOT NULL", vec)
	if withCategory {
		where += fmt.Sprintf(" AND %s = $3", cat)
	}

	return fmt.Sprintf(`
		SELECT
			%s::text AS id,
			%s AS content,
			COALESCE(%s, '') AS category,
			1 - (%s <=> $1::vector) AS score
		FROM %s%s
		ORDER BY %s <=> $1::vector, %s
		LIMIT $2`,
		id,
		pgx.Identifier{t.ContentColumn}.Sanitize(),
		cat,
		vec,
		parseTableIdentifier(t.Name).Sanitize(),
		where,
		vec,
		id,
	)
}

// buildUpsertQuery returns the statement used for each ingested chunk.
func buildUpsertQuery(t config.TableConfig) string {
	id := pgx.Identifier{t.IDColumn}.Sanitize()
	content := pgx.Identifier{t.ContentColumn}.Sanitize()
	cat := pgx.Identifier{t.CategoryColumn}.Sanitize()
	vec := pgx.Identifier{t.EmbeddingColumn}.Sanitize()

	return fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s)
		VALUES ($1, $2, NULLIF($3, ''), $4::vector)
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s`,
		parseTableIdentifier(t.Name).Sanitize(),
		id, content, cat, vec,
		id,
		content, content,
		cat, cat,
		vec, vec,
	)
}

// buildSchemaStatements returns the DDL creating the corpus table.
func buildSchemaStatements(t config.TableConfig, dimensions int) []string {
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s text PRIMARY KEY,
			%s text NOT NULL,
			%s text,
			%s vector(%d)
		)`,
			parseTableIdentifier(t.Name).Sanitize(),
			pgx.Identifier{t.IDColumn}.Sanitize(),
			pgx.Identifier{t.ContentColumn}.Sanitize(),
			pgx.Identifier{t.CategoryColumn}.Sanitize(),
			pgx.Identifier{t.EmbeddingColumn}.Sanitize(),
			dimensions,
		),
	}
}

// Search implements corpus.Store.
func (s *Store) Search(
	ctx context.Context,
	embedding []float32,
	category string,
	k int,
) ([]corpus.Evidence, error) {
	if k <= 0 {
		return nil, nil
	}

	args := []any{formatVector(embedding), k}
	if category != "" {
		args = append(args, category)
	}

	rows, err := s.pool.pool.Query(ctx, buildSearchQuery(s.table, category != ""), args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []corpus.Evidence
	for rows.Next() {
		var e corpus.Evidence
		if err := rows.Scan(&e.DocumentID, &e.Content, &e.Category, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Score = math.Max(0, math.Min(1, e.Score))
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// Ingest implements corpus.Writer with a single batched round trip.
func (s *Store) Ingest(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	query := buildUpsertQuery(s.table)
	batch := &pgx.Batch{}
	for _, c := range chunks {
		if s.dimensions > 0 && len(c.Embedding) != s.dimensions {
			return fmt.Errorf("chunk %q has %d dimensions, table expects %d",
				c.ID, len(c.Embedding), s.dimensions)
		}
		batch.Queue(query, c.ID, c.Content, c.Category, formatVector(c.Embedding))
	}

	results := s.pool.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, c := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk %q: %w", c.ID, err)
		}
	}
	return nil
}

// EnsureSchema creates the vector extension and corpus table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range buildSchemaStatements(s.table, s.dimensions) {
		if _, err := s.pool.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}
