//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package corpus defines the knowledge corpus the retriever ranks, with an
// in-memory store and the offline ingestion plumbing.
package corpus

import "context"

// Evidence is a ranked corpus document.
type Evidence struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Category   string  `json:"category,omitempty"`
	Score      float64 `json:"similarity_score"`
}

// Chunk is an ingestible unit of the corpus.
type Chunk struct {
	ID        string
	Source    string
	Category  string
	Content   string
	Embedding []float32
}

// Store ranks the corpus by cosine similarity to an embedding. An empty
// category searches the whole corpus. Results are sorted by descending
// score, ties kept in insertion order, and capped at k.
type Store interface {
	Search(ctx context.Context, embedding []float32, category string, k int) ([]Evidence, error)
}

// Writer is the offline write side of the corpus.
type Writer interface {
	Ingest(ctx context.Context, chunks []Chunk) error
}
