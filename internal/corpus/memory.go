//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package corpus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps embedded chunks in memory. Concurrent searches share
// a read lock; ingestion takes the write lock.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
	byID   map[string]int
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Writer = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Ingest adds chunks. A chunk whose ID already exists replaces the stored
// one in place, keeping its insertion position.
func (s *MemoryStore) Ingest(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %q has no embedding", c.ID)
		}
		if i, ok := s.byID[c.ID]; ok && c.ID != "" {
			s.chunks[i] = c
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, category string, k int) ([]Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Evidence, 0, len(s.chunks))
	for _, c := range s.chunks {
		if category != "" && c.Category != category {
			continue
		}
		if len(c.Embedding) != len(embedding) {
			return nil, fmt.Errorf("dimension mismatch: chunk %q has %d, query has %d",
				c.ID, len(c.Embedding), len(embedding))
		}
		results = append(results, Evidence{
			DocumentID: c.ID,
			Content:    c.Content,
			Category:   c.Category,
			Score:      Similarity(embedding, c.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Similarity is the cosine similarity of a and b clamped to [0,1]. Zero
// vectors have similarity 0.
func Similarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, sim))
}
