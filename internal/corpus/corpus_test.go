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
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"testing/fstest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingProvider is a mock implementation of llm.EmbeddingProvider.
type MockEmbeddingProvider struct {
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
	batches        [][]string
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *MockEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batches = append(m.batches, texts)
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (m *MockEmbeddingProvider) Dimensions() int   { return 2 }
func (m *MockEmbeddingProvider) ModelName() string { return "mock" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Similarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Similarity([]float32{1, 0}, []float32{-1, 0}), "negative similarity is clamped")
	assert.Equal(t, 0.0, Similarity([]float32{0, 0}, []float32{1, 1}))
	assert.InDelta(t, 1/math.Sqrt2, Similarity([]float32{1, 0}, []float32{1, 1}), 1e-9)
}

func TestMemoryStore_Search(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Ingest(context.Background(), []Chunk{
		{ID: "a", Category: "support", Content: "reset password", Embedding: []float32{1, 0}},
		{ID: "b", Category: "legal", Content: "gdpr request", Embedding: []float32{0, 1}},
		{ID: "c", Category: "support", Content: "vpn access", Embedding: []float32{1, 1}},
		{ID: "d", Category: "support", Content: "password policy", Embedding: []float32{2, 0}},
	}))

	res, err := s.Search(context.Background(), []float32{1, 0}, "", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].DocumentID, "ties keep insertion order")
	assert.Equal(t, "d", res[1].DocumentID)
	assert.Equal(t, "c", res[2].DocumentID)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}

	res, err = s.Search(context.Background(), []float32{0, 1}, "legal", 3)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].DocumentID)

	res, err = s.Search(context.Background(), []float32{0, 1}, "operations", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Ingest(context.Background(), []Chunk{{ID: "a", Embedding: []float32{1, 0}}}))

	_, err := s.Search(context.Background(), []float32{1, 0, 0}, "", 3)
	assert.Error(t, err)
}

func TestMemoryStore_IngestReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Ingest(ctx, []Chunk{{ID: "a", Content: "old", Embedding: []float32{1}}}))
	require.NoError(t, s.Ingest(ctx, []Chunk{{ID: "a", Content: "new", Embedding: []float32{1}}}))
	assert.Equal(t, 1, s.Len())

	res, err := s.Search(ctx, []float32{1}, "", 1)
	require.NoError(t, err)
	assert.Equal(t, "new", res[0].Content)

	assert.Error(t, s.Ingest(ctx, []Chunk{{ID: "b"}}), "chunks must be embedded")
}

func TestMemoryStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Search(ctx, []float32{1}, "", 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph.\r\n\r\nSecond one.\n\n\n\nThird paragraph is a bit longer than the others."

	assert.Equal(t, []string{
		"First paragraph.",
		"Second one.",
		"Third paragraph is a bit longer than the others.",
	}, SplitParagraphs(text, 0))

	merged := SplitParagraphs(text, 40)
	require.Len(t, merged, 3)
	assert.Equal(t, "First paragraph.\n\nSecond one.", merged[0])
	for _, c := range merged {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
	}
	assert.Equal(t, "Third paragraph is a bit longer than the", merged[1])
	assert.Equal(t, "others.", merged[2])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello big...", Truncate("hello big world", 12))
	assert.Equal(t, "éééé...", Truncate("éééééééé", 4))
	assert.Equal(t, "anything", Truncate("anything", 0))
}

func TestLoader_Batches(t *testing.T) {
	embedder := &MockEmbeddingProvider{}
	store := NewMemoryStore()
	loader := NewLoader(LoaderConfig{
		Embedder:  embedder,
		Writer:    store,
		BatchSize: 2,
		ChunkSize: 20,
		Logger:    quietLogger(),
	})

	n, err := loader.Load(context.Background(), []Document{
		{Source: "support/vpn.md", Category: "support", Text: "Install the client.\n\nOpen the app.\n\nLog in."},
		{Source: "faq.txt", Text: "Call the desk."},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, store.Len())
	require.Len(t, embedder.batches, 2)
	assert.Len(t, embedder.batches[0], 2)
	assert.Len(t, embedder.batches[1], 2)

	res, err := store.Search(context.Background(), []float32{1, 1}, "support", 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	ids := []string{res[0].DocumentID, res[1].DocumentID, res[2].DocumentID}
	assert.ElementsMatch(t, []string{"support/vpn.md#1", "support/vpn.md#2", "support/vpn.md#3"}, ids)
}

func TestLoader_EmbedFailure(t *testing.T) {
	embedder := &MockEmbeddingProvider{
		EmbedBatchFunc: func(context.Context, []string) ([][]float32, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	loader := NewLoader(LoaderConfig{Embedder: embedder, Writer: NewMemoryStore(), Logger: quietLogger()})

	_, err := loader.Load(context.Background(), []Document{{Source: "a.md", Text: "text"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestLoader_CountMismatch(t *testing.T) {
	embedder := &MockEmbeddingProvider{
		EmbedBatchFunc: func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		},
	}
	loader := NewLoader(LoaderConfig{Embedder: embedder, Writer: NewMemoryStore(), Logger: quietLogger()})

	_, err := loader.Load(context.Background(), []Document{{Source: "a.md", Text: "one\n\ntwo"}, {Source: "b.md", Text: "three"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestReadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"Support/vpn.md":          {Data: []byte("VPN setup")},
		"support/printers/hp.txt": {Data: []byte("HP printers")},
		"readme.md":               {Data: []byte("General")},
		"legal/image.png":         {Data: []byte{0x89}},
	}

	docs, err := ReadFS(fsys)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	byPath := map[string]Document{}
	for _, d := range docs {
		byPath[d.Source] = d
	}
	assert.Equal(t, "support", byPath["Support/vpn.md"].Category)
	assert.Equal(t, "support", byPath["support/printers/hp.txt"].Category)
	assert.Equal(t, "", byPath["readme.md"].Category)
	assert.True(t, strings.HasPrefix(byPath["readme.md"].Text, "General"))
}
