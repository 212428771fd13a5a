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
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// Document is a source document before chunking.
type Document struct {
	Source   string
	Category string
	Text     string
}

// LoaderConfig contains the dependencies of a Loader.
type LoaderConfig struct {
	Embedder  llm.EmbeddingProvider
	Writer    Writer
	BatchSize int // Texts per embedding request, default 32
	ChunkSize int // Max runes per chunk, default 1000
	Logger    *slog.Logger
}

// Loader chunks documents, embeds them in bounded batches and writes the
// result to the corpus.
type Loader struct {
	embedder  llm.EmbeddingProvider
	writer    Writer
	batchSize int
	chunkSize int
	logger    *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	return &Loader{
		embedder:  cfg.Embedder,
		writer:    cfg.Writer,
		batchSize: batch,
		chunkSize: size,
		logger:    logger,
	}
}

// Load ingests docs and returns the number of chunks written. Chunk IDs
// are "<source>#<n>", n counting from 1 within each source.
func (l *Loader) Load(ctx context.Context, docs []Document) (int, error) {
	var chunks []Chunk
	for _, d := range docs {
		for i, text := range SplitParagraphs(d.Text, l.chunkSize) {
			chunks = append(chunks, Chunk{
				ID:       fmt.Sprintf("%s#%d", d.Source, i+1),
				Source:   d.Source,
				Category: d.Category,
				Content:  text,
			})
		}
	}

	for start := 0; start < len(chunks); start += l.batchSize {
		end := min(start+l.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := l.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return start, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(vectors))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := l.writer.Ingest(ctx, batch); err != nil {
			return start, fmt.Errorf("failed to ingest chunks %d-%d: %w", start, end-1, err)
		}

		l.logger.Debug("ingested batch", "from", start, "to", end-1)
	}

	l.logger.Info("corpus loaded", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}

// ReadDir reads the .md and .txt files under dir. The first sub-directory
// below dir names the category; files directly in dir have none.
func ReadDir(dir string) ([]Document, error) {
	return ReadFS(os.DirFS(dir))
}

// ReadFS is ReadDir over an fs.FS.
func ReadFS(fsys fs.FS) ([]Document, error) {
	var docs []Document
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".md", ".txt":
		default:
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		var category string
		if parts := strings.Split(p, "/"); len(parts) > 1 {
			category = strings.ToLower(parts[0])
		}

		docs = append(docs, Document{
			Source:   p,
			Category: category,
			Text:     string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
