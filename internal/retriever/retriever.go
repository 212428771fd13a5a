//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package retriever ranks the knowledge corpus against a query and drafts
// an answer grounded in the retrieved snippets.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/corpus"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// NoInformationAnswer is returned without calling the model when the
// corpus has nothing to offer.
const NoInformationAnswer = "The documentation does not contain information about this request."

// Solution is a drafted answer and the evidence it was grounded on.
type Solution struct {
	Answer       string            `json:"answer"`
	Documents    []corpus.Evidence `json:"used_documents"`
	FallbackUsed bool              `json:"fallback_used"`

	// Context is the snippet text shown to the model.
	Context string `json:"-"`
}

// RetrievalScore is the similarity of the best document, 0 when none.
func (s *Solution) RetrievalScore() float64 {
	if len(s.Documents) == 0 {
		return 0
	}
	return s.Documents[0].Score
}

// Config contains the dependencies of a Retriever.
type Config struct {
	Embedder      llm.EmbeddingProvider
	Completer     llm.CompletionProvider
	Store         corpus.Store
	TopK          int // Default 3
	SnippetLength int // Max runes per snippet, default 500
	Logger        *slog.Logger
}

// Retriever implements the evidence retrieval stage.
type Retriever struct {
	embedder      llm.EmbeddingProvider
	completer     llm.CompletionProvider
	store         corpus.Store
	topK          int
	snippetLength int
	logger        *slog.Logger
}

// New creates a Retriever.
func New(cfg Config) *Retriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	snippet := cfg.SnippetLength
	if snippet <= 0 {
		snippet = 500
	}
	return &Retriever{
		embedder:      cfg.Embedder,
		completer:     cfg.Completer,
		store:         cfg.Store,
		topK:          topK,
		snippetLength: snippet,
		logger:        logger,
	}
}

// FindSolution embeds query, ranks the corpus and drafts a grounded
// answer. When category yields no match the search is repeated
// unfiltered and FallbackUsed is set.
func (r *Retriever) FindSolution(ctx context.Context, query, category string) (*Solution, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	docs, err := r.store.Search(ctx, embedding, category, r.topK)
	if err != nil {
		return nil, fmt.Errorf("corpus search failed: %w", err)
	}

	sol := &Solution{}
	if len(docs) == 0 && category != "" {
		r.logger.Debug("no evidence in category, searching whole corpus", "category", category)
		docs, err = r.store.Search(ctx, embedding, "", r.topK)
		if err != nil {
			return nil, fmt.Errorf("corpus search failed: %w", err)
		}
		sol.FallbackUsed = true
	}
	sol.Documents = docs

	if len(docs) == 0 {
		sol.Answer = NoInformationAnswer
		return sol, nil
	}

	snippets := r.buildSnippets(docs)
	sol.Context = strings.Join(snippets, "\n\n")

	resp, err := r.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: groundedSystemPrompt,
		Messages:     llm.UserMessage(buildUserPrompt(sol.Context, query)),
		MaxTokens:    800,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to draft answer: %w", err)
	}

	sol.Answer = strings.TrimSpace(resp.Content)

	r.logger.Debug("solution drafted",
		"documents", len(docs),
		"top_score", sol.RetrievalScore(),
		"fallback_used", sol.FallbackUsed,
	)
	return sol, nil
}

func (r *Retriever) buildSnippets(docs []corpus.Evidence) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = fmt.Sprintf("[Doc %d] %s", i+1, corpus.Truncate(d.Content, r.snippetLength))
	}
	return out
}

const groundedSystemPrompt = `You are a support assistant. Answer using only the documentation excerpts provided.
Do not add facts, steps or links that are not in the excerpts.
If the excerpts do not contain the information needed, say clearly that the information was not found in the documentation.
Answer in the language of the question.`

func buildUserPrompt(context, query string) string {
	return "Documentation excerpts:\n" + context + "\n\nQuestion:\n" + query
}
