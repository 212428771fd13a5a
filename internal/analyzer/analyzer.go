//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package analyzer derives a structured understanding of a masked ticket
// with a single structured-output model call.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/keywords"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// Analysis is the derived understanding of a ticket.
type Analysis struct {
	Summary        string   `json:"summary"`
	Keywords       []string `json:"keywords"`
	Category       string   `json:"category,omitempty"`
	InScope        bool     `json:"is_in_scope"`
	Sufficient     bool     `json:"is_sufficient"`
	OptimizedQuery string   `json:"optimized_query"`
	Degraded       bool     `json:"degraded,omitempty"`
}

// DegradedError reports that the model call or its parsing failed and a
// safe default Analysis was substituted.
type DegradedError struct {
	Cause error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("query analysis degraded: %v", e.Cause)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

// maxKeywords bounds both model and locally extracted keywords.
const maxKeywords = 8

// Config contains the dependencies of an Analyzer.
type Config struct {
	Provider   llm.CompletionProvider
	Domain     string
	Categories []config.Category
	Logger     *slog.Logger
}

// Analyzer implements the query analysis stage.
type Analyzer struct {
	provider   llm.CompletionProvider
	domain     string
	categories []config.Category
	known      map[string]bool
	prompt     string
	logger     *slog.Logger
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = config.DefaultCategories()
	}

	a := &Analyzer{
		provider:   cfg.Provider,
		domain:     cfg.Domain,
		categories: cats,
		known:      make(map[string]bool, len(cats)),
		logger:     logger,
	}
	for _, c := range cats {
		a.known[strings.ToLower(c.Name)] = true
	}
	a.prompt = a.buildSystemPrompt()
	return a
}

// modelAnalysis is the JSON object the model is asked to return.
type modelAnalysis struct {
	Summary        string   `json:"summary"`
	Keywords       []string `json:"keywords"`
	Category       string   `json:"category"`
	InScope        *bool    `json:"in_scope"`
	IsSufficient   bool     `json:"is_sufficient"`
	OptimizedQuery string   `json:"optimized_query"`
}

// Analyse never fails the pipeline. On any call or parse failure it
// returns a degraded Analysis together with a *DegradedError.
func (a *Analyzer) Analyse(ctx context.Context, maskedText string) (Analysis, error) {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: a.prompt,
		Messages:     llm.UserMessage(maskedText),
		MaxTokens:    512,
		Temperature:  0,
		JSONMode:     true,
	})
	if err != nil {
		return a.degraded(maskedText, err)
	}

	var m modelAnalysis
	if err := llm.DecodeJSON(resp.Content, &m); err != nil {
		return a.degraded(maskedText, err)
	}

	out := Analysis{
		Summary:        strings.TrimSpace(m.Summary),
		Keywords:       normalizeKeywords(m.Keywords),
		Category:       a.normalizeCategory(m.Category),
		InScope:        m.InScope == nil || *m.InScope,
		Sufficient:     m.IsSufficient,
		OptimizedQuery: strings.TrimSpace(m.OptimizedQuery),
	}
	if out.OptimizedQuery == "" {
		out.OptimizedQuery = maskedText
	}
	if len(out.Keywords) == 0 {
		out.Keywords = keywords.Extract(maskedText, maxKeywords)
	}

	a.logger.Debug("query analysed",
		"category", out.Category,
		"in_scope", out.InScope,
		"is_sufficient", out.Sufficient,
		"keywords", len(out.Keywords),
	)
	return out, nil
}

func (a *Analyzer) degraded(maskedText string, cause error) (Analysis, error) {
	a.logger.Warn("query analysis failed, using defaults", "error", cause)
	return Analysis{
		Summary:        fmt.Sprintf("[analysis unavailable: %v]", cause),
		Keywords:       keywords.Extract(maskedText, maxKeywords),
		InScope:        true,
		Sufficient:     false,
		OptimizedQuery: maskedText,
		Degraded:       true,
	}, &DegradedError{Cause: cause}
}

// normalizeCategory drops labels outside the configured set.
func (a *Analyzer) normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if a.known[c] {
		return c
	}
	return ""
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func (a *Analyzer) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You analyse support tickets")
	if a.domain != "" {
		fmt.Fprintf(&b, " for %s", a.domain)
	}
	b.WriteString(`.
Reply with a single JSON object and nothing else, using these fields:
- "summary": one sentence summarising the request, in the language of the ticket
- "keywords": up to 8 search keywords
- "category": exactly one of the categories listed below
- "in_scope": true if the request belongs to the supported domain, false otherwise
- "is_sufficient": true if the request is specific enough to search documentation
- "optimized_query": a search query that rephrases the request and adds synonyms

Categories:
`)
	for _, c := range a.categories {
		if c.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", c.Name)
		}
	}
	b.WriteString("\nPersonal data has been replaced by placeholders such as [EMAIL]; keep them as they are.")
	return b.String()
}
