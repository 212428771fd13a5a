//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package mistral provides Mistral AI providers. The Mistral API is
// wire-compatible with OpenAI's chat and embeddings endpoints, so these
// providers are thin wrappers over the openai client.
package mistral

import (
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/openai"
)

const (
	// DefaultBaseURL is the public Mistral API endpoint.
	DefaultBaseURL = "https://api.mistral.ai/v1"

	defaultChatModel      = "mistral-small-latest"
	defaultEmbeddingModel = "mistral-embed"
	defaultDimensions     = 1024
)

// Options holds the settings shared by both providers.
type Options struct {
	BaseURL     string
	Model       string
	TimeoutSecs int
}

func (o Options) client(apiKey string) *openai.Client {
	baseURL := o.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []openai.ClientOption{openai.WithBaseURL(baseURL)}
	if o.TimeoutSecs > 0 {
		opts = append(opts, openai.WithTimeout(o.TimeoutSecs))
	}
	return openai.NewClient(apiKey, opts...)
}

// NewCompletionProvider creates a Mistral chat provider.
func NewCompletionProvider(apiKey string, o Options) llm.CompletionProvider {
	model := o.Model
	if model == "" {
		model = defaultChatModel
	}
	return openai.NewCompletionProvider(apiKey,
		openai.WithCompletionClient(o.client(apiKey)),
		openai.WithCompletionModel(model),
	)
}

// NewEmbeddingProvider creates a Mistral embedding provider.
func NewEmbeddingProvider(apiKey string, o Options, dimensions int) llm.EmbeddingProvider {
	model := o.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return openai.NewEmbeddingProvider(apiKey,
		openai.WithEmbeddingClient(o.client(apiKey)),
		openai.WithEmbeddingModel(model),
		openai.WithDimensions(dimensions),
	)
}
