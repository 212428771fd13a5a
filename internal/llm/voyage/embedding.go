//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package voyage provides a Voyage AI embedding client.
package voyage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

const (
	defaultBaseURL = "https://api.voyageai.com/v1"
	defaultModel   = "voyage-3"
	defaultTimeout = 60

	inputTypeQuery    = "query"
	inputTypeDocument = "document"
)

// EmbeddingProvider implements the llm.EmbeddingProvider interface.
type EmbeddingProvider struct {
	api        *llm.JSONClient
	model      string
	dimensions int
}

// NewEmbeddingProvider creates a new Voyage embedding provider.
func NewEmbeddingProvider(apiKey string, opts ...EmbeddingOption) *EmbeddingProvider {
	api := llm.NewJSONClient(defaultBaseURL, defaultTimeout*time.Second)
	api.Header.Set("Authorization", "Bearer "+apiKey)
	api.DecodeError = decodeError

	p := &EmbeddingProvider{
		api:        api,
		model:      defaultModel,
		dimensions: 1024, // Default for voyage-3
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbeddingOption configures the embedding provider.
type EmbeddingOption func(*EmbeddingProvider)

// WithModel sets the embedding model.
func WithModel(model string) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected embedding dimensions.
func WithDimensions(dims int) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.dimensions = dims
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.api.BaseURL = url
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.api.HTTP.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		p.api.HTTP = client
	}
}

// embeddingRequest is the request format for the embeddings API.
type embeddingRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingResponse is the response format from the embeddings API.
type embeddingResponse struct {
	Data []embeddingData `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ErrorResponse represents a Voyage API error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func decodeError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Detail == "" {
		return llm.NewHTTPError(status, string(body))
	}
	return llm.NewHTTPError(status, errResp.Detail)
}

// Embed generates an embedding for a single ticket query. Voyage embeds
// queries and documents asymmetrically, so single texts are sent as
// queries and batches as documents.
func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.embed(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple knowledge-base documents.
func (p *EmbeddingProvider) EmbedBatch(
	ctx context.Context,
	texts []string,
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts, inputTypeDocument)
}

func (p *EmbeddingProvider) embed(
	ctx context.Context,
	texts []string,
	inputType string,
) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:     p.model,
		Input:     texts,
		InputType: inputType,
	}

	var embResp embeddingResponse
	if err := p.api.Post(ctx, "/embeddings", reqBody, &embResp); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the model name.
func (p *EmbeddingProvider) ModelName() string {
	return p.model
}

// Ensure EmbeddingProvider implements the interface.
var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
