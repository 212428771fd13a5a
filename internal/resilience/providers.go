//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package resilience

import (
	"context"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// CompletionProvider decorates an llm.CompletionProvider with a Policy.
type CompletionProvider struct {
	inner  llm.CompletionProvider
	policy *Policy
}

// WrapCompletion returns inner guarded by policy.
func WrapCompletion(inner llm.CompletionProvider, policy *Policy) *CompletionProvider {
	return &CompletionProvider{inner: inner, policy: policy}
}

// Complete calls the wrapped provider under the policy.
func (c *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	return Call(ctx, c.policy, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return c.inner.Complete(ctx, req)
	})
}

// ModelName returns the wrapped model name.
func (c *CompletionProvider) ModelName() string {
	return c.inner.ModelName()
}

// EmbeddingProvider decorates an llm.EmbeddingProvider with a Policy.
type EmbeddingProvider struct {
	inner  llm.EmbeddingProvider
	policy *Policy
}

// WrapEmbedding returns inner guarded by policy.
func WrapEmbedding(inner llm.EmbeddingProvider, policy *Policy) *EmbeddingProvider {
	return &EmbeddingProvider{inner: inner, policy: policy}
}

// Embed calls the wrapped provider under the policy.
func (e *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return Call(ctx, e.policy, func(ctx context.Context) ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
}

// EmbedBatch calls the wrapped provider under the policy.
func (e *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Call(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		return e.inner.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the wrapped dimensionality.
func (e *EmbeddingProvider) Dimensions() int {
	return e.inner.Dimensions()
}

// ModelName returns the wrapped model name.
func (e *EmbeddingProvider) ModelName() string {
	return e.inner.ModelName()
}

var (
	_ llm.CompletionProvider = (*CompletionProvider)(nil)
	_ llm.EmbeddingProvider  = (*EmbeddingProvider)(nil)
)
