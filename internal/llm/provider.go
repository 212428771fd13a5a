//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides interfaces and implementations for LLM providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// Returns embeddings in the same order as input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced.
	Dimensions() int

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider generates text completions using an LLM.
type CompletionProvider interface {
	// Complete generates a completion for the given request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	// SystemPrompt is the system-level instruction for the model.
	SystemPrompt string

	// Messages is the conversation. The pipeline sends a single user
	// message per call.
	Messages []Message

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, uses the provider's default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0+ = creative).
	// If negative, uses the provider's default.
	Temperature float64

	// JSONMode asks the provider to constrain the output to a single JSON
	// object. Providers without native support add an instruction instead.
	JSONMode bool
}

// Message represents a message in the conversation.
type Message struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// UserMessage is a shorthand for a single user turn.
func UserMessage(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage represents token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Error is a provider failure classified for the retry policy.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Common error codes
const (
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeInvalidKey   = "invalid_api_key"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeModelError   = "model_error"
	ErrCodeTimeout      = "timeout"
	ErrCodeNetworkError = "network_error"
)

// NewHTTPError classifies an HTTP status into an *Error. Rate limits and
// server-side failures are retryable; other client errors are not.
func NewHTTPError(status int, message string) *Error {
	e := &Error{
		Message:    message,
		StatusCode: status,
	}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = ErrCodeInvalidKey
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = ErrCodeTimeout
		e.Retryable = true
	case status >= 500:
		e.Code = ErrCodeModelError
		e.Retryable = true
	default:
		e.Code = ErrCodeBadRequest
	}
	return e
}

// NewTransportError wraps a failed HTTP round trip as a retryable network
// error. Context errors pass through so cancellation stays distinguishable.
func NewTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request failed: %w", err)
	}
	return &Error{
		Code:      ErrCodeNetworkError,
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
	}
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsClassified reports whether err carries a provider classification.
func IsClassified(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
