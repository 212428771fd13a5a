//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ollama provides an Ollama API client for locally hosted models.
package ollama

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

const (
	defaultBaseURL        = "http://localhost:11434"
	defaultEmbeddingModel = "nomic-embed-text"
	defaultChatModel      = "llama3.2"
	defaultTimeout        = 120 // Ollama can be slower for large models
)

// Client is an Ollama API client. Ollama needs no API key.
type Client struct {
	api *llm.JSONClient
}

// NewClient creates a new Ollama client.
func NewClient(opts ...ClientOption) *Client {
	api := llm.NewJSONClient(defaultBaseURL, defaultTimeout*time.Second)
	api.DecodeError = decodeError

	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.api.BaseURL = url
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		c.api.HTTP.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.api.HTTP = client
	}
}

// errorResponse is the body Ollama sends with a non-200 status.
type errorResponse struct {
	Error string `json:"error"`
}

// decodeError extracts error information from an API response. A model
// that is not pulled yet comes back as 404 and is not retryable.
func decodeError(status int, body []byte) error {
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return llm.NewHTTPError(status, errResp.Error)
	}
	return llm.NewHTTPError(status, string(body))
}
