//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package anthropic provides an Anthropic API client.
package anthropic

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-haiku-latest"
	defaultTimeout = 60
	apiVersion     = "2023-06-01"
)

// Client is an Anthropic API client.
type Client struct {
	api *llm.JSONClient
}

// NewClient creates a new Anthropic client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	api := llm.NewJSONClient(defaultBaseURL, defaultTimeout*time.Second)
	api.Header.Set("x-api-key", apiKey)
	api.Header.Set("anthropic-version", apiVersion)
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

// ErrorResponse represents an Anthropic API error.
type ErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeError extracts error information from an API response. Anthropic
// reports overload as 529, which classifies as a retryable server error;
// the error type is checked as well in case a proxy rewrites the status.
func decodeError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return llm.NewHTTPError(status, string(body))
	}

	e := llm.NewHTTPError(status, errResp.Error.Message)
	if errResp.Error.Type == "overloaded_error" {
		e.Retryable = true
	}
	return e
}
