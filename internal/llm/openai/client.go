//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package openai provides an OpenAI API client. The same wire format is
// spoken by other OpenAI-compatible services, so the client is also used
// with a different base URL.
package openai

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultChatModel      = "gpt-4o-mini"
	defaultTimeout        = 60
)

// Client is an OpenAI API client.
type Client struct {
	api *llm.JSONClient
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	api := llm.NewJSONClient(defaultBaseURL, defaultTimeout*time.Second)
	api.Header.Set("Authorization", "Bearer "+apiKey)
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

// ErrorResponse represents an OpenAI API error.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// decodeError reads the message of an OpenAI error body. Compatible
// services do not always follow the format, so the raw body is the
// fallback.
func decodeError(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return llm.NewHTTPError(status, string(body))
	}
	return llm.NewHTTPError(status, errResp.Error.Message)
}
