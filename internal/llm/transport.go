//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds what is read from a model service reply.
const maxResponseBytes = 32 << 20

// ErrorDecoder turns a non-200 reply into a classified error. Decoders
// usually pull the provider's message out of body and hand it to
// NewHTTPError.
type ErrorDecoder func(status int, body []byte) error

// JSONClient posts JSON requests to a model service and decodes the JSON
// replies. Providers configure it with their base URL, auth headers and
// error format.
type JSONClient struct {
	HTTP        *http.Client
	BaseURL     string
	Header      http.Header
	DecodeError ErrorDecoder
}

// NewJSONClient creates a client for baseURL with the given timeout.
func NewJSONClient(baseURL string, timeout time.Duration) *JSONClient {
	return &JSONClient{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: baseURL,
		Header:  make(http.Header),
	}
}

// Post sends in to path and decodes a 200 reply into out. Transport
// failures and error statuses come back classified for the retry policy.
func (c *JSONClient) Post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return NewTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			return NewHTTPError(resp.StatusCode, "failed to read body")
		}
		return NewTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		if c.DecodeError != nil {
			return c.DecodeError(resp.StatusCode, body)
		}
		return NewHTTPError(resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
