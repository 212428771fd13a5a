//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package mistral

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

func TestCompletionProvider_Defaults(t *testing.T) {
	p := NewCompletionProvider("k", Options{})
	if p.ModelName() != defaultChatModel {
		t.Errorf("expected %s, got %s", defaultChatModel, p.ModelName())
	}

	e := NewEmbeddingProvider("k", Options{}, 0)
	if e.ModelName() != defaultEmbeddingModel || e.Dimensions() != defaultDimensions {
		t.Errorf("unexpected embedding defaults: %s/%d", e.ModelName(), e.Dimensions())
	}
}

func TestCompletionProvider_UsesBaseURL(t *testing.T) {
	var path, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p := NewCompletionProvider("mistral-key", Options{BaseURL: server.URL, Model: "mistral-large-latest"})
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: llm.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected ok, got %q", resp.Content)
	}
	if path != "/chat/completions" || auth != "Bearer mistral-key" {
		t.Errorf("unexpected request path=%s auth=%s", path, auth)
	}
	if p.ModelName() != "mistral-large-latest" {
		t.Errorf("unexpected model %s", p.ModelName())
	}
}
