//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

func okResponse(content string) chatResponse {
	var choice chatChoice
	choice.Message.Content = content
	choice.FinishReason = "stop"
	return chatResponse{
		Choices: []chatChoice{choice},
		Usage:   chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func TestCompletionProvider_Complete(t *testing.T) {
	var received chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(okResponse("Bonjour!"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	provider := NewCompletionProvider("test-key", WithCompletionClient(client))

	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are a support assistant.",
		Messages:     llm.UserMessage("Salut"),
		Temperature:  0,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Bonjour!" {
		t.Errorf("expected 'Bonjour!', got %s", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" {
		t.Errorf("expected system + user messages, got %+v", received.Messages)
	}
	if received.Temperature == nil || *received.Temperature != 0 {
		t.Errorf("expected explicit zero temperature, got %v", received.Temperature)
	}
	if received.ResponseFormat != nil {
		t.Error("expected no response_format without JSON mode")
	}
}

func TestCompletionProvider_Complete_JSONMode(t *testing.T) {
	var received chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(okResponse(`{"summary":"ok"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	provider := NewCompletionProvider("test-key", WithCompletionClient(client))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: llm.UserMessage("analyse"),
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if received.ResponseFormat == nil || received.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", received.ResponseFormat)
	}
}

func TestCompletionProvider_Complete_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad key", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			client := NewClient("test-key", WithBaseURL(server.URL))
			provider := NewCompletionProvider("test-key", WithCompletionClient(client))

			_, err := provider.Complete(context.Background(), llm.CompletionRequest{
				Messages: llm.UserMessage("hi"),
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if llm.IsRetryable(err) != tt.retryable {
				t.Errorf("expected retryable=%v, got %v (%v)", tt.retryable, llm.IsRetryable(err), err)
			}
		})
	}
}

func TestCompletionProvider_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient("test-key", WithBaseURL(url))
	provider := NewCompletionProvider("test-key", WithCompletionClient(client))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: llm.UserMessage("hi"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsRetryable(err) {
		t.Errorf("expected network failure to be retryable, got %v", err)
	}
}

func TestCompletionProvider_Options(t *testing.T) {
	provider := NewCompletionProvider(
		"test-key",
		WithCompletionModel("gpt-4"),
		WithMaxTokens(1000),
		WithTemperature(0.5),
	)

	if provider.ModelName() != "gpt-4" {
		t.Errorf("expected gpt-4, got %s", provider.ModelName())
	}
	if provider.maxTokens != 1000 {
		t.Errorf("expected maxTokens 1000, got %d", provider.maxTokens)
	}
	if provider.temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", provider.temperature)
	}
}
