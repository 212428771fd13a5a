//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

func TestBuildMessages_SystemPrompt(t *testing.T) {
	provider := NewCompletionProvider("test-api-key")

	tests := []struct {
		name           string
		req            llm.CompletionRequest
		expectSystem   string
		expectContains []string
		expectMessages int
	}{
		{
			name: "system prompt only",
			req: llm.CompletionRequest{
				SystemPrompt: "You are a support assistant.",
				Messages:     llm.UserMessage("Hello"),
			},
			expectSystem:   "You are a support assistant.",
			expectMessages: 1,
		},
		{
			name: "system role folded into system prompt",
			req: llm.CompletionRequest{
				SystemPrompt: "Base.",
				Messages: []llm.Message{
					{Role: "system", Content: "Extra rule."},
					{Role: "user", Content: "Hello"},
				},
			},
			expectContains: []string{"Base.", "Extra rule."},
			expectMessages: 1,
		},
		{
			name: "json mode adds instruction",
			req: llm.CompletionRequest{
				SystemPrompt: "Analyse the ticket.",
				Messages:     llm.UserMessage("Hello"),
				JSONMode:     true,
			},
			expectContains: []string{"Analyse the ticket.", jsonInstruction},
			expectMessages: 1,
		},
		{
			name: "empty system prompt",
			req: llm.CompletionRequest{
				Messages: llm.UserMessage("Hello"),
			},
			expectSystem:   "",
			expectMessages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, system := provider.buildMessages(tt.req)

			if tt.expectContains == nil && system != tt.expectSystem {
				t.Errorf("expected system %q, got %q", tt.expectSystem, system)
			}
			for _, expected := range tt.expectContains {
				if !strings.Contains(system, expected) {
					t.Errorf("system should contain %q, got %q", expected, system)
				}
			}
			if len(messages) != tt.expectMessages {
				t.Errorf("expected %d messages, got %d", tt.expectMessages, len(messages))
			}
		})
	}
}

func TestComplete_SystemPromptInRequest(t *testing.T) {
	var capturedRequest messagesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-api-key" {
			t.Error("missing x-api-key header")
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
			return
		}
		if err := json.Unmarshal(body, &capturedRequest); err != nil {
			t.Errorf("failed to unmarshal request: %v", err)
			return
		}

		response := messagesResponse{
			Content:    []contentBlock{{Type: "text", Text: "Test "}, {Type: "text", Text: "response"}},
			StopReason: "end_turn",
			Usage:      messagesUsage{InputTokens: 100, OutputTokens: 10},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test-api-key", WithBaseURL(server.URL))
	provider := NewCompletionProvider("test-api-key", WithCompletionClient(client))

	prompt := "You are a helpdesk assistant."
	resp, err := provider.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages:     llm.UserMessage("Hello"),
		Temperature:  0,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Test response" {
		t.Errorf("expected concatenated text blocks, got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 110 {
		t.Errorf("expected 110 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if capturedRequest.System != prompt {
		t.Errorf("expected system %q, got %q", prompt, capturedRequest.System)
	}
	if capturedRequest.Temperature == nil || *capturedRequest.Temperature != 0 {
		t.Errorf("expected explicit zero temperature, got %v", capturedRequest.Temperature)
	}
}

func TestComplete_Overloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer server.Close()

	client := NewClient("test-api-key", WithBaseURL(server.URL))
	provider := NewCompletionProvider("test-api-key", WithCompletionClient(client))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: llm.UserMessage("Hello"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsRetryable(err) {
		t.Errorf("expected overload to be retryable, got %v", err)
	}
	if !strings.Contains(err.Error(), "Overloaded") {
		t.Errorf("expected API message in error, got %v", err)
	}
}

func TestComplete_InvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	client := NewClient("bad", WithBaseURL(server.URL))
	provider := NewCompletionProvider("bad", WithCompletionClient(client))

	_, err := provider.Complete(context.Background(), llm.CompletionRequest{
		Messages: llm.UserMessage("Hello"),
	})
	if err == nil || llm.IsRetryable(err) {
		t.Errorf("expected non-retryable auth error, got %v", err)
	}
}
