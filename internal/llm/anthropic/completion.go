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
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// jsonInstruction is appended to the system prompt in JSON mode since the
// messages API has no response format switch.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
}

// NewCompletionProvider creates a new Anthropic completion provider.
func NewCompletionProvider(apiKey string, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(apiKey),
		model:       defaultModel,
		maxTokens:   1024,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		p.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

// message represents a message in Anthropic's format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesRequest is the request format for the messages API.
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// messagesResponse is the response format from the messages API.
type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      messagesUsage  `json:"usage"`
}

// Complete generates a completion.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	messages, system := p.buildMessages(req)

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	msgReq := messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: &temperature,
	}

	var msgResp messagesResponse
	if err := p.client.api.Post(ctx, "/messages", msgReq, &msgResp); err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, c := range msgResp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:      content.String(),
		FinishReason: msgResp.StopReason,
		Usage: llm.TokenUsage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}

// buildMessages converts the request into Anthropic messages format.
// Returns messages and system prompt separately (Anthropic's format).
func (p *CompletionProvider) buildMessages(req llm.CompletionRequest) ([]message, string) {
	messages := make([]message, 0, len(req.Messages))
	var systemParts []string

	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}

	for _, msg := range req.Messages {
		// Anthropic only accepts "user" and "assistant" roles
		if msg.Role == "system" {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		messages = append(messages, message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if req.JSONMode {
		systemParts = append(systemParts, jsonInstruction)
	}

	return messages, strings.Join(systemParts, "\n\n")
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

// Ensure CompletionProvider implements the interface.
var _ llm.CompletionProvider = (*CompletionProvider)(nil)
