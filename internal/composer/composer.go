//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package composer writes the user-facing reply: either the final answer,
// restricted to the drafted solution, or an empathetic notice that a
// specialist is reviewing the request.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/evaluator"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// FallbackNotice is sent when no reply can be generated.
const FallbackNotice = "Merci pour votre message. Votre demande a été transmise à un conseiller qui reviendra vers vous rapidement.\n\n" +
	"Thank you for your message. Your request has been passed to a specialist who will get back to you shortly."

// Composition is the reply to send.
type Composition struct {
	FinalResponse string `json:"final_response"`
	Escalated     bool   `json:"escalated"`
}

// Failure reports that generation failed (exhausted retries or an open
// circuit). The accompanying Composition carries FallbackNotice and is
// always escalated.
type Failure struct {
	Cause error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("response composition failed: %v", e.Cause)
}

func (e *Failure) Unwrap() error {
	return e.Cause
}

// Config contains the dependencies of a Composer. Provider should be
// guarded by a resilience.Policy.
type Config struct {
	Provider llm.CompletionProvider
	Logger   *slog.Logger
}

// Composer implements the response composition stage.
type Composer struct {
	provider llm.CompletionProvider
	logger   *slog.Logger
}

// New creates a Composer.
func New(cfg Config) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{provider: cfg.Provider, logger: logger}
}

// Compose writes the reply. An evaluation that did not pass produces the
// escalation notice; otherwise the answer is rewritten from solution
// only.
func (c *Composer) Compose(ctx context.Context, query, solution string, ev evaluator.Evaluation) (Composition, error) {
	if !ev.Passed {
		return c.escalation(ctx, query)
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		Messages:     llm.UserMessage("Solution:\n" + solution + "\n\nCustomer request:\n" + query),
		MaxTokens:    800,
		Temperature:  0.3,
	})
	if err != nil {
		return c.fallback(err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return c.fallback(fmt.Errorf("empty completion"))
	}
	return Composition{FinalResponse: text}, nil
}

func (c *Composer) escalation(ctx context.Context, query string) (Composition, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: escalationSystemPrompt,
		Messages:     llm.UserMessage(query),
		MaxTokens:    300,
		Temperature:  0.5,
	})
	if err != nil {
		return c.fallback(err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		text = FallbackNotice
	}
	return Composition{FinalResponse: text, Escalated: true}, nil
}

func (c *Composer) fallback(cause error) (Composition, error) {
	c.logger.Warn("composition failed, sending fallback notice", "error", cause)
	return Composition{FinalResponse: FallbackNotice, Escalated: true}, &Failure{Cause: cause}
}

const answerSystemPrompt = `You write the final reply to a customer support request.
Use only the information contained in the solution text. Do not add steps, facts, links or assumptions that are not in it.
Be polite and concise, and answer in the language of the customer request.`

const escalationSystemPrompt = `You write a short, empathetic reply to a customer support request that a human specialist will now handle.
Acknowledge the request and say that a specialist is reviewing it and will get back to them.
Do not attempt to solve the problem. Do not mention any internal system, score, model or document.
Answer in the language of the customer request.`
