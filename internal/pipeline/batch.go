//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// BatchQuestion is one entry of a batch evaluation input.
type BatchQuestion struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// BatchInput is the batch evaluation input document.
type BatchInput struct {
	Questions []BatchQuestion `json:"Questions"`
}

// BatchAnswer is one entry of a batch evaluation output.
type BatchAnswer struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// BatchOutput is the batch evaluation output document.
type BatchOutput struct {
	Team    string        `json:"Team"`
	Answers []BatchAnswer `json:"Answers"`
}

// TicketProcessor runs a single ticket.
type TicketProcessor interface {
	ProcessTicket(ctx context.Context, text string) *Result
}

// RunBatch processes each question in order and collects the answers. A
// cancelled context stops the batch; the answers collected so far are
// returned with the context error.
func RunBatch(ctx context.Context, p TicketProcessor, in BatchInput, team string) (BatchOutput, error) {
	out := BatchOutput{
		Team:    team,
		Answers: make([]BatchAnswer, 0, len(in.Questions)),
	}
	for _, q := range in.Questions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res := p.ProcessTicket(ctx, q.Query)
		out.Answers = append(out.Answers, BatchAnswer{ID: q.ID, Answer: res.Answer()})
	}
	return out, nil
}

// ReadBatch decodes a batch evaluation input document.
func ReadBatch(r io.Reader) (BatchInput, error) {
	var in BatchInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return in, fmt.Errorf("failed to decode batch input: %w", err)
	}
	return in, nil
}

// WriteBatch encodes a batch evaluation output document.
func WriteBatch(w io.Writer, out BatchOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
