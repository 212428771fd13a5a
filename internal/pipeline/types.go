//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline runs a ticket through the routing stages and decides
// between an automated answer and a human specialist.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/corpus"
	"github.com/pgEdge/pgedge-ticket-router/internal/evaluator"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
)

// State is a step of the routing state machine.
type State string

// States. Answered, Escalated, Rejected and Errored are terminal.
const (
	StateReceived  State = "received"
	StateSanitized State = "sanitized"
	StateAnalyzed  State = "analyzed"
	StateRetrieved State = "retrieved"
	StateEvaluated State = "evaluated"
	StateAnswered  State = "answered"
	StateEscalated State = "escalated"
	StateRejected  State = "rejected"
	StateErrored   State = "errored"
)

// Escalation reasons.
const (
	ReasonNoInformation    = "No information found"
	ReasonLowConfidence    = "Low confidence score (%.2f)"
	ReasonComposerFailed   = "Response generation failed"
	ReasonProcessingFailed = "Internal processing error"
	ReasonTimedOut         = "Processing time limit exceeded"
	ReasonLowRating        = "Low customer rating (%d/5)"
)

// OutOfScopeMessage answers requests outside the supported domain.
const OutOfScopeMessage = "Nous sommes désolés, cette demande ne relève pas du support que nous proposons.\n\n" +
	"We are sorry, this request is outside the scope of the support we provide."

// RatingEscalationMessage acknowledges a poor rating.
const RatingEscalationMessage = "Nous sommes désolés que la réponse ne vous ait pas aidé. Un conseiller va reprendre votre demande.\n\n" +
	"We are sorry the answer did not help. A specialist will follow up on your request."

// Outcome is the single result variant of a pipeline run: *Answered,
// *Rejected, *Escalated or *Errored.
type Outcome interface {
	outcome()
}

// Answered is a response sent without human review.
type Answered struct {
	FinalResponse string            `json:"final_response"`
	Confidence    float64           `json:"confidence"`
	Analysis      analyzer.Analysis `json:"analysis"`
}

// Rejected is a ticket refused by policy.
type Rejected struct {
	Reasons []string `json:"reasons"`
	Message string   `json:"message"`
}

// Escalated is a ticket routed to a human specialist.
type Escalated struct {
	TargetDepartment string   `json:"target_department"`
	Summary          string   `json:"summary"`
	Keywords         []string `json:"keywords"`
	Reason           string   `json:"reason"`
	Message          string   `json:"message"`
	SensitiveData    bool     `json:"sensitive_data"`
}

// Errored is a run abandoned by its caller.
type Errored struct {
	Message string `json:"message"`
}

func (*Answered) outcome()  {}
func (*Rejected) outcome()  {}
func (*Escalated) outcome() {}
func (*Errored) outcome()   {}

// Result is everything a run produced. Stage fields are nil when the run
// ended before the stage.
type Result struct {
	TraceID      uuid.UUID             `json:"trace_id"`
	Status       State                 `json:"status"`
	Outcome      Outcome               `json:"outcome"`
	States       []State               `json:"states"`
	Precheck     sanitizer.Report      `json:"precheck"`
	Analysis     *analyzer.Analysis    `json:"analysis,omitempty"`
	Evidence     []corpus.Evidence     `json:"evidence,omitempty"`
	FallbackUsed bool                  `json:"fallback_used"`
	Evaluation   *evaluator.Evaluation `json:"evaluation,omitempty"`
}

// Answer is the text to show the user, whatever the outcome.
func (r *Result) Answer() string {
	switch o := r.Outcome.(type) {
	case *Answered:
		return o.FinalResponse
	case *Escalated:
		return o.Message
	case *Rejected:
		return o.Message
	case *Errored:
		return o.Message
	}
	return ""
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// RatingEvent is a customer rating of a delivered answer.
type RatingEvent struct {
	TicketID string `json:"ticket_id"`
	Stars    int    `json:"stars"`
}
