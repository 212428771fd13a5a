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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/composer"
	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/evaluator"
	"github.com/pgEdge/pgedge-ticket-router/internal/retriever"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
	"github.com/pgEdge/pgedge-ticket-router/internal/ticketstore"
)

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5 stars")

// Stage contracts. The concrete stages live in their own packages.
type (
	Sanitizer interface {
		RunPrecheck(text string) sanitizer.Report
	}
	Analyzer interface {
		Analyse(ctx context.Context, maskedText string) (analyzer.Analysis, error)
	}
	Retriever interface {
		FindSolution(ctx context.Context, query, category string) (*retriever.Solution, error)
	}
	Evaluator interface {
		Evaluate(ctx context.Context, in evaluator.Input) (evaluator.Evaluation, error)
	}
	Composer interface {
		Compose(ctx context.Context, query, solution string, ev evaluator.Evaluation) (composer.Composition, error)
	}
)

// Orchestrator runs tickets through the stages. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	sanitizer         Sanitizer
	analyzer          Analyzer
	retriever         Retriever
	evaluator         Evaluator
	composer          Composer
	sink              ticketstore.Sink
	analysis          config.AnalysisConfig
	defaultDepartment string
	threshold         float64
	budget            time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// OrchestratorConfig contains the configuration for creating an orchestrator.
type OrchestratorConfig struct {
	Sanitizer Sanitizer
	Analyzer  Analyzer
	Retriever Retriever
	Evaluator Evaluator
	Composer  Composer

	// Sink receives every terminal outcome except Errored. Defaults to
	// ticketstore.NopSink.
	Sink ticketstore.Sink

	// Analysis maps categories to escalation departments.
	Analysis          config.AnalysisConfig
	DefaultDepartment string
	Threshold         float64

	// Budget bounds the stages of one ticket. When it runs out the ticket
	// is escalated with composer.FallbackNotice. Zero means no budget.
	Budget time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// NewOrchestrator creates a new ticket routing orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = ticketstore.NopSink{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	dept := cfg.DefaultDepartment
	if dept == "" {
		dept = "general_support"
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.6
	}

	return &Orchestrator{
		sanitizer:         cfg.Sanitizer,
		analyzer:          cfg.Analyzer,
		retriever:         cfg.Retriever,
		evaluator:         cfg.Evaluator,
		composer:          cfg.Composer,
		sink:              sink,
		analysis:          cfg.Analysis,
		defaultDepartment: dept,
		threshold:         threshold,
		budget:            cfg.Budget,
		now:               now,
		logger:            logger,
	}
}

// ProcessTicket runs text through the pipeline. It never returns an error:
// every failure is mapped onto one of the Outcome variants.
//
// Stages run under the ticket budget. Cancellation of ctx abandons the
// run (Errored); exhausting the budget escalates it.
func (o *Orchestrator) ProcessTicket(ctx context.Context, text string) (res *Result) {
	res = &Result{TraceID: uuid.New()}
	res.enter(StateReceived)
	logger := o.logger.With("trace_id", res.TraceID.String())

	stageCtx := ctx
	if o.budget > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.budget)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "panic", fmt.Sprint(r), "state", res.lastState())
			res.enter(StateErrored)
			o.escalate(res, ReasonProcessingFailed, composer.FallbackNotice)
		}
		if _, abandoned := res.Outcome.(*Errored); !abandoned {
			o.publish(ctx, logger, res, 0)
		}
		logger.Info("ticket processed", "status", res.Status, "states", len(res.States))
	}()

	res.Precheck = o.sanitizer.RunPrecheck(text)
	if err := res.Precheck.Reject(); err != nil {
		var rej *sanitizer.RejectionError
		errors.As(err, &rej)
		logger.Info("ticket rejected by precheck", "reasons", rej.Reasons)
		o.finish(res, StateRejected, &Rejected{
			Reasons: rej.Reasons,
			Message: strings.Join(rej.Reasons, " "),
		})
		return res
	}
	res.enter(StateSanitized)
	masked := res.Precheck.MaskedContent
	logger.Debug("ticket sanitized", "masked_length", len(masked), "sensitive_data", res.Precheck.HasSensitiveData)

	if o.abandoned(ctx, res) {
		return res
	}

	analysis, err := o.analyzer.Analyse(stageCtx, masked)
	if o.abandoned(ctx, res) {
		return res
	}
	if err != nil {
		logger.Warn("continuing with degraded analysis", "error", err)
	}
	res.Analysis = &analysis
	if o.outOfTime(stageCtx, logger, res) {
		return res
	}
	res.enter(StateAnalyzed)

	if !analysis.InScope {
		logger.Info("ticket out of scope", "category", analysis.Category)
		o.finish(res, StateRejected, &Rejected{
			Reasons: []string{"Request is outside the supported domain."},
			Message: OutOfScopeMessage,
		})
		return res
	}

	sol, err := o.retriever.FindSolution(stageCtx, analysis.OptimizedQuery, analysis.Category)
	if o.abandoned(ctx, res) || o.outOfTime(stageCtx, logger, res) {
		return res
	}
	if err != nil {
		logger.Error("retrieval failed", "error", err)
		res.enter(StateErrored)
		o.escalateWithNotice(stageCtx, res, masked, ReasonProcessingFailed)
		return res
	}
	res.Evidence = sol.Documents
	res.FallbackUsed = sol.FallbackUsed
	res.enter(StateRetrieved)

	ev, err := o.evaluator.Evaluate(stageCtx, evaluator.Input{
		Query:          masked,
		Context:        sol.Context,
		Response:       sol.Answer,
		RetrievalScore: sol.RetrievalScore(),
		Threshold:      o.threshold,
	})
	if o.abandoned(ctx, res) || o.outOfTime(stageCtx, logger, res) {
		return res
	}
	if err != nil {
		logger.Warn("evaluation degraded", "error", err)
	}
	res.Evaluation = &ev
	res.enter(StateEvaluated)
	logger.Debug("answer evaluated", "confidence", ev.Confidence, "passed", ev.Passed, "is_refusal", ev.IsRefusal)

	comp, err := o.composer.Compose(stageCtx, masked, sol.Answer, ev)
	if o.abandoned(ctx, res) || o.outOfTime(stageCtx, logger, res) {
		return res
	}
	if err != nil {
		logger.Warn("composition failed", "error", err)
	}

	switch {
	case ev.Passed && !comp.Escalated:
		o.finish(res, StateAnswered, &Answered{
			FinalResponse: comp.FinalResponse,
			Confidence:    ev.Confidence,
			Analysis:      analysis,
		})
	case ev.Passed:
		o.escalate(res, ReasonComposerFailed, comp.FinalResponse)
	default:
		o.escalate(res, escalationReason(ev), comp.FinalResponse)
	}
	return res
}

func escalationReason(ev evaluator.Evaluation) string {
	if ev.IsRefusal {
		return ReasonNoInformation
	}
	return fmt.Sprintf(ReasonLowConfidence, ev.Confidence)
}

// HandleRating escalates a ticket whose answer was rated two stars or
// fewer. It returns nil when the rating requires no action.
func (o *Orchestrator) HandleRating(
	ctx context.Context,
	rating RatingEvent,
	analysis analyzer.Analysis,
	report sanitizer.Report,
) (*Escalated, error) {
	if rating.Stars < 1 || rating.Stars > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, rating.Stars)
	}
	if rating.Stars > 2 {
		return nil, nil
	}

	esc := o.escalation(&analysis, report, fmt.Sprintf(ReasonLowRating, rating.Stars), RatingEscalationMessage)

	// A ticket id handed out by ProcessTicket is its trace id; reuse it so
	// the rating lands under the same key as the processing record.
	traceID, parseErr := uuid.Parse(rating.TicketID)
	issued := parseErr == nil
	if !issued {
		traceID = uuid.New()
	}

	res := &Result{
		TraceID:  traceID,
		Status:   StateEscalated,
		Outcome:  esc,
		States:   []State{StateEscalated},
		Precheck: report,
		Analysis: &analysis,
	}
	logger := o.logger.With("trace_id", res.TraceID.String(), "ticket_id", rating.TicketID)
	logger.Info("low rating escalated", "stars", rating.Stars, "target_department", esc.TargetDepartment)

	rec := o.record(res, rating.Stars)
	rec.TicketID = rating.TicketID
	if issued {
		rec.TicketID = traceID.String()
	}
	if err := o.sink.Publish(ctx, rec); err != nil {
		logger.Warn("failed to publish rating escalation", "error", err)
	}
	return esc, nil
}

// escalateWithNotice asks the composer for the empathetic notice of a
// run that could not reach evaluation.
func (o *Orchestrator) escalateWithNotice(ctx context.Context, res *Result, query, reason string) {
	comp, err := o.composer.Compose(ctx, query, "", evaluator.Evaluation{})
	if err != nil {
		o.logger.Warn("composition failed", "trace_id", res.TraceID.String(), "error", err)
	}
	o.escalate(res, reason, comp.FinalResponse)
}

func (o *Orchestrator) escalate(res *Result, reason, message string) {
	if message == "" {
		message = composer.FallbackNotice
	}
	o.finish(res, StateEscalated, o.escalation(res.Analysis, res.Precheck, reason, message))
}

func (o *Orchestrator) escalation(a *analyzer.Analysis, report sanitizer.Report, reason, message string) *Escalated {
	esc := &Escalated{
		TargetDepartment: o.defaultDepartment,
		Reason:           reason,
		Message:          message,
		SensitiveData:    report.HasSensitiveData,
	}
	if a != nil {
		esc.Summary = a.Summary
		esc.Keywords = a.Keywords
		if dept := o.analysis.DepartmentFor(a.Category); dept != "" {
			esc.TargetDepartment = dept
		}
	}
	return esc
}

// outOfTime escalates the run with the fallback notice once the ticket
// budget is spent. No further model call is attempted.
func (o *Orchestrator) outOfTime(stageCtx context.Context, logger *slog.Logger, res *Result) bool {
	if !errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return false
	}
	logger.Warn("ticket time budget exhausted", "budget", o.budget.String(), "state", res.lastState())
	res.enter(StateErrored)
	o.escalate(res, ReasonTimedOut, composer.FallbackNotice)
	return true
}

// abandoned ends the run when the caller has gone.
func (o *Orchestrator) abandoned(ctx context.Context, res *Result) bool {
	if ctx.Err() == nil {
		return false
	}
	o.finish(res, StateErrored, &Errored{Message: "request cancelled: " + ctx.Err().Error()})
	return true
}

func (o *Orchestrator) finish(res *Result, s State, out Outcome) {
	res.enter(s)
	res.Status = s
	res.Outcome = out
}

func (r *Result) lastState() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, res *Result, stars int) {
	if err := o.sink.Publish(ctx, o.record(res, stars)); err != nil {
		logger.Warn("failed to publish outcome", "error", err)
	}
}

// record maps a result onto the ticket store record.
func (o *Orchestrator) record(res *Result, stars int) ticketstore.Record {
	now := o.now().UTC()
	rec := ticketstore.Record{
		TraceID:       res.TraceID.String(),
		Status:        string(res.Status),
		SensitiveData: res.Precheck.HasSensitiveData,
		Rating:        stars,
		CreatedAt:     now,
	}
	if res.Analysis != nil {
		rec.Category = res.Analysis.Category
		rec.Summary = res.Analysis.Summary
		rec.Keywords = res.Analysis.Keywords
	}
	if res.Evaluation != nil {
		rec.Confidence = res.Evaluation.Confidence
	}

	switch out := res.Outcome.(type) {
	case *Answered:
		rec.FinalResponse = out.FinalResponse
		rec.Confidence = out.Confidence
	case *Escalated:
		rec.Escalated = true
		rec.EscalatedAt = &now
		rec.TargetDepartment = out.TargetDepartment
		rec.Reason = out.Reason
		rec.FinalResponse = out.Message
	case *Rejected:
		rec.Reason = strings.Join(out.Reasons, " ")
		rec.FinalResponse = out.Message
	}
	return rec
}
