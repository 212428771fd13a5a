//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package evaluator scores a drafted answer and decides whether it can be
// sent without human review.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/keywords"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// Sentiment labels.
const (
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

// RefusalConfidence is the fixed confidence of a refusal.
const RefusalConfidence = 0.1

// passTolerance lets a weighted sum landing on the threshold pass.
const passTolerance = 1e-9

// Input is what Evaluate scores.
type Input struct {
	Query          string
	Context        string
	Response       string
	RetrievalScore float64
	Threshold      float64
}

// Evaluation is the confidence decision for a drafted answer.
type Evaluation struct {
	Faithfulness   float64 `json:"faithfulness"`
	Relevance      float64 `json:"relevance"`
	RetrievalScore float64 `json:"retrieval_score"`
	Sentiment      string  `json:"sentiment"`
	IsRefusal      bool    `json:"is_refusal"`
	Confidence     float64 `json:"confidence"`
	Passed         bool    `json:"passed"`
	Reason         string  `json:"reason,omitempty"`
}

// Failure reports that the judge call or its parsing failed; the
// accompanying Evaluation is forced to fail.
type Failure struct {
	Cause error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("evaluation failed: %v", e.Cause)
}

func (e *Failure) Unwrap() error {
	return e.Cause
}

// Config contains the dependencies of an Evaluator.
type Config struct {
	Judge            llm.CompletionProvider
	Weights          config.Weights
	MinContextLength int // Default 20
	Logger           *slog.Logger
}

// Evaluator implements the confidence gate.
type Evaluator struct {
	judge      llm.CompletionProvider
	weights    config.Weights
	minContext int
	logger     *slog.Logger
}

// New creates an Evaluator. Zero weights select config.DefaultWeights.
func New(cfg Config) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := cfg.Weights
	if w == (config.Weights{}) {
		w = config.DefaultWeights()
	}
	minCtx := cfg.MinContextLength
	if minCtx <= 0 {
		minCtx = 20
	}
	return &Evaluator{
		judge:      cfg.Judge,
		weights:    w,
		minContext: minCtx,
		logger:     logger,
	}
}

// judgeVerdict is the JSON object the judge is asked to return.
type judgeVerdict struct {
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	IsRefusal    bool    `json:"is_refusal"`
	Sentiment    string  `json:"sentiment"`
	Reason       string  `json:"reason"`
}

// Evaluate always returns a usable Evaluation. A non-nil error is a
// *Failure and the Evaluation then has zero confidence and does not pass.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (Evaluation, error) {
	retrieval := clamp(in.RetrievalScore)

	if utf8.RuneCountInString(strings.TrimSpace(in.Context)) < e.minContext {
		return Evaluation{
			RetrievalScore: retrieval,
			Sentiment:      SentimentNeutral,
			IsRefusal:      true,
			Confidence:     0,
			Passed:         false,
			Reason:         "No usable context retrieved",
		}, nil
	}

	resp, err := e.judge.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: judgeSystemPrompt,
		Messages:     llm.UserMessage(buildJudgePrompt(in)),
		MaxTokens:    300,
		Temperature:  0,
		JSONMode:     true,
	})
	if err != nil {
		return e.failed(retrieval, err)
	}

	var v judgeVerdict
	if err := llm.DecodeJSON(resp.Content, &v); err != nil {
		return e.failed(retrieval, err)
	}

	ev := Evaluation{
		Faithfulness:   normalizeScore(v.Faithfulness),
		Relevance:      normalizeScore(v.Relevance),
		RetrievalScore: retrieval,
		Sentiment:      normalizeSentiment(v.Sentiment),
		IsRefusal:      v.IsRefusal || IsRefusal(in.Response),
		Reason:         strings.TrimSpace(v.Reason),
	}
	ev.Confidence = Confidence(e.weights, ev.RetrievalScore, ev.Relevance, ev.Faithfulness, ev.IsRefusal)
	ev.Passed = Passes(ev.Confidence, in.Threshold, ev.IsRefusal)

	e.logger.Debug("answer evaluated",
		"faithfulness", ev.Faithfulness,
		"relevance", ev.Relevance,
		"retrieval_score", ev.RetrievalScore,
		"is_refusal", ev.IsRefusal,
		"confidence", ev.Confidence,
		"passed", ev.Passed,
	)
	return ev, nil
}

func (e *Evaluator) failed(retrieval float64, cause error) (Evaluation, error) {
	e.logger.Warn("evaluation failed, forcing escalation", "error", cause)
	return Evaluation{
		RetrievalScore: retrieval,
		Sentiment:      SentimentNeutral,
		Confidence:     0,
		Passed:         false,
		Reason:         cause.Error(),
	}, &Failure{Cause: cause}
}

// Confidence combines the scores. A refusal always scores
// RefusalConfidence.
func Confidence(w config.Weights, retrieval, relevance, faithfulness float64, refusal bool) float64 {
	if refusal {
		return RefusalConfidence
	}
	c := w.Retrieval*clamp(retrieval) + w.Relevance*clamp(relevance) + w.Faithfulness*clamp(faithfulness)
	return clamp(c)
}

// Passes applies the threshold rule.
func Passes(confidence, threshold float64, refusal bool) bool {
	return !refusal && confidence >= threshold-passTolerance
}

// normalizeScore maps judges answering on a 0-100 scale to [0,1].
func normalizeScore(s float64) float64 {
	if s > 1 {
		s /= 100
	}
	return clamp(s)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SentimentNegative:
		return SentimentNegative
	case SentimentPositive:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// refusalPhrases are matched accent-folded against the response.
var refusalPhrases = []string{
	// English
	"not found in the documentation",
	"not found in the documents",
	"no information",
	"does not contain information",
	"doesn't contain information",
	"could not find",
	"couldn't find",
	"i don't know",
	"unable to find",
	"not mentioned in",
	"not covered by",
	// French
	"pas d'information",
	"aucune information",
	"ne contient pas",
	"ne mentionne pas",
	"n'ai pas trouve",
	"introuvable",
	"je ne sais pas",
	"pas dans la documentation",
	"pas trouve dans",
}

// IsRefusal reports whether response states that the information was not
// found. It is a deterministic backstop to the judge's own flag.
func IsRefusal(response string) bool {
	folded := strings.ReplaceAll(keywords.Fold(response), "’", "'")
	for _, p := range refusalPhrases {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}

const judgeSystemPrompt = `You grade answers produced by a support assistant from documentation excerpts.
Reply with a single JSON object and nothing else, using these fields:
- "faithfulness": number from 0 to 1, how well every claim of the answer is supported by the excerpts
- "relevance": number from 0 to 1, how well the excerpts address the question
- "is_refusal": true if the answer says the information could not be found
- "sentiment": the sentiment of the question, one of "negative", "neutral", "positive"
- "reason": one short sentence explaining the grades`

func buildJudgePrompt(in Input) string {
	return "Question:\n" + in.Query +
		"\n\nDocumentation excerpts:\n" + in.Context +
		"\n\nAnswer:\n" + in.Response
}
