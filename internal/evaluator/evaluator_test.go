//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// MockCompletionProvider is a mock implementation of llm.CompletionProvider.
type MockCompletionProvider struct {
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	calls        int
}

func (m *MockCompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.calls++
	return m.CompleteFunc(ctx, req)
}

func (m *MockCompletionProvider) ModelName() string { return "mock-judge" }

func judging(content string) *MockCompletionProvider {
	return &MockCompletionProvider{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: content}, nil
		},
	}
}

func newTestEvaluator(judge llm.CompletionProvider) *Evaluator {
	return New(Config{
		Judge:  judge,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

const goodContext = "[Doc 1] To reset a password open the portal and click the reset link."

func TestEvaluate_Passes(t *testing.T) {
	var captured llm.CompletionRequest
	judge := &MockCompletionProvider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			captured = req
			return &llm.CompletionResponse{Content: `{"faithfulness":0.9,"relevance":0.8,"is_refusal":false,"sentiment":"Neutral","reason":"grounded"}`}, nil
		},
	}

	ev, err := newTestEvaluator(judge).Evaluate(context.Background(), Input{
		Query:          "reset password",
		Context:        goodContext,
		Response:       "Open the portal and click the reset link.",
		RetrievalScore: 0.7,
		Threshold:      0.6,
	})
	require.NoError(t, err)

	assert.True(t, captured.JSONMode)
	assert.Contains(t, captured.Messages[0].Content, goodContext)
	assert.InDelta(t, 0.3*0.7+0.35*0.8+0.35*0.9, ev.Confidence, 1e-9)
	assert.True(t, ev.Passed)
	assert.False(t, ev.IsRefusal)
	assert.Equal(t, SentimentNeutral, ev.Sentiment)
	assert.Equal(t, "grounded", ev.Reason)
}

func TestEvaluate_ShortContext(t *testing.T) {
	for _, ctxText := range []string{"", "   ", "too short"} {
		judge := judging(`{}`)
		ev, err := newTestEvaluator(judge).Evaluate(context.Background(), Input{
			Query:     "q",
			Context:   ctxText,
			Response:  "answer",
			Threshold: 0.6,
		})
		require.NoError(t, err)
		assert.True(t, ev.IsRefusal)
		assert.Equal(t, 0.0, ev.Confidence)
		assert.False(t, ev.Passed)
		assert.Equal(t, 0, judge.calls, "judge must not be called")
	}
}

func TestEvaluate_RefusalSignals(t *testing.T) {
	tests := []struct {
		name     string
		verdict  string
		response string
	}{
		{"judge flag", `{"faithfulness":1,"relevance":1,"is_refusal":true}`, "Here is the answer."},
		{"keyword backstop en", `{"faithfulness":1,"relevance":1,"is_refusal":false}`, "Sorry, this is not found in the documentation."},
		{"keyword backstop fr", `{"faithfulness":1,"relevance":1,"is_refusal":false}`, "Je n’ai pas trouvé cette information."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := newTestEvaluator(judging(tt.verdict)).Evaluate(context.Background(), Input{
				Context:        goodContext,
				Response:       tt.response,
				RetrievalScore: 1,
				Threshold:      0.05,
			})
			require.NoError(t, err)
			assert.True(t, ev.IsRefusal)
			assert.Equal(t, RefusalConfidence, ev.Confidence)
			assert.False(t, ev.Passed, "refusals never pass")
		})
	}
}

func TestEvaluate_PercentScale(t *testing.T) {
	ev, err := newTestEvaluator(judging(`{"faithfulness":85,"relevance":120,"sentiment":"angry"}`)).
		Evaluate(context.Background(), Input{Context: goodContext, Response: "ok", RetrievalScore: 1.4, Threshold: 0.6})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, ev.Faithfulness, 1e-9)
	assert.Equal(t, 1.0, ev.Relevance)
	assert.Equal(t, 1.0, ev.RetrievalScore)
	assert.Equal(t, SentimentNeutral, ev.Sentiment)
	assert.LessOrEqual(t, ev.Confidence, 1.0)
}

func TestEvaluate_Failure(t *testing.T) {
	tests := []struct {
		name  string
		judge *MockCompletionProvider
	}{
		{"call error", &MockCompletionProvider{
			CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
				return nil, errors.New("circuit open")
			},
		}},
		{"parse error", judging("I think it is fine")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := newTestEvaluator(tt.judge).Evaluate(context.Background(), Input{
				Context: goodContext, Response: "ok", RetrievalScore: 0.9, Threshold: 0.6,
			})
			var failure *Failure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, 0.0, ev.Confidence)
			assert.False(t, ev.Passed)
			assert.NotEmpty(t, ev.Reason)
		})
	}
}

func TestConfidence_WeightedSum(t *testing.T) {
	w := config.DefaultWeights()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		r, rel, f := rng.Float64(), rng.Float64(), rng.Float64()
		c := Confidence(w, r, rel, f, false)
		assert.InDelta(t, 0.3*r+0.35*rel+0.35*f, c, 1e-9)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}

	assert.Equal(t, RefusalConfidence, Confidence(w, 1, 1, 1, true))
}

func TestConfidence_MonotonicInFaithfulness(t *testing.T) {
	w := config.DefaultWeights()
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		r, rel := rng.Float64(), rng.Float64()
		prev := -1.0
		for f := 0.0; f <= 1.0; f += 0.05 {
			c := Confidence(w, r, rel, f, false)
			assert.GreaterOrEqual(t, c, prev)
			prev = c
		}
	}
}

func TestPasses(t *testing.T) {
	assert.True(t, Passes(0.6, 0.6, false))
	assert.True(t, Passes(0.3*1+0.35*0.5+0.35*0.5, 0.65, false), "sum landing on threshold passes")
	assert.False(t, Passes(0.59, 0.6, false))
	assert.False(t, Passes(0.99, 0.6, true))
}

func TestNew_CustomWeights(t *testing.T) {
	e := New(Config{Judge: judging(`{"faithfulness":1,"relevance":0}`), Weights: config.Weights{Faithfulness: 1}})
	ev, err := e.Evaluate(context.Background(), Input{Context: goodContext, Response: "ok", Threshold: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Confidence)
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal("The documentation does not contain information about this request."))
	assert.True(t, IsRefusal("AUCUNE INFORMATION disponible"))
	assert.True(t, IsRefusal("Je ne sais pas."))
	assert.False(t, IsRefusal("Open the portal and click reset."))
}
