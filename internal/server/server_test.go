//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/composer"
	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
)

// mockRouter implements Router for testing.
type mockRouter struct {
	ProcessTicketFunc func(ctx context.Context, text string) *pipeline.Result
	HandleRatingFunc  func(ctx context.Context, rating pipeline.RatingEvent,
		analysis analyzer.Analysis, report sanitizer.Report) (*pipeline.Escalated, error)
	deps map[string]string
}

func (m *mockRouter) ProcessTicket(ctx context.Context, text string) *pipeline.Result {
	if m.ProcessTicketFunc != nil {
		return m.ProcessTicketFunc(ctx, text)
	}
	return &pipeline.Result{
		TraceID: uuid.New(),
		Status:  pipeline.StateAnswered,
		Outcome: &pipeline.Answered{FinalResponse: "echo: " + text, Confidence: 0.9},
		States:  []pipeline.State{pipeline.StateReceived, pipeline.StateAnswered},
	}
}

func (m *mockRouter) HandleRating(
	ctx context.Context,
	rating pipeline.RatingEvent,
	analysis analyzer.Analysis,
	report sanitizer.Report,
) (*pipeline.Escalated, error) {
	if m.HandleRatingFunc != nil {
		return m.HandleRatingFunc(ctx, rating, analysis, report)
	}
	return nil, nil
}

func (m *mockRouter) Dependencies() map[string]string {
	return m.deps
}

func (m *mockRouter) Close() error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddress: "127.0.0.1",
			Port:          8080,
		},
	}
}

func testServer(router *mockRouter) *Server {
	if router == nil {
		router = &mockRouter{}
	}
	return New(testConfig(), router, nil)
}

func postJSON(srv *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(&mockRouter{deps: map[string]string{
		"embedding":  "closed",
		"completion": "closed",
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", resp.Status)
	}
	if resp.Dependencies["completion"] != "closed" {
		t.Errorf("expected completion breaker state, got %v", resp.Dependencies)
	}
}

func TestHealthEndpoint_Degraded(t *testing.T) {
	srv := testServer(&mockRouter{deps: map[string]string{
		"embedding":  "closed",
		"completion": "open",
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected status 'degraded', got '%s'", resp.Status)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}

func TestTicketEndpoint(t *testing.T) {
	var got string
	srv := testServer(&mockRouter{
		ProcessTicketFunc: func(ctx context.Context, text string) *pipeline.Result {
			got = text
			return &pipeline.Result{
				TraceID: uuid.New(),
				Status:  pipeline.StateEscalated,
				Outcome: &pipeline.Escalated{
					TargetDepartment: "it_helpdesk",
					Reason:           pipeline.ReasonNoInformation,
					Message:          "A specialist will follow up",
				},
				States: []pipeline.State{pipeline.StateReceived, pipeline.StateEscalated},
			}
		},
	})

	w := postJSON(srv, "/v1/tickets", `{"content": "Mon imprimante ne marche plus <b>"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got != "Mon imprimante ne marche plus <b>" {
		t.Errorf("ticket content not forwarded, got %q", got)
	}
	if !strings.Contains(w.Body.String(), "<b>") {
		t.Error("expected HTML characters to be left unescaped")
	}

	var resp struct {
		TraceID string `json:"trace_id"`
		Status  string `json:"status"`
		Outcome struct {
			TargetDepartment string `json:"target_department"`
			Reason           string `json:"reason"`
		} `json:"outcome"`
		States []string `json:"states"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if _, err := uuid.Parse(resp.TraceID); err != nil {
		t.Errorf("expected a uuid trace id, got %q", resp.TraceID)
	}
	if resp.Status != "escalated" {
		t.Errorf("expected status escalated, got %s", resp.Status)
	}
	if resp.Outcome.TargetDepartment != "it_helpdesk" || resp.Outcome.Reason != pipeline.ReasonNoInformation {
		t.Errorf("unexpected outcome %+v", resp.Outcome)
	}
	if len(resp.States) != 2 {
		t.Errorf("expected 2 states, got %v", resp.States)
	}
}

func TestTicketEndpoint_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `invalid json`},
		{"empty content", `{"content": ""}`},
		{"blank content", `{"content": "   "}`},
		{"missing content", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			srv := testServer(&mockRouter{
				ProcessTicketFunc: func(ctx context.Context, text string) *pipeline.Result {
					called = true
					return nil
				},
			})

			w := postJSON(srv, "/v1/tickets", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if called {
				t.Error("router must not run for an invalid request")
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if resp.Error.Code != "INVALID_REQUEST" {
				t.Errorf("expected INVALID_REQUEST, got %s", resp.Error.Code)
			}
		})
	}
}

func TestTicketEndpoint_BodyTooLarge(t *testing.T) {
	srv := testServer(nil)

	body := fmt.Sprintf(`{"content": %q}`, strings.Repeat("a", maxBodyBytes+1))
	w := postJSON(srv, "/v1/tickets", body)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestRatingEndpoint_Escalates(t *testing.T) {
	var gotRating pipeline.RatingEvent
	var gotAnalysis analyzer.Analysis
	var gotReport sanitizer.Report

	srv := testServer(&mockRouter{
		HandleRatingFunc: func(ctx context.Context, rating pipeline.RatingEvent,
			analysis analyzer.Analysis, report sanitizer.Report) (*pipeline.Escalated, error) {
			gotRating, gotAnalysis, gotReport = rating, analysis, report
			return &pipeline.Escalated{
				TargetDepartment: "legal",
				Reason:           fmt.Sprintf(pipeline.ReasonLowRating, rating.Stars),
				Message:          pipeline.RatingEscalationMessage,
				SensitiveData:    report.HasSensitiveData,
			}, nil
		},
	})

	w := postJSON(srv, "/v1/ratings", `{
		"ticket_id": "T-42",
		"stars": 1,
		"analysis": {"summary": "contract question", "keywords": ["contract"], "category": "legal"},
		"precheck": {"has_sensitive_data": true, "passed": true}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if gotRating.TicketID != "T-42" || gotRating.Stars != 1 {
		t.Errorf("unexpected rating %+v", gotRating)
	}
	if gotAnalysis.Category != "legal" || gotAnalysis.Summary != "contract question" {
		t.Errorf("unexpected analysis %+v", gotAnalysis)
	}
	if !gotReport.HasSensitiveData {
		t.Error("expected precheck to be forwarded")
	}

	var resp RatingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Escalated || resp.Outcome == nil {
		t.Fatalf("expected escalation, got %+v", resp)
	}
	if resp.Outcome.Reason != "Low customer rating (1/5)" {
		t.Errorf("unexpected reason %q", resp.Outcome.Reason)
	}
	if !resp.Outcome.SensitiveData {
		t.Error("expected sensitive data flag")
	}
}

func TestRatingEndpoint_NoAction(t *testing.T) {
	srv := testServer(nil)

	w := postJSON(srv, "/v1/ratings", `{"ticket_id": "T-1", "stars": 5}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp RatingResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Escalated || resp.Outcome != nil {
		t.Errorf("expected no escalation, got %+v", resp)
	}
}

func TestRatingEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"missing ticket", `{"stars": 1}`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid json", `{`, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid stars", `{"ticket_id": "T-1", "stars": 9}`,
			fmt.Errorf("%w: 9", pipeline.ErrInvalidRating), http.StatusBadRequest, "INVALID_RATING"},
		{"internal", `{"ticket_id": "T-1", "stars": 1}`,
			errors.New("sink unavailable"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(&mockRouter{
				HandleRatingFunc: func(ctx context.Context, rating pipeline.RatingEvent,
					analysis analyzer.Analysis, report sanitizer.Report) (*pipeline.Escalated, error) {
					return nil, tt.err
				},
			})

			w := postJSON(srv, "/v1/ratings", tt.body)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if resp.Error.Code != tt.wantErr {
				t.Errorf("expected %s, got %s", tt.wantErr, resp.Error.Code)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(&mockRouter{
		ProcessTicketFunc: func(ctx context.Context, text string) *pipeline.Result {
			panic("boom")
		},
	})

	handler := srv.applyMiddleware(srv.mux)
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets", bytes.NewBufferString(`{"content": "x"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	srv := testServer(&mockRouter{
		ProcessTicketFunc: func(ctx context.Context, text string) *pipeline.Result {
			seen = RequestID(ctx)
			return &pipeline.Result{TraceID: uuid.New(), Status: pipeline.StateAnswered,
				Outcome: &pipeline.Answered{FinalResponse: "ok"}}
		},
	})
	handler := srv.applyMiddleware(srv.mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/tickets", bytes.NewBufferString(`{"content": "x"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", id)
	}
	if seen != id {
		t.Errorf("expected handler context to carry %q, got %q", id, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(RequestIDHeader, "desk-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "desk-123" {
		t.Errorf("expected client request id to be kept, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("expected oversized request id to be replaced, got %d bytes", len(got))
	}
}

func TestCORSMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS = config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://desk.example.com"}}
	srv := New(cfg, &mockRouter{}, nil)
	handler := srv.applyMiddleware(srv.mux)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tickets", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://desk.example.com" {
		t.Errorf("unexpected allowed origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/tickets", nil)
	req.Header.Set("Origin", "https://other.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allowed origin, got %q", got)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Check Content-Type
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}

	var spec map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&spec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected OpenAPI version '3.0.3', got '%v'", spec["openapi"])
	}

	paths, ok := spec["paths"].(map[string]interface{})
	if !ok {
		t.Fatal("OpenAPI spec missing 'paths' field")
	}
	for _, p := range []string{"/health", "/tickets", "/ratings"} {
		if paths[p] == nil {
			t.Errorf("OpenAPI spec missing path %s", p)
		}
	}
}

func TestOpenAPISpec_RefsResolve(t *testing.T) {
	spec := BuildOpenAPISpec()

	var check func(where string, s OpenAPISchema)
	check = func(where string, s OpenAPISchema) {
		if s.Ref != "" {
			name := strings.TrimPrefix(s.Ref, "#/components/schemas/")
			if _, ok := spec.Components.Schemas[name]; !ok {
				t.Errorf("%s: unresolved reference %s", where, s.Ref)
			}
		}
		for prop, sub := range s.Properties {
			check(where+"."+prop, sub)
		}
		if s.Items != nil {
			check(where+"[]", *s.Items)
		}
	}

	for name, s := range spec.Components.Schemas {
		check(name, s)
	}
	for path, item := range spec.Paths {
		for _, op := range []*OpenAPIOperation{item.Get, item.Post} {
			if op == nil {
				continue
			}
			if op.RequestBody != nil {
				for _, mt := range op.RequestBody.Content {
					check(path+" request", mt.Schema)
				}
			}
			for code, resp := range op.Responses {
				for _, mt := range resp.Content {
					check(path+" "+code, mt.Schema)
				}
			}
		}
	}
}

func TestRFC8631LinkHeader(t *testing.T) {
	srv := testServer(nil)

	// Test that Link header is present on all API responses
	endpoints := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/v1/health", ""},
		{http.MethodGet, "/v1/openapi.json", ""},
		{http.MethodPost, "/v1/tickets", `{"content": "hello"}`},
	}

	for _, ep := range endpoints {
		req := httptest.NewRequest(ep.method, ep.path, bytes.NewBufferString(ep.body))
		w := httptest.NewRecorder()
		srv.mux.ServeHTTP(w, req)

		link := w.Header().Get("Link")
		if link == "" {
			t.Errorf("%s %s: missing Link header", ep.method, ep.path)
			continue
		}
		if !strings.Contains(link, "</v1/openapi.json>") {
			t.Errorf("%s %s: Link header should reference /v1/openapi.json", ep.method, ep.path)
		}
		if !strings.Contains(link, `rel="service-desc"`) {
			t.Errorf("%s %s: Link header should have rel=\"service-desc\"", ep.method, ep.path)
		}
	}
}

func TestWriteTimeoutOutlastsTicketBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := New(cfg, &mockRouter{}, nil)

	got := srv.newHTTPServer(":0").WriteTimeout
	if got <= cfg.Resilience.TicketTimeout {
		t.Errorf("write timeout %v does not outlast ticket budget %v", got, cfg.Resilience.TicketTimeout)
	}
	if got != 60*time.Second {
		t.Errorf("expected 60s write timeout for the default budget, got %v", got)
	}

	// Unset budget falls back to the default rather than a zero deadline
	if d := testServer(nil).writeTimeout(); d != got {
		t.Errorf("expected %v with no budget configured, got %v", got, d)
	}
}

func TestTicketEndpoint_SlowTicketStillAnswered(t *testing.T) {
	margin := writeTimeoutMargin
	writeTimeoutMargin = time.Second
	defer func() { writeTimeoutMargin = margin }()

	cfg := testConfig()
	cfg.Resilience.TicketTimeout = 100 * time.Millisecond

	router := &mockRouter{
		ProcessTicketFunc: func(ctx context.Context, text string) *pipeline.Result {
			// Outlives the ticket budget, as a run ending in the fallback
			// notice does.
			time.Sleep(300 * time.Millisecond)
			return &pipeline.Result{
				TraceID: uuid.New(),
				Status:  pipeline.StateEscalated,
				Outcome: &pipeline.Escalated{
					TargetDepartment: "general_support",
					Reason:           pipeline.ReasonTimedOut,
					Message:          composer.FallbackNotice,
				},
			}
		},
	}
	srv := New(cfg, router, nil)

	ts := httptest.NewUnstartedServer(nil)
	ts.Config = srv.newHTTPServer("")
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/tickets", "application/json",
		strings.NewReader(`{"content": "Bonjour, mon VPN ne marche pas"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Outcome struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"outcome"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "escalated" {
		t.Errorf("expected escalated status, got %q", body.Status)
	}
	if body.Outcome.Message != composer.FallbackNotice {
		t.Errorf("expected fallback notice, got %q", body.Outcome.Message)
	}
	if body.Outcome.Reason != pipeline.ReasonTimedOut {
		t.Errorf("expected timeout reason, got %q", body.Outcome.Reason)
	}
}
