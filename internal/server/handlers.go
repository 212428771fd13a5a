//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// TicketRequest is the body of POST /v1/tickets.
type TicketRequest struct {
	Content string `json:"content"`
}

// RatingRequest is the body of POST /v1/ratings. Analysis and Precheck
// are the values returned with the rated ticket.
type RatingRequest struct {
	TicketID string            `json:"ticket_id"`
	Stars    int               `json:"stars"`
	Analysis analyzer.Analysis `json:"analysis"`
	Precheck sanitizer.Report  `json:"precheck"`
}

// RatingResponse reports whether a rating was escalated.
type RatingResponse struct {
	Escalated bool                `json:"escalated"`
	Outcome   *pipeline.Escalated `json:"outcome,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /health endpoint. The server stays
// healthy while a breaker is open; the status only flags the degradation.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deps := s.router.Dependencies()

	status := "healthy"
	for _, state := range deps {
		if state != "closed" {
			status = "degraded"
			break
		}
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{Status: status, Dependencies: deps})
}

// handleTicket handles the POST /tickets endpoint. Every ticket that gets
// past request validation yields 200; the outcome lives in the body.
func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	var req TicketRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "content is required")
		return
	}

	result := s.router.ProcessTicket(r.Context(), req.Content)

	s.logger.Debug("ticket processed",
		"request_id", RequestID(r.Context()),
		"trace_id", result.TraceID.String(),
		"status", string(result.Status))

	s.respondJSON(w, http.StatusOK, result)
}

// handleRating handles the POST /ratings endpoint.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.TicketID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "ticket_id is required")
		return
	}

	esc, err := s.router.HandleRating(r.Context(), pipeline.RatingEvent{
		TicketID: req.TicketID,
		Stars:    req.Stars,
	}, req.Analysis, req.Precheck)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRating) {
			s.respondError(w, http.StatusBadRequest, "INVALID_RATING", err.Error())
			return
		}
		s.logger.Error("rating failed", "ticket_id", req.TicketID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, RatingResponse{Escalated: esc != nil, Outcome: esc})
}

// decodeBody decodes a JSON request body into v, answering 400 itself
// when the body is unusable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return false
	}
	return true
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	// RFC 8631: Link header for API documentation discovery
	w.Header().Set("Link", `</v1/openapi.json>; rel="service-desc"`)
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
