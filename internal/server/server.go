//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP API of the ticket router.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
)

// Router is the ticket pipeline served over HTTP.
type Router interface {
	ProcessTicket(ctx context.Context, text string) *pipeline.Result
	HandleRating(ctx context.Context, rating pipeline.RatingEvent,
		analysis analyzer.Analysis, report sanitizer.Report) (*pipeline.Escalated, error)
	Dependencies() map[string]string
	Close() error
}

var _ Router = (*pipeline.Manager)(nil)

// Server is the HTTP server for the ticket router API.
type Server struct {
	config *config.Config
	router Router
	logger *slog.Logger
	server *http.Server
	mux    *http.ServeMux
}

// New creates a new HTTP server.
func New(cfg *config.Config, router Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	// Set up routes
	s.setupRoutes()

	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.ListenAddress, s.config.Server.Port)

	s.server = s.newHTTPServer(addr)

	s.logger.Info("starting server",
		"address", addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		return s.serveTLS()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.server.Serve(listener)
}

// writeTimeoutMargin is the time left after the ticket budget to finish
// the fallback notice and write the response.
var writeTimeoutMargin = 15 * time.Second

// newHTTPServer builds the http.Server. The write deadline always
// outlasts the ticket budget so an escalated ticket still gets its reply.
func (s *Server) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.applyMiddleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) writeTimeout() time.Duration {
	budget := s.config.Resilience.TicketTimeout
	if budget <= 0 {
		budget = config.DefaultConfig().Resilience.TicketTimeout
	}
	return budget + writeTimeoutMargin
}

// serveTLS starts the server with TLS.
func (s *Server) serveTLS() error {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	s.server.TLSConfig = tlsCfg

	return s.server.ListenAndServeTLS(
		s.config.Server.TLS.CertFile,
		s.config.Server.TLS.KeyFile,
	)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}

	return nil
}

// Addr returns the server's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.server != nil {
		return s.server.Addr
	}
	return ""
}
