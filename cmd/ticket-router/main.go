//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
	"github.com/pgEdge/pgedge-ticket-router/internal/server"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-alpha1"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.BoolP("help", "h", false, "Show help message")
		showOpenAPI = flag.Bool("openapi", false, "Output OpenAPI specification and exit")
		configPath  = flag.StringP("config", "c", "", "Path to configuration file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `pgEdge Ticket Router - answers or escalates support tickets

Usage:
    ticket-router [options]

Options:
    -c, --config string
        Path to configuration file. If not specified, searches:
        1. /etc/pgedge/pgedge-ticket-router.yaml
        2. pgedge-ticket-router.yaml (in binary directory)

    --openapi
        Output OpenAPI v3 specification as JSON and exit

    --version
        Show version information and exit

    -h, --help
        Show this help message and exit
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("pgEdge Ticket Router\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	if *showOpenAPI {
		spec := server.BuildOpenAPISpec()
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(spec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode OpenAPI spec: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"categories", len(cfg.Analysis.Categories),
		"corpus_backend", cfg.Corpus.Backend)

	// Startup ingestion may take a while for large document directories
	startCtx, cancelStart := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelStart()

	pm, err := pipeline.NewManager(startCtx, pipeline.ManagerConfig{
		Config: cfg,
		Logger: logger,
	})
	cancelStart()
	if err != nil {
		return fmt.Errorf("failed to create pipeline manager: %w", err)
	}
	defer func() {
		if err := pm.Close(); err != nil {
			logger.Error("failed to close pipeline manager", "error", err)
		}
	}()

	// Create and start server
	srv := server.New(cfg, pm, logger)

	// Handle graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal", "signal", sig)

		// Give 30 seconds for graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(ctx)
	}
}
