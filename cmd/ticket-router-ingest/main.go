//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// ticket-router-ingest loads a directory of .md and .txt documents into
// the PostgreSQL corpus. The first directory level below the root names
// the category of the documents it holds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/corpus"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var configPath, dir string

	flagSet := pflag.NewFlagSet("ticket-router-ingest", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to configuration file")
	flagSet.StringVarP(&dir, "dir", "d", "", "documents directory (default: corpus.documents_dir)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Corpus.Backend != config.BackendPostgres {
		return fmt.Errorf("corpus backend %q is loaded at server startup; ingestion needs %q",
			cfg.Corpus.Backend, config.BackendPostgres)
	}
	if dir == "" {
		dir = cfg.Corpus.DocumentsDir
	}
	if dir == "" {
		return fmt.Errorf("no documents directory: pass --dir or set corpus.documents_dir")
	}
	// The manager would otherwise ingest the directory itself
	cfg.Corpus.DocumentsDir = ""

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	docs, err := corpus.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	pm, err := pipeline.NewManager(ctx, pipeline.ManagerConfig{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline manager: %w", err)
	}
	defer pm.Close()

	start := time.Now()
	n, err := pm.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingestion failed after %d chunk(s): %w", n, err)
	}

	logger.Info("ingestion complete",
		"documents", len(docs),
		"chunks", n,
		"duration", time.Since(start).String())
	return nil
}
