//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// ticket-router-eval answers a batch of questions through the full
// pipeline and writes the answers in the evaluation exchange format:
//
//	input:  {"Questions": [{"id": "...", "query": "..."}]}
//	output: {"Team": "...", "Answers": [{"id": "...", "answer": "..."}]}
//
// Logging is discarded so the output stays the only thing produced.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var configPath, inputPath, outputPath, team string

	flagSet := pflag.NewFlagSet("ticket-router-eval", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to configuration file")
	flagSet.StringVarP(&inputPath, "input", "i", "-", "questions file, - for stdin")
	flagSet.StringVarP(&outputPath, "output", "o", "-", "answers file, - for stdout")
	flagSet.StringVarP(&team, "team", "t", "pgEdge", "team name written to the output")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	in, err := readInput(inputPath, stdin)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pm, err := pipeline.NewManager(ctx, pipeline.ManagerConfig{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline manager: %w", err)
	}
	defer pm.Close()

	out, err := pipeline.RunBatch(ctx, pm, in, team)
	if err != nil {
		return fmt.Errorf("batch interrupted after %d answer(s): %w", len(out.Answers), err)
	}

	return writeOutput(outputPath, stdout, out)
}

func readInput(path string, stdin io.Reader) (pipeline.BatchInput, error) {
	if path == "-" {
		return pipeline.ReadBatch(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return pipeline.BatchInput{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return pipeline.ReadBatch(f)
}

func writeOutput(path string, stdout io.Writer, out pipeline.BatchOutput) error {
	if path == "-" {
		return pipeline.WriteBatch(stdout, out)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := pipeline.WriteBatch(f, out); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	return f.Close()
}
