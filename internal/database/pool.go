//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package database provides PostgreSQL connectivity and the pgvector
// implementation of the knowledge corpus.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
)

// Pool wraps a pgxpool connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	config config.DatabaseConfig
}

// NewPool creates a connection pool and checks that the server answers.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", ConnectionString(cfg), err)
	}

	return &Pool{
		pool:   pool,
		config: cfg,
	}, nil
}

// ConnectionString returns the libpq connection string for cfg with the
// password elided, for logging.
func ConnectionString(cfg config.DatabaseConfig) string {
	cfg.Password = ""
	return buildConnectionString(cfg)
}

// buildConnectionString constructs a libpq keyword/value connection
// string. Empty settings are left out so libpq applies its own defaults.
func buildConnectionString(cfg config.DatabaseConfig) string {
	// Username: config > PGUSER > USER
	username := cfg.Username
	if username == "" {
		username = os.Getenv("PGUSER")
	}
	if username == "" {
		username = os.Getenv("USER")
	}

	settings := []struct{ key, value string }{
		{"host", cfg.Host},
		{"port", strconv.Itoa(cfg.Port)},
		{"dbname", cfg.Database},
		{"user", username},
		{"password", cfg.Password},
		{"sslmode", cfg.SSLMode},
		{"sslcert", cfg.SSLCert},
		{"sslkey", cfg.SSLKey},
		{"sslrootcert", cfg.SSLRootCA},
	}

	parts := make([]string, 0, len(settings))
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		parts = append(parts, s.key+"="+quoteValue(s.value))
	}
	return strings.Join(parts, " ")
}

// quoteValue quotes v for a keyword/value connection string when it is
// empty or holds spaces, quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t\n") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Ping verifies the database connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Pool returns the underlying pgxpool.Pool.
func (p *Pool) Pool() *pgxpool.Pool {
	return p.pool
}
