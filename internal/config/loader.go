//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "pgedge-ticket-router.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/pgedge/" + ConfigFileName
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/pgedge/pgedge-ticket-router.yaml
//  3. pgedge-ticket-router.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	return loadFromFile(configPath)
}

// findConfigFile finds the configuration file using the search order.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no configuration file found; searched: %v", searchPaths)
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults, fills the derived defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills values that depend on other settings or that a
// YAML list would otherwise override wholesale.
func applyDefaults(cfg *Config) {
	// Judge falls back to the completion model
	if cfg.LLM.Judge.Provider == "" {
		cfg.LLM.Judge = cfg.LLM.Completion
	}

	if len(cfg.Analysis.Categories) == 0 {
		cfg.Analysis.Categories = DefaultCategories()
	}
	for i := range cfg.Analysis.Categories {
		c := &cfg.Analysis.Categories[i]
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	}

	if len(cfg.Sanitizer.AllowedLanguages) == 0 {
		cfg.Sanitizer.AllowedLanguages = []string{"fr", "en"}
	}

	w := cfg.Evaluation.Weights
	if w.Retrieval == 0 && w.Relevance == 0 && w.Faithfulness == 0 {
		cfg.Evaluation.Weights = DefaultWeights()
	}

	if cfg.Resilience.Burst == 0 && cfg.Resilience.RateLimit > 0 {
		cfg.Resilience.Burst = 1
	}

	// Apply database defaults
	db := &cfg.Corpus.Database
	if db.Port == 0 {
		db.Port = 5432
	}
	if db.SSLMode == "" {
		db.SSLMode = "prefer"
	}

	t := &cfg.Corpus.Table
	if t.Name == "" {
		t.Name = "kb_chunks"
	}
	if t.IDColumn == "" {
		t.IDColumn = "id"
	}
	if t.ContentColumn == "" {
		t.ContentColumn = "content"
	}
	if t.CategoryColumn == "" {
		t.CategoryColumn = "category"
	}
	if t.EmbeddingColumn == "" {
		t.EmbeddingColumn = "embedding"
	}
}

// SlogLevel converts the configured log level to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
