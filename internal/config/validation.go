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
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Providers accepted for each model role.
var (
	EmbeddingProviders  = []string{"openai", "voyage", "ollama", "mistral"}
	CompletionProviders = []string{"anthropic", "openai", "ollama", "mistral"}
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLLMs()...)
	errs = append(errs, c.validateCorpus()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateAnalysis()...)
	errs = append(errs, c.validateSanitizer()...)
	errs = append(errs, c.validateEvaluation()...)
	errs = append(errs, c.validateResilience()...)
	errs = append(errs, c.validateTicketStore()...)

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		errs = append(errs, requireFile("server.tls.cert_file", c.Server.TLS.CertFile)...)
		errs = append(errs, requireFile("server.tls.key_file", c.Server.TLS.KeyFile)...)
	}

	return errs
}

func requireFile(field, path string) ValidationErrors {
	if path == "" {
		return ValidationErrors{{Field: field, Message: "required when TLS is enabled"}}
	}
	if _, err := os.Stat(expandPath(path)); err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("file not found: %s", path)}}
	}
	return nil
}

// validateLLMs validates the three model roles.
func (c *Config) validateLLMs() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, c.validateLLM("llm.embedding", c.LLM.Embedding, EmbeddingProviders)...)
	errs = append(errs, c.validateLLM("llm.completion", c.LLM.Completion, CompletionProviders)...)
	errs = append(errs, c.validateLLM("llm.judge", c.LLM.Judge, CompletionProviders)...)
	return errs
}

// validateLLM validates LLM configuration (required fields).
func (c *Config) validateLLM(prefix string, llm LLMConfig, validProviders []string) ValidationErrors {
	var errs ValidationErrors

	if llm.Provider == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: "required",
		})
	} else if !oneOf(strings.ToLower(llm.Provider), validProviders) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".provider",
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if llm.Model == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".model",
			Message: "required",
		})
	}

	if llm.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

// validateCorpus validates the knowledge corpus settings.
func (c *Config) validateCorpus() ValidationErrors {
	var errs ValidationErrors
	cc := c.Corpus

	switch strings.ToLower(cc.Backend) {
	case BackendMemory:
	case BackendPostgres:
		errs = append(errs, c.validateDatabase("corpus.database", cc.Database)...)
		errs = append(errs, validateTable("corpus.table", cc.Table)...)
	default:
		errs = append(errs, ValidationError{
			Field:   "corpus.backend",
			Message: "must be one of: memory, postgres",
		})
	}

	if cc.BatchSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "corpus.batch_size",
			Message: "must be at least 1",
		})
	}
	if cc.ChunkSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "corpus.chunk_size",
			Message: "must be at least 1",
		})
	}
	if cc.Dimensions < 1 {
		errs = append(errs, ValidationError{
			Field:   "corpus.dimensions",
			Message: "must be at least 1",
		})
	}

	return errs
}

// validateDatabase validates database configuration.
func (c *Config) validateDatabase(prefix string, db DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".host",
			Message: "required",
		})
	}

	if db.Database == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".database",
			Message: "required",
		})
	}

	if db.Port < 1 || db.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".port",
			Message: "must be between 1 and 65535",
		})
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if db.SSLMode != "" && !oneOf(db.SSLMode, validSSLModes) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".ssl_mode",
			Message: "must be one of: " + strings.Join(validSSLModes, ", "),
		})
	}

	if db.MaxConns < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".max_conns",
			Message: "must not be negative",
		})
	}

	return errs
}

// validateTable checks that every identifier of the chunk table is set.
func validateTable(prefix string, t TableConfig) ValidationErrors {
	var errs ValidationErrors
	fields := []struct{ name, value string }{
		{"name", t.Name},
		{"id_column", t.IDColumn},
		{"content_column", t.ContentColumn},
		{"category_column", t.CategoryColumn},
		{"embedding_column", t.EmbeddingColumn},
	}
	for _, f := range fields {
		if f.value == "" {
			errs = append(errs, ValidationError{
				Field:   prefix + "." + f.name,
				Message: "required",
			})
		}
	}
	return errs
}

func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors
	if c.Retrieval.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.top_k",
			Message: "must be at least 1",
		})
	}
	if c.Retrieval.SnippetLength < 1 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.snippet_length",
			Message: "must be at least 1",
		})
	}
	return errs
}

func (c *Config) validateAnalysis() ValidationErrors {
	var errs ValidationErrors

	names := make(map[string]bool)
	for i, cat := range c.Analysis.Categories {
		field := fmt.Sprintf("analysis.categories[%d].name", i)
		if cat.Name == "" {
			errs = append(errs, ValidationError{Field: field, Message: "required"})
			continue
		}
		if names[cat.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate category name: %s", cat.Name),
			})
		}
		names[cat.Name] = true
	}

	return errs
}

func (c *Config) validateSanitizer() ValidationErrors {
	var errs ValidationErrors
	for i, lang := range c.Sanitizer.AllowedLanguages {
		if len(lang) != 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sanitizer.allowed_languages[%d]", i),
				Message: "must be an ISO 639-1 code",
			})
		}
	}
	return errs
}

// validateEvaluation keeps confidence inside [0,1]: weights must be
// non-negative and sum to one.
func (c *Config) validateEvaluation() ValidationErrors {
	var errs ValidationErrors
	e := c.Evaluation

	if e.Threshold < 0 || e.Threshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.threshold",
			Message: "must be between 0 and 1",
		})
	}
	if e.MinContextLength < 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.min_context_length",
			Message: "must be non-negative",
		})
	}

	w := e.Weights
	if w.Retrieval < 0 || w.Relevance < 0 || w.Faithfulness < 0 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.weights",
			Message: "must be non-negative",
		})
	} else if math.Abs(w.Retrieval+w.Relevance+w.Faithfulness-1) > 1e-6 {
		errs = append(errs, ValidationError{
			Field:   "evaluation.weights",
			Message: "must sum to 1",
		})
	}

	return errs
}

func (c *Config) validateResilience() ValidationErrors {
	var errs ValidationErrors
	r := c.Resilience

	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: "resilience." + field, Message: msg})
	}

	if r.MaxAttempts < 1 {
		add("max_attempts", "must be at least 1")
	}
	if r.InitialBackoff <= 0 {
		add("initial_backoff", "must be positive")
	}
	if r.MaxBackoff < r.InitialBackoff {
		add("max_backoff", "must not be less than initial_backoff")
	}
	if r.Multiplier < 1 {
		add("multiplier", "must be at least 1")
	}
	if r.FailureThreshold < 1 {
		add("failure_threshold", "must be at least 1")
	}
	if r.Cooldown <= 0 {
		add("cooldown", "must be positive")
	}
	if r.CallTimeout <= 0 {
		add("call_timeout", "must be positive")
	}
	if r.TicketTimeout <= 0 {
		add("ticket_timeout", "must be positive")
	}
	if r.RateLimit < 0 {
		add("rate_limit", "must be non-negative")
	}
	if r.Burst < 0 {
		add("burst", "must be non-negative")
	}

	return errs
}

func (c *Config) validateTicketStore() ValidationErrors {
	var errs ValidationErrors
	k := c.TicketStore.Kafka
	if !k.Enabled {
		return nil
	}
	if len(k.Brokers) == 0 {
		errs = append(errs, ValidationError{
			Field:   "ticket_store.kafka.brokers",
			Message: "required when kafka is enabled",
		})
	}
	if k.Topic == "" {
		errs = append(errs, ValidationError{
			Field:   "ticket_store.kafka.topic",
			Message: "required when kafka is enabled",
		})
	}
	return errs
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
