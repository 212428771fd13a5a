//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pgEdge/pgedge-ticket-router/internal/analyzer"
	"github.com/pgEdge/pgedge-ticket-router/internal/composer"
	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/corpus"
	"github.com/pgEdge/pgedge-ticket-router/internal/database"
	"github.com/pgEdge/pgedge-ticket-router/internal/evaluator"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/factory"
	"github.com/pgEdge/pgedge-ticket-router/internal/resilience"
	"github.com/pgEdge/pgedge-ticket-router/internal/retriever"
	"github.com/pgEdge/pgedge-ticket-router/internal/sanitizer"
	"github.com/pgEdge/pgedge-ticket-router/internal/ticketstore"
)

// ErrReadOnlyCorpus is returned by Ingest when the store cannot be written.
var ErrReadOnlyCorpus = errors.New("corpus store does not support ingestion")

// Manager builds the pipeline from configuration and owns its resources.
type Manager struct {
	mu           sync.RWMutex
	config       *config.Config
	orchestrator *Orchestrator
	embedder     llm.EmbeddingProvider
	store        corpus.Store
	sink         ticketstore.Sink
	dbPool       *database.Pool
	policies     []*resilience.Policy
	logger       *slog.Logger
	closed       bool
}

// ManagerConfig contains configuration for creating a Manager. The
// optional fields replace what would otherwise be built from Config.
type ManagerConfig struct {
	Config *config.Config
	Logger *slog.Logger

	Embedding  llm.EmbeddingProvider
	Completion llm.CompletionProvider
	Judge      llm.CompletionProvider
	Store      corpus.Store
	Sink       ticketstore.Sink
	Detector   sanitizer.LanguageDetector
}

// NewManager builds every stage from cfg: providers wrapped in one
// resilience policy per dependency, the corpus store, and the sink.
func NewManager(ctx context.Context, mc ManagerConfig) (*Manager, error) {
	cfg := mc.Config
	logger := mc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config: cfg,
		logger: logger,
	}

	if err := m.buildProviders(&mc); err != nil {
		return nil, err
	}

	embedPolicy := m.policy("embedding")
	complPolicy := m.policy("completion")
	judgePolicy := complPolicy
	if cfg.LLM.Judge != cfg.LLM.Completion {
		judgePolicy = m.policy("judge")
	}

	m.embedder = resilience.WrapEmbedding(mc.Embedding, embedPolicy)
	completion := resilience.WrapCompletion(mc.Completion, complPolicy)
	judge := resilience.WrapCompletion(mc.Judge, judgePolicy)

	store, err := m.buildStore(ctx, mc.Store)
	if err != nil {
		return nil, err
	}
	m.store = store

	if cfg.Corpus.DocumentsDir != "" {
		docs, err := corpus.ReadDir(cfg.Corpus.DocumentsDir)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to read documents: %w", err)
		}
		if _, err := m.Ingest(ctx, docs); err != nil {
			m.Close()
			return nil, err
		}
	}

	m.sink = mc.Sink
	if m.sink == nil {
		m.sink = buildSink(cfg.TicketStore, logger)
	}

	m.orchestrator = NewOrchestrator(OrchestratorConfig{
		Sanitizer: sanitizer.New(sanitizer.Config{
			AllowedLanguages:  cfg.Sanitizer.AllowedLanguages,
			ExtraSpamKeywords: cfg.Sanitizer.ExtraSpamKeywords,
			Detector:          mc.Detector,
		}),
		Analyzer: analyzer.New(analyzer.Config{
			Provider:   completion,
			Domain:     cfg.Analysis.Domain,
			Categories: cfg.Analysis.Categories,
			Logger:     logger,
		}),
		Retriever: retriever.New(retriever.Config{
			Embedder:      m.embedder,
			Completer:     completion,
			Store:         store,
			TopK:          cfg.Retrieval.TopK,
			SnippetLength: cfg.Retrieval.SnippetLength,
			Logger:        logger,
		}),
		Evaluator: evaluator.New(evaluator.Config{
			Judge:            judge,
			Weights:          cfg.Evaluation.Weights,
			MinContextLength: cfg.Evaluation.MinContextLength,
			Logger:           logger,
		}),
		Composer: composer.New(composer.Config{
			Provider: completion,
			Logger:   logger,
		}),
		Sink:              m.sink,
		Analysis:          cfg.Analysis,
		DefaultDepartment: cfg.Escalation.DefaultDepartment,
		Threshold:         cfg.Evaluation.Threshold,
		Budget:            cfg.Resilience.TicketTimeout,
		Logger:            logger,
	})

	logger.Info("pipeline ready",
		"embedding_provider", cfg.LLM.Embedding.Provider,
		"completion_provider", cfg.LLM.Completion.Provider,
		"judge_provider", cfg.LLM.Judge.Provider,
		"corpus_backend", cfg.Corpus.Backend,
	)
	return m, nil
}

// buildProviders fills the providers of mc that were not injected.
func (m *Manager) buildProviders(mc *ManagerConfig) error {
	if mc.Embedding != nil && mc.Completion != nil && mc.Judge != nil {
		return nil
	}

	keys, err := config.NewAPIKeyLoader(m.config.APIKeys).LoadKeysFor(m.config.LLM)
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}

	if mc.Embedding == nil {
		if mc.Embedding, err = factory.NewEmbeddingProvider(m.config.LLM.Embedding, m.config.Corpus.Dimensions, keys); err != nil {
			return fmt.Errorf("failed to create embedding provider: %w", err)
		}
	}
	if mc.Completion == nil {
		if mc.Completion, err = factory.NewCompletionProvider(m.config.LLM.Completion, keys); err != nil {
			return fmt.Errorf("failed to create completion provider: %w", err)
		}
	}
	if mc.Judge == nil {
		if m.config.LLM.Judge == m.config.LLM.Completion {
			mc.Judge = mc.Completion
		} else if mc.Judge, err = factory.NewCompletionProvider(m.config.LLM.Judge, keys); err != nil {
			return fmt.Errorf("failed to create judge provider: %w", err)
		}
	}
	return nil
}

func (m *Manager) policy(name string) *resilience.Policy {
	p := resilience.New(resilience.SettingsFrom(name, m.config.Resilience, m.logger))
	m.policies = append(m.policies, p)
	return p
}

func (m *Manager) buildStore(ctx context.Context, injected corpus.Store) (corpus.Store, error) {
	if injected != nil {
		return injected, nil
	}
	if m.config.Corpus.Backend != config.BackendPostgres {
		return corpus.NewMemoryStore(), nil
	}

	pool, err := database.NewPool(ctx, m.config.Corpus.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	m.dbPool = pool
	m.logger.Info("connected to corpus database",
		"connection", database.ConnectionString(m.config.Corpus.Database))
	return database.NewStore(pool, m.config.Corpus.Table, m.config.Corpus.Dimensions), nil
}

func buildSink(cfg config.TicketStoreConfig, logger *slog.Logger) ticketstore.Sink {
	if !cfg.Kafka.Enabled {
		return ticketstore.NopSink{}
	}
	logger.Info("publishing outcomes to kafka", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return ticketstore.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}

// Orchestrator returns the configured orchestrator.
func (m *Manager) Orchestrator() *Orchestrator {
	return m.orchestrator
}

// ProcessTicket runs a ticket through the pipeline.
func (m *Manager) ProcessTicket(ctx context.Context, text string) *Result {
	return m.orchestrator.ProcessTicket(ctx, text)
}

// HandleRating forwards a customer rating to the orchestrator.
func (m *Manager) HandleRating(
	ctx context.Context,
	rating RatingEvent,
	analysis analyzer.Analysis,
	report sanitizer.Report,
) (*Escalated, error) {
	return m.orchestrator.HandleRating(ctx, rating, analysis, report)
}

// Ingest chunks, embeds and writes docs to the corpus. For the postgres
// backend the table is created first when missing.
func (m *Manager) Ingest(ctx context.Context, docs []corpus.Document) (int, error) {
	w, ok := m.store.(corpus.Writer)
	if !ok {
		return 0, ErrReadOnlyCorpus
	}
	if s, ok := m.store.(*database.Store); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			return 0, err
		}
	}

	loader := corpus.NewLoader(corpus.LoaderConfig{
		Embedder:  m.embedder,
		Writer:    w,
		BatchSize: m.config.Corpus.BatchSize,
		ChunkSize: m.config.Corpus.ChunkSize,
		Logger:    m.logger,
	})
	return loader.Load(ctx, docs)
}

// Dependencies returns the circuit breaker state of each dependency.
func (m *Manager) Dependencies() map[string]string {
	out := make(map[string]string, len(m.policies))
	for _, p := range m.policies {
		out[p.Name()] = p.State()
	}
	return out
}

// Close shuts down the manager and releases resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.sink != nil {
		err = m.sink.Close()
	}
	if m.dbPool != nil {
		m.dbPool.Close()
	}
	return err
}
