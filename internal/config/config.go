//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// pgEdge Ticket Router.
package config

import "time"

// Config is the root configuration structure for the router.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	APIKeys     APIKeysConfig     `yaml:"api_keys"`
	LLM         LLMSection        `yaml:"llm"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Sanitizer   SanitizerConfig   `yaml:"sanitizer"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Resilience  ResilienceConfig  `yaml:"resilience"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	TicketStore TicketStoreConfig `yaml:"ticket_store"`
	LogLevel    string            `yaml:"log_level"`
}

// APIKeysConfig contains paths to files containing API keys for LLM providers.
// If not specified, keys are loaded from environment variables or default
// file locations (~/.anthropic-api-key, ~/.openai-api-key, ~/.voyage-api-key,
// ~/.mistral-api-key).
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"` // Path to file containing Anthropic API key
	OpenAI    string `yaml:"openai"`    // Path to file containing OpenAI API key
	Voyage    string `yaml:"voyage"`    // Path to file containing Voyage API key
	Mistral   string `yaml:"mistral"`   // Path to file containing Mistral API key
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LLMSection configures the three model dependencies. The judge falls
// back to the completion model when its provider is empty.
type LLMSection struct {
	Embedding  LLMConfig `yaml:"embedding"`
	Completion LLMConfig `yaml:"completion"`
	Judge      LLMConfig `yaml:"judge"`
}

// LLMConfig contains settings for an LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"` // Optional endpoint override
	Timeout  int    `yaml:"timeout"`  // HTTP timeout in seconds, 0 for provider default
}

// Corpus backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// CorpusConfig describes the knowledge corpus and how it is loaded.
type CorpusConfig struct {
	Backend      string         `yaml:"backend"` // memory or postgres
	Database     DatabaseConfig `yaml:"database"`
	Table        TableConfig    `yaml:"table"`
	DocumentsDir string         `yaml:"documents_dir"` // Loaded at startup for the memory backend
	BatchSize    int            `yaml:"batch_size"`    // Texts per embedding request
	ChunkSize    int            `yaml:"chunk_size"`    // Max characters per chunk
	Dimensions   int            `yaml:"dimensions"`    // Embedding vector size
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"` // 0 for the pgxpool default

	// Certificate-based authentication
	SSLCert   string `yaml:"ssl_cert"`
	SSLKey    string `yaml:"ssl_key"`
	SSLRootCA string `yaml:"ssl_root_ca"`
}

// TableConfig names the table and columns holding corpus chunks.
type TableConfig struct {
	Name            string `yaml:"name"`
	IDColumn        string `yaml:"id_column"`
	ContentColumn   string `yaml:"content_column"`
	CategoryColumn  string `yaml:"category_column"`
	EmbeddingColumn string `yaml:"embedding_column"`
}

// RetrievalConfig controls evidence ranking and prompt construction.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	SnippetLength int `yaml:"snippet_length"` // Max characters per snippet in prompts
}

// Category is a topical label the analyzer may assign.
type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Department  string `yaml:"department"` // Escalation target, defaults to Name
}

// AnalysisConfig describes the supported domain.
type AnalysisConfig struct {
	Domain     string     `yaml:"domain"`
	Categories []Category `yaml:"categories"`
}

// SanitizerConfig configures the precheck gate.
type SanitizerConfig struct {
	AllowedLanguages  []string `yaml:"allowed_languages"`   // ISO 639-1 codes
	ExtraSpamKeywords []string `yaml:"extra_spam_keywords"` // Appended to the built-in list
}

// Weights are the confidence combination weights.
type Weights struct {
	Retrieval    float64 `yaml:"retrieval"`
	Relevance    float64 `yaml:"relevance"`
	Faithfulness float64 `yaml:"faithfulness"`
}

// EvaluationConfig configures the confidence gate.
type EvaluationConfig struct {
	Threshold        float64 `yaml:"threshold"`
	MinContextLength int     `yaml:"min_context_length"`
	Weights          Weights `yaml:"weights"`
}

// ResilienceConfig parameterizes the policy wrapped around every model call.
type ResilienceConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	Multiplier       float64       `yaml:"multiplier"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	RateLimit        float64       `yaml:"rate_limit"` // Calls per second, 0 for unlimited
	Burst            int           `yaml:"burst"`

	// TicketTimeout bounds the whole run of one ticket. Retries stop when
	// it runs out and the ticket is escalated with the fallback notice.
	TicketTimeout time.Duration `yaml:"ticket_timeout"`
}

// EscalationConfig configures human hand-off.
type EscalationConfig struct {
	DefaultDepartment string `yaml:"default_department"`
}

// TicketStoreConfig configures where outcomes are handed off.
type TicketStoreConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig contains Kafka producer settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DefaultCategories mirrors the ticket types of the support desk.
func DefaultCategories() []Category {
	return []Category{
		{Name: "legal", Description: "contracts, compliance, personal data requests"},
		{Name: "support", Description: "accounts, passwords, software and hardware problems"},
		{Name: "operations", Description: "infrastructure, outages, network, access badges"},
		{Name: "other", Description: "anything else within the domain", Department: "general_support"},
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Corpus: CorpusConfig{
			Backend:    BackendMemory,
			BatchSize:  32,
			ChunkSize:  1000,
			Dimensions: 1536,
		},
		Retrieval: RetrievalConfig{
			TopK:          3,
			SnippetLength: 500,
		},
		Analysis: AnalysisConfig{
			Domain: "internal IT and customer support",
		},
		Evaluation: EvaluationConfig{
			Threshold:        0.6,
			MinContextLength: 20,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			InitialBackoff:   4 * time.Second,
			MaxBackoff:       10 * time.Second,
			Multiplier:       2,
			FailureThreshold: 3,
			Cooldown:         60 * time.Second,
			CallTimeout:      30 * time.Second,
			TicketTimeout:    45 * time.Second,
		},
		Escalation: EscalationConfig{
			DefaultDepartment: "general_support",
		},
		TicketStore: TicketStoreConfig{
			Kafka: KafkaConfig{
				Topic: "ticket-outcomes",
			},
		},
		LogLevel: "info",
	}
}

// DefaultWeights returns the confidence weights used when none are set.
func DefaultWeights() Weights {
	return Weights{Retrieval: 0.3, Relevance: 0.35, Faithfulness: 0.35}
}

// DepartmentFor returns the escalation department of a category, or ""
// when the category is not configured.
func (a AnalysisConfig) DepartmentFor(category string) string {
	for _, c := range a.Categories {
		if c.Name == category {
			if c.Department != "" {
				return c.Department
			}
			return c.Name
		}
	}
	return ""
}
