//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package factory provides functions to create LLM providers from configuration.
package factory

import (
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/anthropic"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/mistral"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/ollama"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/openai"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm/voyage"
)

// Provider constants for matching configuration values.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderVoyage    = "voyage"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
)

// NewEmbeddingProvider creates an embedding provider based on configuration.
// dimensions is the configured corpus vector size.
func NewEmbeddingProvider(
	cfg config.LLMConfig,
	dimensions int,
	apiKeys *config.LoadedKeys,
) (llm.EmbeddingProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		opts := []openai.EmbeddingOption{
			openai.WithEmbeddingClient(openai.NewClient(apiKeys.OpenAI, openaiClientOptions(cfg)...)),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		if dimensions > 0 {
			opts = append(opts, openai.WithDimensions(dimensions))
		}
		return openai.NewEmbeddingProvider(apiKeys.OpenAI, opts...), nil

	case ProviderVoyage:
		if apiKeys.Voyage == "" {
			return nil, fmt.Errorf("Voyage API key not configured")
		}
		opts := []voyage.EmbeddingOption{}
		if cfg.Model != "" {
			opts = append(opts, voyage.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, voyage.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, voyage.WithTimeout(cfg.Timeout))
		}
		if dimensions > 0 {
			opts = append(opts, voyage.WithDimensions(dimensions))
		}
		return voyage.NewEmbeddingProvider(apiKeys.Voyage, opts...), nil

	case ProviderOllama:
		opts := []ollama.EmbeddingOption{
			ollama.WithEmbeddingClient(ollama.NewClient(ollamaClientOptions(cfg)...)),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithEmbeddingModel(cfg.Model))
		}
		if dimensions > 0 {
			opts = append(opts, ollama.WithDimensions(dimensions))
		}
		return ollama.NewEmbeddingProvider(opts...), nil

	case ProviderMistral:
		if apiKeys.Mistral == "" {
			return nil, fmt.Errorf("Mistral API key not configured")
		}
		return mistral.NewEmbeddingProvider(apiKeys.Mistral, mistralOptions(cfg), dimensions), nil

	case ProviderAnthropic:
		return nil, fmt.Errorf("Anthropic does not provide an embedding API")

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewCompletionProvider creates a completion provider based on configuration.
func NewCompletionProvider(
	cfg config.LLMConfig,
	apiKeys *config.LoadedKeys,
) (llm.CompletionProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		if apiKeys.OpenAI == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		opts := []openai.CompletionOption{
			openai.WithCompletionClient(openai.NewClient(apiKeys.OpenAI, openaiClientOptions(cfg)...)),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithCompletionModel(cfg.Model))
		}
		return openai.NewCompletionProvider(apiKeys.OpenAI, opts...), nil

	case ProviderAnthropic:
		if apiKeys.Anthropic == "" {
			return nil, fmt.Errorf("Anthropic API key not configured")
		}
		var clientOpts []anthropic.ClientOption
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, anthropic.WithTimeout(cfg.Timeout))
		}
		opts := []anthropic.CompletionOption{
			anthropic.WithCompletionClient(anthropic.NewClient(apiKeys.Anthropic, clientOpts...)),
		}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithCompletionModel(cfg.Model))
		}
		return anthropic.NewCompletionProvider(apiKeys.Anthropic, opts...), nil

	case ProviderOllama:
		opts := []ollama.CompletionOption{
			ollama.WithCompletionClient(ollama.NewClient(ollamaClientOptions(cfg)...)),
		}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithCompletionModel(cfg.Model))
		}
		return ollama.NewCompletionProvider(opts...), nil

	case ProviderMistral:
		if apiKeys.Mistral == "" {
			return nil, fmt.Errorf("Mistral API key not configured")
		}
		return mistral.NewCompletionProvider(apiKeys.Mistral, mistralOptions(cfg)), nil

	case ProviderVoyage:
		return nil, fmt.Errorf("Voyage does not provide a completion API")

	default:
		return nil, fmt.Errorf("unknown completion provider: %s", cfg.Provider)
	}
}

func openaiClientOptions(cfg config.LLMConfig) []openai.ClientOption {
	var opts []openai.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(cfg.Timeout))
	}
	return opts
}

func ollamaClientOptions(cfg config.LLMConfig) []ollama.ClientOption {
	var opts []ollama.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ollama.WithTimeout(cfg.Timeout))
	}
	return opts
}

func mistralOptions(cfg config.LLMConfig) mistral.Options {
	return mistral.Options{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		TimeoutSecs: cfg.Timeout,
	}
}
