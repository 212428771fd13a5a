//-------------------------------------------------------------------------
//
// pgEdge Ticket Router
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package resilience wraps calls to external model services in a single
// policy: an outbound rate limit, a circuit breaker shared by all callers
// of the dependency, and a bounded exponential retry with a per-attempt
// timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pgEdge/pgedge-ticket-router/internal/config"
	"github.com/pgEdge/pgedge-ticket-router/internal/llm"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings parameterize a Policy.
type Settings struct {
	Name             string
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	Multiplier       float64
	FailureThreshold int
	Cooldown         time.Duration
	CallTimeout      time.Duration
	RateLimit        float64 // Calls per second, 0 for unlimited
	Burst            int
	Logger           *slog.Logger
}

// SettingsFrom builds Settings for a named dependency from configuration.
func SettingsFrom(name string, cfg config.ResilienceConfig, logger *slog.Logger) Settings {
	return Settings{
		Name:             name,
		MaxAttempts:      cfg.MaxAttempts,
		InitialBackoff:   cfg.InitialBackoff,
		MaxBackoff:       cfg.MaxBackoff,
		Multiplier:       cfg.Multiplier,
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown,
		CallTimeout:      cfg.CallTimeout,
		RateLimit:        cfg.RateLimit,
		Burst:            cfg.Burst,
		Logger:           logger,
	}
}

// Policy guards one external dependency. It is safe for concurrent use;
// the breaker state is shared by every caller.
type Policy struct {
	settings Settings
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a Policy. Zero fields take the defaults of 3 attempts,
// 4s..10s backoff doubling, a breaker tripping after 3 consecutive
// failures with a 60s cooldown, and a 30s call timeout.
func New(s Settings) *Policy {
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 3
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = 4 * time.Second
	}
	if s.MaxBackoff < s.InitialBackoff {
		s.MaxBackoff = max(10*time.Second, s.InitialBackoff)
	}
	if s.Multiplier < 1 {
		s.Multiplier = 2
	}
	if s.FailureThreshold < 1 {
		s.FailureThreshold = 3
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 60 * time.Second
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 30 * time.Second
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("dependency", s.Name)

	p := &Policy{settings: s, logger: logger}

	if s.RateLimit > 0 {
		burst := s.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(s.RateLimit), burst)
	}

	threshold := uint32(s.FailureThreshold)
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up says nothing about the dependency.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"from", from.String(),
				"to", to.String())
		},
	})

	return p
}

// Name returns the dependency name.
func (p *Policy) Name() string {
	return p.settings.Name
}

// State returns the breaker state ("closed", "half-open" or "open").
func (p *Policy) State() string {
	return p.breaker.State().String()
}

// Do runs fn under the policy. Each attempt gets its own timeout derived
// from ctx. Retryable failures are retried with exponential backoff until
// attempts run out; an open breaker, a permanent failure or the caller's
// cancellation stops immediately.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		attempt++
		_, err := p.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.settings.CallTimeout)
			defer cancel()
			return nil, fn(callCtx)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}

		p.logger.Debug("call failed, will retry",
			"attempt", attempt,
			"error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.settings.InitialBackoff
	b.MaxInterval = p.settings.MaxBackoff
	b.Multiplier = p.settings.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	retries := uint64(p.settings.MaxAttempts - 1)
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx))
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return fmt.Errorf("%s: %w", p.settings.Name, err)
		}
		return fmt.Errorf("%s failed after %d attempt(s): %w", p.settings.Name, attempt, err)
	}
	return nil
}

// Call runs fn under p and returns its value.
func Call[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// retryable reports whether a failed attempt is worth repeating. Provider
// errors carry their own classification; a per-attempt deadline is a
// timeout and therefore transient; anything unclassified is assumed to be
// a transport problem.
func retryable(err error) bool {
	if llm.IsClassified(err) {
		return llm.IsRetryable(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
