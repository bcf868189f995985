// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GovernorConfig sets the outbound request ceiling for one credential pair.
// Metrc does not publish exact limits, so the defaults are conservative and
// everything here is configuration, not a constant.
type GovernorConfig struct {
	RequestsPerMinute    int           // steady-state ceiling per credential pair
	Burst                int           // bucket capacity
	WaitTimeout          time.Duration // max time Acquire blocks before failing
	MinRequestsPerMinute int           // floor Tighten will not go below
}

// DefaultGovernorConfig returns conservative defaults.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		RequestsPerMinute:    50,
		Burst:                10,
		WaitTimeout:          30 * time.Second,
		MinRequestsPerMinute: 6,
	}
}

// Governor throttles outbound requests per credential pair with independent
// token buckets, so one facility's backlog never starves another's bucket.
type Governor struct {
	config GovernorConfig
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewGovernor creates a governor. Pass nil for logger to use the default.
func NewGovernor(config GovernorConfig, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		config:  config,
		logger:  logger,
		buckets: make(map[string]*rate.Limiter),
	}
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

func (g *Governor) limiter(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	lim, ok := g.buckets[key]
	if !ok {
		lim = rate.NewLimiter(perMinute(g.config.RequestsPerMinute), g.config.Burst)
		g.buckets[key] = lim
	}
	return lim
}

// Acquire blocks until a token is available for key or the configured wait
// timeout elapses. A timeout is classified ClassRateLimitTimeout, which the
// orchestrator treats as retryable. Cancellation of ctx is passed through
// unclassified so deadline handling stays with the caller.
func (g *Governor) Acquire(ctx context.Context, key string) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.config.WaitTimeout)
	defer cancel()

	if err := g.limiter(key).Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SyncError{
			Class:   ClassRateLimitTimeout,
			Message: "timed out waiting for an upstream request slot",
			Err:     err,
		}
	}
	return nil
}

// Tighten reduces the ceiling for key after an upstream 429, down to the
// configured floor. The reduction persists for the life of the process.
func (g *Governor) Tighten(key string) {
	lim := g.limiter(key)
	floor := perMinute(g.config.MinRequestsPerMinute)
	next := lim.Limit() * 0.8
	if next < floor {
		next = floor
	}
	lim.SetLimit(next)
	g.logger.Warn("Tightened upstream rate ceiling",
		"requests_per_minute", float64(next)*60.0,
	)
}

// Limit reports the current per-minute ceiling for key.
func (g *Governor) Limit(key string) float64 {
	return float64(g.limiter(key).Limit()) * 60.0
}
