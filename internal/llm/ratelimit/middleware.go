// Package ratelimit paces outbound model calls with one token bucket per
// provider. Callers block until a token is available instead of failing,
// so pacing never turns into recorded failures.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-scriptbench/internal/llm/configuration"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

// Limiter holds the token buckets for every configured provider.
// The bucket map is fixed at construction.
type Limiter struct {
	limiters map[string]*rate.Limiter
	stats    stats
	logger   *slog.Logger
}

// New builds a Limiter from per-provider limits. Providers without an
// entry are never paced.
func New(limits map[string]configuration.RateLimitConfig) (*Limiter, error) {
	l := &Limiter{
		limiters: make(map[string]*rate.Limiter, len(limits)),
		logger:   slog.Default().With("component", "ratelimit"),
	}
	for provider, cfg := range limits {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("rate limit for %s: %w", provider, err)
		}
		l.limiters[provider] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return l, nil
}

// Wait blocks until provider may send one request or ctx is done.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	lim, ok := l.limiters[provider]
	if !ok {
		return nil
	}

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", provider, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		l.stats.record(waited)
		l.logger.Debug("paced request", "provider", provider, "waited", waited)
	}
	return nil
}

// Middleware returns a transport.Middleware that waits for a token before
// every call, including retries.
func (l *Limiter) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := l.Wait(ctx, req.Provider()); err != nil {
				return nil, err
			}
			return next.Handle(ctx, req)
		})
	}
}

// Stats returns a snapshot of pacing activity.
func (l *Limiter) Stats() Stats { return l.stats.snapshot() }
