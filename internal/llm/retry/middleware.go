// Package retry provides the retry middleware of the model-call pipeline.
// Transient failures are retried with exponential backoff and provider
// Retry-After guidance; everything else fails on the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-scriptbench/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

var (
	// ErrRetriesExhausted wraps the last error once every attempt failed.
	ErrRetriesExhausted = errors.New("all retries exhausted")

	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// Retrier implements retry logic with exponential backoff.
// Handles transient failures with configurable retry policies and respects
// provider-specific retry guidance like Retry-After headers.
type Retrier struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats

	// wait blocks for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

// NewRetryMiddlewareWithConfig creates a Retrier for cfg.
func NewRetryMiddlewareWithConfig(cfg configuration.RetryConfig) (*Retrier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retrier{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
		wait:   timerWait,
	}, nil
}

// timerWait sleeps on a timer so cancellation is observed immediately.
func timerWait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Middleware returns the retry middleware function.
func (r *Retrier) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, err)
			}

			var lastErr error
			maxAttempts := r.config.MaxAttempts
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				resp, err := next.Handle(ctx, req)
				r.stats.totalAttempts.Add(1)

				if err == nil {
					if attempt > 1 {
						r.stats.successfulRetries.Add(1)
						r.logger.Info("request succeeded after retry",
							"attempt", attempt,
							"provider", req.Provider(),
							"model", req.Model.ID)
					} else {
						r.stats.successfulFirstAttempts.Add(1)
					}
					return resp, nil
				}

				if !llmerrors.IsRetryable(err) {
					r.stats.nonRetryable.Add(1)
					r.logger.Debug("non-retryable error",
						"error", err,
						"attempt", attempt,
						"provider", req.Provider())
					return nil, err
				}

				lastErr = err
				if attempt == maxAttempts {
					break
				}

				backoff := r.calculateBackoff(attempt, err)
				r.recordBackoffMetrics(backoff)

				r.logger.Debug("retrying after backoff",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
					"provider", req.Provider(),
					"model", req.Model.ID)

				if err := r.wait(ctx, backoff); err != nil {
					return nil, fmt.Errorf("%w: %w (last error: %w)", errContextCancelledDuringRetry, err, lastErr)
				}
			}

			r.stats.failedRetries.Add(1)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
		})
	}
}
