package retry

import (
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-scriptbench/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
)

// calculateBackoff computes the delay before the attempt after attempt.
// A provider Retry-After takes precedence over exponential backoff.
func (r *Retrier) calculateBackoff(attempt int, err error) time.Duration {
	if retryAfter := llmerrors.RetryAfter(err); retryAfter > 0 {
		return retryAfter
	}
	return ExponentialBackoff(attempt, r.config)
}

// ExponentialBackoff calculates retry delays using exponential backoff with jitter.
// The delay after attempt n is InitialInterval * Multiplier^(n-1), capped at
// MaxInterval, then drawn uniformly from [0, delay] when jitter is enabled.
// Returns zero duration for non-positive attempt numbers.
func ExponentialBackoff(attempt int, config configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := config.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond // Minimum 1ms to prevent hot loop.
	}
	multiplier := config.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}

	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if backoff > config.MaxInterval {
			backoff = config.MaxInterval
			break
		}
	}

	if config.UseJitter {
		// Full jitter using thread-safe rand/v2.
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter is appropriate here
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}
