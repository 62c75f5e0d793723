package configuration

import (
	"time"
)

// HTTP constants.
const (
	DefaultHTTPTimeout = 120 * time.Second
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialInterval   = 500 * time.Millisecond
	DefaultMaxInterval       = 20 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// DefaultConfig returns the settings used when the pipeline file omits a
// section. No provider is rate limited by default.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Retry:       DefaultRetryConfig(),
		RateLimits:  map[string]RateLimitConfig{},
	}
}

// DefaultRetryConfig returns exponential backoff with full jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultBackoffMultiplier,
		UseJitter:       true,
	}
}
