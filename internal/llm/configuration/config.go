// Package configuration holds the tunables of the model-call pipeline:
// HTTP timeout, retry policy and per-provider admission limits.
package configuration

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the resilience settings shared by every query in a run.
type Config struct {
	// HTTPTimeout bounds one provider call, not the retry sequence.
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`

	Retry RetryConfig `yaml:"retry" json:"retry"`

	// RateLimits maps provider id to its admission limit. Providers without
	// an entry are not paced.
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits" json:"rate_limits"`
}

// RetryConfig controls retry behavior for transient model-call failures.
// Implements exponential backoff with optional full jitter.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`         // Total attempts including the first
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`         // Maximum backoff duration
	Multiplier      float64       `yaml:"multiplier" json:"multiplier"`             // Exponential backoff multiplier
	UseJitter       bool          `yaml:"use_jitter" json:"use_jitter"`             // Enable full jitter randomization
}

// RateLimitConfig is a token bucket for one provider.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

var (
	errMaxAttemptsInvalid     = errors.New("max_attempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initial_interval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("max_interval must be >= initial_interval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errRateInvalid            = errors.New("requests_per_second must be greater than 0")
	errBurstInvalid           = errors.New("burst must be greater than 0")
	errHTTPTimeoutInvalid     = errors.New("http_timeout must be >= 0")
)

// Validate checks the retry policy.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, c.MaxAttempts)
	}
	if c.InitialInterval <= 0 {
		return fmt.Errorf("%w, got %v", errInitialIntervalInvalid, c.InitialInterval)
	}
	if c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("%w, max_interval: %v, initial_interval: %v", errMaxIntervalInvalid, c.MaxInterval, c.InitialInterval)
	}
	if c.Multiplier < 1.0 {
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, c.Multiplier)
	}
	return nil
}

// Validate checks the bucket parameters.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w, got %v", errRateInvalid, c.RequestsPerSecond)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("%w, got %d", errBurstInvalid, c.Burst)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w, got %v", errHTTPTimeoutInvalid, c.HTTPTimeout)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	for provider, rl := range c.RateLimits {
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("rate_limits.%s: %w", provider, err)
		}
	}
	return nil
}
