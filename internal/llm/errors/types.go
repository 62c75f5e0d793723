// Package errors defines the failure taxonomy for model calls: classified
// error types, the structured ProviderError returned by adapters and the
// helpers that decide whether a failure is worth retrying.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType categorizes model-call failures for retry classification and
// for the error_kind recorded on failed work units.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates rate limit exceeded, retry with backoff (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates provider service unavailable, 5xx (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeValidation indicates the provider rejected the request (non-retryable).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeAuth indicates a missing or rejected credential (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypePermission indicates insufficient permissions (non-retryable).
	ErrorTypePermission ErrorType = "permission_denied"

	// ErrorTypeQuota indicates account quota exceeded (non-retryable).
	ErrorTypeQuota ErrorType = "quota_exceeded"

	// ErrorTypeInvalidResponse indicates a malformed or empty provider response.
	ErrorTypeInvalidResponse ErrorType = "invalid_response"

	// ErrorTypeConfig indicates the request could not be routed, such as an
	// unknown provider.
	ErrorTypeConfig ErrorType = "config"

	// ErrorTypeCancelled indicates the caller abandoned the request.
	ErrorTypeCancelled ErrorType = "cancelled"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Retryable reports whether failures of this type are transient.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// Sentinel errors for model calls.
var (
	// ErrUnknownProvider indicates an unknown or unsupported provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingCredential indicates the credential environment variable is unset.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidResponse indicates the provider returned an unparsable response.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrEmptyResponse indicates the provider returned no text.
	ErrEmptyResponse = errors.New("empty provider response")

	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("provider service unavailable")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCircuitBreakerOpen indicates calls for a credential are being refused.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

// ProviderError captures structured error responses from providers.
// Includes HTTP status codes, provider-specific error codes, and retry timing
// to enable appropriate retry behavior and error diagnosis.
type ProviderError struct {
	Provider   string    `json:"provider"`    // Provider name
	StatusCode int       `json:"status_code"` // HTTP status code, 0 when not HTTP
	Message    string    `json:"message"`     // Error message
	Code       string    `json:"code"`        // Provider error code
	Type       ErrorType `json:"type"`        // Classified error type
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
	Err        error     `json:"-"`           // Underlying sentinel or transport error
}

// Error returns formatted provider error with status code context.
func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable determines if the provider error warrants a retry attempt.
func (e *ProviderError) IsRetryable() bool { return e.Type.Retryable() }

// GetRetryAfter returns the provider-requested delay, or zero.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// NewAuthError builds the non-retryable error adapters return when their
// credential is missing.
func NewAuthError(provider, credentialRef string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("environment variable %s is not set", credentialRef),
		Type:     ErrorTypeAuth,
		Err:      ErrMissingCredential,
	}
}

// CircuitBreakerError is returned without a network call once a credential
// has been rejected. Cause is the type of the failure that opened it.
type CircuitBreakerError struct {
	Provider string    `json:"provider"`
	Key      string    `json:"key"`
	Cause    ErrorType `json:"cause"`
}

// Error returns formatted circuit breaker error with its cause.
func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s (%s): %s", e.Provider, e.Key, e.Cause)
}

func (e *CircuitBreakerError) Unwrap() error { return ErrCircuitBreakerOpen }
