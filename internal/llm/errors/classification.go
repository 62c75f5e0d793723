package errors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// Classify maps any model-call error onto an ErrorType. Typed errors win
// over sentinels, and sentinels win over message patterns.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return cbErr.Cause
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.Type != "" {
		return providerErr.Type
	}

	if t := classifySentinel(err); t != "" {
		return t
	}

	if isNetworkError(err) {
		return ErrorTypeNetwork
	}

	return classifyStringPattern(err)
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// RetryAfter extracts a provider-requested delay from err, or zero.
func RetryAfter(err error) time.Duration {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.GetRetryAfter()
	}
	return 0
}

func classifySentinel(err error) ErrorType {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		return ErrorTypeConfig
	case errors.Is(err, ErrMissingCredential):
		return ErrorTypeAuth
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrEmptyResponse):
		return ErrorTypeInvalidResponse
	case errors.Is(err, ErrRateLimitExceeded):
		return ErrorTypeRateLimit
	case errors.Is(err, ErrProviderUnavailable):
		return ErrorTypeProvider
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	}
	return ""
}

// classifyStringPattern handles untyped errors by message inspection.
func classifyStringPattern(err error) ErrorType {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"):
		return ErrorTypeRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication"):
		return ErrorTypeAuth
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "permission"):
		return ErrorTypePermission
	case strings.Contains(msg, "quota"):
		return ErrorTypeQuota
	default:
		return ErrorTypeUnknown
	}
}

// isNetworkError checks if an error is a network-related error using proper type assertions.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) && netErr.Timeout() {
			return true
		}
		return isNetworkErrorByString(urlErr.Err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return isNetworkErrorByString(err.Error())
}

// isNetworkErrorByString checks for network errors using string patterns.
func isNetworkErrorByString(errStr string) bool {
	lowered := strings.ToLower(errStr)
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// networkErrorIndicators are pre-lowercased substrings of transport failures.
var networkErrorIndicators = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"unexpected eof",
}
