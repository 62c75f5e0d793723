// Package circuitbreaker latches provider credentials that were rejected.
// Once a credential fails authentication every later call for it fails
// immediately without a network round trip, for the rest of the run.
package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

// CircuitState represents the current state of a breaker.
type CircuitState int32

const (
	// StateClosed allows requests through.
	StateClosed CircuitState = iota
	// StateOpen blocks all requests.
	StateOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// tripTypes are the failure types that open a breaker. Other failures
// pass through untouched, including permission denials, which are per
// model rather than per credential.
var tripTypes = map[llmerrors.ErrorType]bool{
	llmerrors.ErrorTypeAuth: true,
}

type breaker struct {
	state CircuitState
	cause llmerrors.ErrorType
}

// KeyFunc derives the breaker key for a request. Requests sharing a key
// share a breaker.
type KeyFunc func(req *transport.Request) string

// AuthBreaker tracks one breaker per credential key.
type AuthBreaker struct {
	keyFn  KeyFunc
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*breaker

	rejected atomic.Int64
}

// New creates an AuthBreaker keyed by keyFn.
func New(keyFn KeyFunc) *AuthBreaker {
	return &AuthBreaker{
		keyFn:    keyFn,
		logger:   slog.Default().With("component", "circuit_breaker"),
		breakers: make(map[string]*breaker),
	}
}

// State returns the state of the breaker for key.
func (b *AuthBreaker) State(key string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[key]; ok {
		return br.state
	}
	return StateClosed
}

// Rejected returns how many requests were refused by open breakers.
func (b *AuthBreaker) Rejected() int64 { return b.rejected.Load() }

// check returns the open breaker's cause, or "" when closed.
func (b *AuthBreaker) check(key string) llmerrors.ErrorType {
	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[key]; ok && br.state == StateOpen {
		return br.cause
	}
	return ""
}

// trip opens the breaker for key. It reports whether this call opened it.
func (b *AuthBreaker) trip(key string, cause llmerrors.ErrorType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[key]; ok && br.state == StateOpen {
		return false
	}
	b.breakers[key] = &breaker{state: StateOpen, cause: cause}
	return true
}

// Middleware returns the breaker as a transport.Middleware.
func (b *AuthBreaker) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			key := b.keyFn(req)
			if cause := b.check(key); cause != "" {
				b.rejected.Add(1)
				return nil, &llmerrors.CircuitBreakerError{Provider: req.Provider(), Key: key, Cause: cause}
			}

			resp, err := next.Handle(ctx, req)
			if err == nil {
				return resp, nil
			}

			if cause := llmerrors.Classify(err); tripTypes[cause] {
				if b.trip(key, cause) {
					b.logger.Warn("credential rejected, failing remaining calls fast",
						"provider", req.Provider(),
						"key", key,
						"cause", cause,
						"error", err)
				}
			}
			return nil, err
		})
	}
}
