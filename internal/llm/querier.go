// Package llm provides the ModelQuerier: one uniform entry point that sends
// a prompt to any configured model and always returns an Outcome, never an
// error.
//
// Architecture:
//   - Provider-agnostic adapters resolved and cached per model id
//   - Middleware chain, outermost first: logging, auth circuit breaker,
//     retry, rate limiter, adapter
//   - Request/response only (no streaming)
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm/circuitbreaker"
	"github.com/ahrav/go-scriptbench/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
	"github.com/ahrav/go-scriptbench/internal/llm/providers"
	"github.com/ahrav/go-scriptbench/internal/llm/ratelimit"
	"github.com/ahrav/go-scriptbench/internal/llm/retry"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

// Failure describes why a query produced no text.
type Failure struct {
	Kind    llmerrors.ErrorType `json:"kind"`
	Message string              `json:"message"`
}

// Outcome is the result of one Query: Text on success, Failure otherwise.
type Outcome struct {
	Text     string
	Failure  *Failure
	Attempts int
}

// OK reports whether the query succeeded.
func (o Outcome) OK() bool { return o.Failure == nil }

// Options configures a Querier.
type Options struct {
	Config      *configuration.Config
	Credentials providers.Credentials

	// HTTPClient is shared by every adapter. When nil a client with
	// Config.HTTPTimeout is created.
	HTTPClient *http.Client

	// Resolver overrides adapter resolution. Tests use it to inject fakes.
	Resolver transport.Resolver

	Logger *slog.Logger
}

// Querier sends prompts to configured models through the middleware chain.
// It is safe for concurrent use.
type Querier struct {
	handler transport.Handler
	retrier *retry.Retrier
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.AuthBreaker
	logger  *slog.Logger
}

// NewQuerier builds the middleware chain from opts.
func NewQuerier(ctx context.Context, opts Options) (*Querier, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver := opts.Resolver
	if resolver == nil {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		resolver = providers.NewRouter(ctx, opts.Credentials, client)
	}

	retrier, err := retry.NewRetryMiddlewareWithConfig(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}
	limiter, err := ratelimit.New(cfg.RateLimits)
	if err != nil {
		return nil, err
	}
	breaker := circuitbreaker.New(credentialKey)

	handler := transport.Chain(
		transport.NewCoreHandler(resolver),
		NewLoggingMiddleware(logger),
		breaker.Middleware(),
		retrier.Middleware(),
		limiter.Middleware(),
	)

	return &Querier{
		handler: handler,
		retrier: retrier,
		limiter: limiter,
		breaker: breaker,
		logger:  logger.With("component", "querier"),
	}, nil
}

// credentialKey groups requests that share a provider credential.
func credentialKey(req *transport.Request) string {
	return req.Provider() + "/" + providers.CredentialRef(req.Model)
}

// QueryOption adjusts the parameters of one query.
type QueryOption func(*domain.GenerationParams)

// WithDefaultSystemPrompt sets the system prompt when the model
// configuration does not provide one.
func WithDefaultSystemPrompt(sys string) QueryOption {
	return func(p *domain.GenerationParams) { *p = p.WithDefaultSystemPrompt(sys) }
}

// Query sends prompt to model. Failures of any kind, including an unknown
// provider, undecodable parameters or a panicking adapter, become an
// Outcome with a Failure.
func (q *Querier) Query(ctx context.Context, model domain.ModelConfig, prompt string, opts ...QueryOption) (out Outcome) {
	req := &transport.Request{Model: model, Prompt: prompt}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("adapter panicked", "model", model.ID, "panic", r)
			out = Outcome{
				Failure:  &Failure{Kind: llmerrors.ErrorTypeUnknown, Message: fmt.Sprintf("panic: %v", r)},
				Attempts: req.Attempts,
			}
		}
	}()

	params, err := model.Params()
	if err != nil {
		return Outcome{Failure: &Failure{Kind: llmerrors.ErrorTypeConfig, Message: err.Error()}}
	}
	for _, opt := range opts {
		opt(&params)
	}
	req.Params = params

	resp, err := q.handler.Handle(ctx, req)
	if err != nil {
		return Outcome{
			Failure:  &Failure{Kind: llmerrors.Classify(err), Message: err.Error()},
			Attempts: req.Attempts,
		}
	}
	return Outcome{Text: resp.Text, Attempts: req.Attempts}
}

// Stats summarizes resilience activity for the run.
type Stats struct {
	Retry           retry.RetryStats
	RateLimit       ratelimit.Stats
	BreakerRejected int64
}

// Stats returns a snapshot of retry, pacing and breaker activity.
func (q *Querier) Stats() Stats {
	return Stats{
		Retry:           q.retrier.Stats(),
		RateLimit:       q.limiter.Stats(),
		BreakerRejected: q.breaker.Rejected(),
	}
}
