// Package transport defines the request pipeline shared by every model call:
// a Handler processes one Request and Middleware layers cross-cutting
// behavior (logging, circuit breaking, retries, rate limiting) around the
// provider adapter at the core.
package transport

import (
	"context"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// Request is a single prompt sent to one configured model.
type Request struct {
	Model  domain.ModelConfig
	Prompt string
	Params domain.GenerationParams

	// Attempts counts calls that reached the core handler. The core handler
	// increments it, middleware only reads it.
	Attempts int
}

// Provider returns the provider id the request routes to.
func (r *Request) Provider() string { return r.Model.Provider }

// Response carries the text a provider returned.
type Response struct {
	Text string
}

// Handler processes model requests through a composable middleware pipeline.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms Handler into enhanced Handler for composable behavior.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// Middleware executes in the order provided with first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Generator is the provider-facing half of the pipeline.
type Generator interface {
	Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)
}

// Resolver returns the Generator for a model configuration.
type Resolver interface {
	Resolve(model domain.ModelConfig) (Generator, error)
}

// NewCoreHandler creates the innermost handler, which resolves the model's
// generator and performs exactly one call.
func NewCoreHandler(resolver Resolver) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		gen, err := resolver.Resolve(req.Model)
		if err != nil {
			return nil, err
		}

		req.Attempts++
		text, err := gen.Generate(ctx, req.Prompt, req.Params)
		if err != nil {
			return nil, err
		}
		return &Response{Text: text}, nil
	})
}
