package providers

import (
	"context"
	"net/http"
	"sync"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

// Router resolves model configurations to adapters, building each adapter
// once per model id and reusing it for the rest of the run.
type Router struct {
	ctx    context.Context
	creds  Credentials
	client *http.Client

	mu       sync.Mutex
	adapters map[string]Adapter
}

var _ transport.Resolver = (*Router)(nil)

// NewRouter creates a router that injects creds and client into every
// adapter it builds. ctx scopes clients that hold background resources.
func NewRouter(ctx context.Context, creds Credentials, client *http.Client) *Router {
	return &Router{
		ctx:      ctx,
		creds:    creds,
		client:   client,
		adapters: make(map[string]Adapter),
	}
}

// Pick returns the cached adapter for model, creating it on first use.
// Unknown providers are ErrUnknownProvider and are not cached.
func (r *Router) Pick(model domain.ModelConfig) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[model.ID]; ok {
		return a, nil
	}
	a, err := New(r.ctx, model, r.creds, r.client)
	if err != nil {
		return nil, err
	}
	r.adapters[model.ID] = a
	return a, nil
}

// Resolve implements transport.Resolver.
func (r *Router) Resolve(model domain.ModelConfig) (transport.Generator, error) {
	return r.Pick(model)
}
