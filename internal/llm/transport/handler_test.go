package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string, domain.GenerationParams) (string, error) {
	g.calls++
	return g.text, g.err
}

type stubResolver struct {
	gen transport.Generator
	err error
}

func (r stubResolver) Resolve(domain.ModelConfig) (transport.Generator, error) {
	return r.gen, r.err
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) transport.Middleware {
		return func(next transport.Handler) transport.Handler {
			return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
				order = append(order, name+":before")
				resp, err := next.Handle(ctx, req)
				order = append(order, name+":after")
				return resp, err
			})
		}
	}

	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		order = append(order, "core")
		return &transport.Response{Text: "ok"}, nil
	})

	h := transport.Chain(core, mw("first"), mw("second"))
	resp, err := h.Handle(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, []string{"first:before", "second:before", "core", "second:after", "first:after"}, order)
}

func TestChain_NoMiddleware(t *testing.T) {
	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{Text: "bare"}, nil
	})
	resp, err := transport.Chain(core).Handle(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, "bare", resp.Text)
}

func TestCoreHandler(t *testing.T) {
	t.Run("success counts one attempt", func(t *testing.T) {
		gen := &stubGenerator{text: "a script"}
		h := transport.NewCoreHandler(stubResolver{gen: gen})

		req := &transport.Request{Prompt: "write"}
		resp, err := h.Handle(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "a script", resp.Text)
		assert.Equal(t, 1, req.Attempts)
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("generator error counts attempt", func(t *testing.T) {
		boom := errors.New("boom")
		h := transport.NewCoreHandler(stubResolver{gen: &stubGenerator{err: boom}})

		req := &transport.Request{}
		resp, err := h.Handle(context.Background(), req)
		require.ErrorIs(t, err, boom)
		assert.Nil(t, resp)
		assert.Equal(t, 1, req.Attempts)
	})

	t.Run("resolve error makes no call", func(t *testing.T) {
		unknown := errors.New("unknown provider")
		h := transport.NewCoreHandler(stubResolver{err: unknown})

		req := &transport.Request{}
		_, err := h.Handle(context.Background(), req)
		require.ErrorIs(t, err, unknown)
		assert.Zero(t, req.Attempts)
	})
}
