// Package providers implements the closed set of provider adapters. Each
// adapter turns (prompt, generation params) into one call against a single
// provider and surfaces failures as classified *llmerrors.ProviderError.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/go-scriptbench/internal/domain"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
)

// Adapter performs a single generation call against one provider.
// Adapters never retry; that is the querier's job.
type Adapter interface {
	Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error)

	// Name returns canonical provider identifier for routing and logging.
	Name() string
}

// Credentials resolves credential references to secret values.
type Credentials interface {
	Lookup(ref string) (string, bool)
}

// DefaultCredentialRef returns the environment variable a provider reads its
// key from when the model configuration names none. Ollama needs no key.
func DefaultCredentialRef(provider string) string {
	switch provider {
	case domain.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case domain.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case domain.ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// CredentialRef returns the model's credential reference or the provider default.
func CredentialRef(model domain.ModelConfig) string {
	if model.CredentialRef != "" {
		return model.CredentialRef
	}
	return DefaultCredentialRef(model.Provider)
}

// New builds the adapter variant for model.Provider. An unknown provider is
// ErrUnknownProvider. A missing credential is not an error here: the
// returned adapter fails every call with a non-retryable auth error.
func New(ctx context.Context, model domain.ModelConfig, creds Credentials, client *http.Client) (Adapter, error) {
	if !domain.KnownProvider(model.Provider) {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, model.Provider)
	}
	if client == nil {
		client = http.DefaultClient
	}

	var apiKey string
	if ref := CredentialRef(model); ref != "" {
		var key string
		if creds != nil {
			key, _ = creds.Lookup(ref)
		}
		if key == "" {
			return missingCredential{provider: model.Provider, ref: ref}, nil
		}
		apiKey = key
	}

	switch model.Provider {
	case domain.ProviderOpenAI:
		return newHTTPAdapter(client, newOpenAICodec(model, apiKey)), nil
	case domain.ProviderAnthropic:
		return newHTTPAdapter(client, newAnthropicCodec(model, apiKey)), nil
	case domain.ProviderOllama:
		return newHTTPAdapter(client, newOllamaCodec(model)), nil
	case domain.ProviderGoogle:
		return NewGoogleAdapter(ctx, model, apiKey, client)
	default:
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, model.Provider)
	}
}

// missingCredential stands in for an adapter whose key was not configured.
type missingCredential struct {
	provider string
	ref      string
}

func (m missingCredential) Name() string { return m.provider }

func (m missingCredential) Generate(context.Context, string, domain.GenerationParams) (string, error) {
	return "", llmerrors.NewAuthError(m.provider, m.ref)
}

// codec is the provider-specific half of an HTTP adapter.
type codec interface {
	// Build constructs the provider HTTP request for one prompt.
	Build(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error)

	// Parse extracts the generated text from a provider response.
	Parse(httpResp *http.Response, body []byte) (string, error)

	Name() string
}

// httpAdapter executes codec requests on a shared *http.Client.
type httpAdapter struct {
	client *http.Client
	codec  codec
}

func newHTTPAdapter(client *http.Client, c codec) *httpAdapter {
	return &httpAdapter{client: client, codec: c}
}

func (a *httpAdapter) Name() string { return a.codec.Name() }

func (a *httpAdapter) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	httpReq, err := a.codec.Build(ctx, prompt, params)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", a.codec.Name(), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s response: %w", a.codec.Name(), err)
	}

	text, err := a.codec.Parse(httpResp, body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &llmerrors.ProviderError{
			Provider:   a.codec.Name(),
			StatusCode: httpResp.StatusCode,
			Message:    "response contained no text",
			Type:       llmerrors.ErrorTypeInvalidResponse,
			Err:        llmerrors.ErrEmptyResponse,
		}
	}
	return text, nil
}

// endpointOr returns the model's endpoint override without a trailing
// slash, or def.
func endpointOr(model domain.ModelConfig, def string) string {
	if model.Endpoint != "" {
		return strings.TrimRight(model.Endpoint, "/")
	}
	return def
}
