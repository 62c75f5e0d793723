package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ahrav/go-scriptbench/internal/domain"
	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
)

// GoogleAdapter calls Gemini models through the official genai client.
type GoogleAdapter struct {
	cli       *genai.Client
	modelName string
}

// NewGoogleAdapter creates a Gemini API client bound to model. The endpoint
// override, when set, replaces the client's base URL.
func NewGoogleAdapter(ctx context.Context, model domain.ModelConfig, apiKey string, client *http.Client) (*GoogleAdapter, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
	}
	if model.Endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(model.Endpoint, "/") + "/"}
	}

	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleAdapter{cli: cli, modelName: model.ModelName}, nil
}

// Name returns the provider name.
func (a *GoogleAdapter) Name() string { return domain.ProviderGoogle }

// Generate sends prompt as a single user turn and joins the text parts of
// the first candidate.
func (a *GoogleAdapter) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	resp, err := a.cli.Models.GenerateContent(ctx, a.modelName,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		googleConfig(params),
	)
	if err != nil {
		return "", mapGoogleError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &llmerrors.ProviderError{
			Provider: domain.ProviderGoogle,
			Message:  "response contained no candidates",
			Type:     llmerrors.ErrorTypeInvalidResponse,
			Err:      llmerrors.ErrEmptyResponse,
		}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &llmerrors.ProviderError{
			Provider: domain.ProviderGoogle,
			Message:  "response contained no text",
			Type:     llmerrors.ErrorTypeInvalidResponse,
			Err:      llmerrors.ErrEmptyResponse,
		}
	}
	return sb.String(), nil
}

func googleConfig(params domain.GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if params.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: params.SystemPrompt}}}
	}
	if params.Temperature != nil {
		t := float32(*params.Temperature)
		cfg.Temperature = &t
	}
	if params.TopP != nil {
		p := float32(*params.TopP)
		cfg.TopP = &p
	}
	if params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxTokens) // #nosec G115 -- bounded by config validation
	}
	return cfg
}

// mapGoogleError converts genai API errors to ProviderError. Transport
// errors pass through for network classification.
func mapGoogleError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) {
			return fmt.Errorf("%s request failed: %w", domain.ProviderGoogle, err)
		}
		apiErr = *apiErrPtr
	}

	return &llmerrors.ProviderError{
		Provider:   domain.ProviderGoogle,
		StatusCode: apiErr.Code,
		Message:    apiErr.Message,
		Code:       apiErr.Status,
		Type:       classifyErrorType(apiErr.Code, apiErr.Status),
		Err:        err,
	}
}
