package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion         = "2023-06-01"

	// anthropicDefaultMaxTokens is sent when the model sets none; the
	// messages API requires the field.
	anthropicDefaultMaxTokens = 4096
)

// anthropicCodec speaks Anthropic's messages API, which carries the system
// prompt as a top-level field rather than a message.
type anthropicCodec struct {
	endpoint  string
	modelName string
	apiKey    string
}

func newAnthropicCodec(model domain.ModelConfig, apiKey string) *anthropicCodec {
	return &anthropicCodec{
		endpoint:  endpointOr(model, defaultAnthropicEndpoint),
		modelName: model.ModelName,
		apiKey:    apiKey,
	}
}

func (c *anthropicCodec) Name() string { return domain.ProviderAnthropic }

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Build constructs the messages request.
func (c *anthropicCodec) Build(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	jsonBody, err := json.Marshal(anthropicRequest{
		Model:       c.modelName,
		System:      params.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

// Parse concatenates the text blocks of the response content.
func (c *anthropicCodec) Parse(httpResp *http.Response, body []byte) (string, error) {
	if httpResp.StatusCode != http.StatusOK {
		return "", parseAnthropicError(httpResp, body)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", invalidResponse(domain.ProviderAnthropic, httpResp.StatusCode, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// parseAnthropicError extracts error details from Anthropic's
// {"type":"error","error":{"type":...,"message":...}} envelope.
func parseAnthropicError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errResp)
	return newStatusError(domain.ProviderAnthropic, httpResp, body, errResp.Error.Message, errResp.Error.Type)
}
