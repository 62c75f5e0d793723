package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// openAICodec speaks OpenAI's chat/completions API.
type openAICodec struct {
	endpoint  string
	modelName string
	apiKey    string
}

func newOpenAICodec(model domain.ModelConfig, apiKey string) *openAICodec {
	return &openAICodec{
		endpoint:  endpointOr(model, defaultOpenAIEndpoint),
		modelName: model.ModelName,
		apiKey:    apiKey,
	}
}

func (c *openAICodec) Name() string { return domain.ProviderOpenAI }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
}

// Build constructs the chat/completions request with the system prompt as
// a leading system message.
func (c *openAICodec) Build(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	messages := make([]openAIMessage, 0, 2)
	if params.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: params.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	jsonBody, err := json.Marshal(openAIRequest{
		Model:       c.modelName,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpReq, nil
}

// Parse returns the first choice's message content.
func (c *openAICodec) Parse(httpResp *http.Response, body []byte) (string, error) {
	if httpResp.StatusCode != http.StatusOK {
		return "", parseOpenAIError(httpResp, body)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", invalidResponse(domain.ProviderOpenAI, httpResp.StatusCode, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// parseOpenAIError extracts error details from OpenAI's JSON error format.
func parseOpenAIError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errResp)

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}
	return newStatusError(domain.ProviderOpenAI, httpResp, body, errResp.Error.Message, code)
}
