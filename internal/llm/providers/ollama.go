package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// ollamaCodec speaks the local Ollama /api/generate endpoint with streaming
// disabled. It needs no credential.
type ollamaCodec struct {
	endpoint  string
	modelName string
}

func newOllamaCodec(model domain.ModelConfig) *ollamaCodec {
	return &ollamaCodec{
		endpoint:  endpointOr(model, defaultOllamaEndpoint),
		modelName: model.ModelName,
	}
}

func (c *ollamaCodec) Name() string { return domain.ProviderOllama }

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

// Build constructs a non-streaming generate request.
func (c *ollamaCodec) Build(ctx context.Context, prompt string, params domain.GenerationParams) (*http.Request, error) {
	req := ollamaRequest{
		Model:  c.modelName,
		Prompt: prompt,
		System: params.SystemPrompt,
	}
	if params.Temperature != nil || params.TopP != nil || params.MaxTokens > 0 {
		req.Options = &ollamaOptions{
			Temperature: params.Temperature,
			TopP:        params.TopP,
			NumPredict:  params.MaxTokens,
		}
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// Parse returns the response field of the final (only) message.
func (c *ollamaCodec) Parse(httpResp *http.Response, body []byte) (string, error) {
	if httpResp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		return "", newStatusError(domain.ProviderOllama, httpResp, body, errResp.Error, "")
	}

	var resp struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", invalidResponse(domain.ProviderOllama, httpResp.StatusCode, err)
	}
	return resp.Response, nil
}
