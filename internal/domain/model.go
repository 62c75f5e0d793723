// Package domain defines the data model shared by every pipeline stage:
// model and rater configuration, prompt units, persisted generation and
// rating results, leaderboard entries and the work-unit key scheme.
//
// Configuration types are read-only inputs loaded once per invocation.
// Result types are append-only; a persisted result is never mutated.
package domain

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Supported provider identifiers. The set is closed; adding a provider means
// adding a constant here and a variant in the providers package.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// KnownProvider reports whether name is one of the supported providers.
func KnownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderOllama:
		return true
	default:
		return false
	}
}

// ModelConfig identifies one generation target.
type ModelConfig struct {
	// ID is unique across the configuration set and becomes part of every
	// work-unit key that involves this model.
	ID string `json:"id" validate:"required,unitid"`

	// Provider selects the adapter variant.
	Provider string `json:"provider" validate:"required"`

	// ModelName is the provider-side model identifier (e.g. "gpt-4o").
	ModelName string `json:"model_name" validate:"required"`

	// CredentialRef names the environment variable holding the API key.
	// Empty means the provider default.
	CredentialRef string `json:"credential_ref,omitempty"`

	// Endpoint overrides the provider base URL.
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`

	// GenerationParams is decoded into GenerationParams by Params.
	GenerationParams map[string]any `json:"generation_params,omitempty"`
}

// Validate checks required fields and the provider name.
func (m ModelConfig) Validate() error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	if !KnownProvider(m.Provider) {
		return fmt.Errorf("unknown provider %q", m.Provider)
	}
	if _, err := m.Params(); err != nil {
		return err
	}
	return nil
}

// Params decodes the free-form generation parameters.
func (m ModelConfig) Params() (GenerationParams, error) {
	return DecodeGenerationParams(m.GenerationParams)
}

// GenerationParams are the tuning knobs every adapter understands.
// Nil pointers mean "provider default".
type GenerationParams struct {
	Temperature  *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	TopP         *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
	MaxTokens    int      `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
	SystemPrompt string   `mapstructure:"system_prompt" json:"system_prompt,omitempty"`
}

// DecodeGenerationParams converts a JSON-decoded parameter object into
// GenerationParams. Unknown keys are rejected so typos surface at startup.
func DecodeGenerationParams(raw map[string]any) (GenerationParams, error) {
	var p GenerationParams
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &p,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("generation_params: %w", err)
	}
	if p.MaxTokens < 0 {
		return p, fmt.Errorf("generation_params: max_tokens must be >= 0, got %d", p.MaxTokens)
	}
	return p, nil
}

// WithDefaultSystemPrompt returns p with sys filled in when p has none.
func (p GenerationParams) WithDefaultSystemPrompt(sys string) GenerationParams {
	if p.SystemPrompt == "" {
		p.SystemPrompt = sys
	}
	return p
}

// RaterConfig is one auto-rater: a prompt template, the model that answers
// it and the weight applied to its scores. Weight is an arbitrary multiplier
// and is never normalized.
type RaterConfig struct {
	ID string `json:"id" validate:"required,unitid"`

	// PromptTemplate is the template text. It may be given inline or loaded
	// from PromptFile.
	PromptTemplate string `json:"prompt_template,omitempty"`

	// PromptFile names a template file in the rater prompt directory.
	PromptFile string `json:"prompt_file,omitempty"`

	// ModelRef must match a ModelConfig.ID.
	ModelRef string `json:"model_ref" validate:"required,unitid"`

	Weight float64 `json:"weight"`
}

// Validate checks required fields. Template resolution happens in the
// config loader.
func (r RaterConfig) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.PromptTemplate == "" && r.PromptFile == "" {
		return fmt.Errorf("rater %q: one of prompt_template or prompt_file is required", r.ID)
	}
	return nil
}

// PromptUnit is one script-writing prompt.
type PromptUnit struct {
	ID   string `json:"id" validate:"required,unitid"`
	Text string `json:"text" validate:"required"`
}

// Validate checks the prompt id and text.
func (p PromptUnit) Validate() error { return validate.Struct(p) }
