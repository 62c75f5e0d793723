package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

var errEmptyList = errors.New("no entries")

// decodeList accepts either a top-level JSON array or an object holding
// the array under wrapper.
func decodeList[T any](data []byte, wrapper string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errEmptyList
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return items, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	raw, ok := wrapped[wrapper]
	if !ok {
		return nil, fmt.Errorf("expected an array or an object with %q", wrapper)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", wrapper, err)
	}
	return items, nil
}

// LoadModels reads and validates the model configuration at path.
func LoadModels(path string) ([]domain.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigError(path, "", err)
	}
	return ParseModels(path, data)
}

// ParseModels decodes model configurations. source labels errors.
func ParseModels(source string, data []byte) ([]domain.ModelConfig, error) {
	models, err := decodeList[domain.ModelConfig](data, "models")
	if err != nil {
		return nil, domain.NewConfigError(source, "", err)
	}
	if len(models) == 0 {
		return nil, domain.NewConfigError(source, "models", errEmptyList)
	}

	seen := make(map[string]struct{}, len(models))
	for i, m := range models {
		field := fmt.Sprintf("models[%d]", i)
		if err := m.Validate(); err != nil {
			return nil, domain.NewConfigError(source, field, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, domain.NewConfigError(source, field, fmt.Errorf("duplicate model id %q", m.ID))
		}
		seen[m.ID] = struct{}{}
	}
	return models, nil
}

// ModelIndex maps model id to its configuration.
func ModelIndex(models []domain.ModelConfig) map[string]domain.ModelConfig {
	idx := make(map[string]domain.ModelConfig, len(models))
	for _, m := range models {
		idx[m.ID] = m
	}
	return idx
}
