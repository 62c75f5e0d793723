package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// LoadRaters reads the rater configuration at path, resolves prompt_file
// references against promptDir and checks every model_ref against models.
func LoadRaters(path, promptDir string, models []domain.ModelConfig) ([]domain.RaterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigError(path, "", err)
	}
	return ParseRaters(path, data, promptDir, models)
}

// ParseRaters is LoadRaters over already-read bytes.
func ParseRaters(source string, data []byte, promptDir string, models []domain.ModelConfig) ([]domain.RaterConfig, error) {
	raters, err := decodeList[domain.RaterConfig](data, "raters")
	if err != nil {
		return nil, domain.NewConfigError(source, "", err)
	}
	if len(raters) == 0 {
		return nil, domain.NewConfigError(source, "raters", errEmptyList)
	}

	known := ModelIndex(models)
	seen := make(map[string]struct{}, len(raters))
	for i := range raters {
		r := &raters[i]
		field := fmt.Sprintf("raters[%d]", i)
		if err := r.Validate(); err != nil {
			return nil, domain.NewConfigError(source, field, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, domain.NewConfigError(source, field, fmt.Errorf("duplicate rater id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
		if _, ok := known[r.ModelRef]; !ok {
			return nil, domain.NewConfigError(source, field+".model_ref", fmt.Errorf("unknown model %q", r.ModelRef))
		}
		if r.PromptTemplate == "" {
			tmpl, err := readTemplate(promptDir, r.PromptFile)
			if err != nil {
				return nil, domain.NewConfigError(source, field+".prompt_file", err)
			}
			r.PromptTemplate = tmpl
		}
	}
	return raters, nil
}

func readTemplate(dir, name string) (string, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(dir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("template file " + path + " is empty")
	}
	return string(data), nil
}
