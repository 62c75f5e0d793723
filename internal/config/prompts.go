package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// PromptExt is the extension of prompt files.
const PromptExt = ".txt"

// LoadPrompts reads every PromptExt file in dir, in filename order. The id
// is the filename without its extension. Empty files are skipped with a
// warning. A missing directory is a configuration error; an existing but
// empty one yields no prompts.
func LoadPrompts(dir string, logger *slog.Logger) ([]domain.PromptUnit, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, "", err)
	}

	var prompts []domain.PromptUnit
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != PromptExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), PromptExt)
		if !domain.ValidID(id) {
			return nil, domain.NewConfigError(dir, e.Name(), fmt.Errorf("invalid prompt id %q", id))
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, domain.NewConfigError(dir, e.Name(), err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			logger.Warn("skipping empty prompt file", "file", e.Name())
			continue
		}
		prompts = append(prompts, domain.PromptUnit{ID: id, Text: text})
	}

	slices.SortFunc(prompts, func(a, b domain.PromptUnit) int { return strings.Compare(a.ID, b.ID) })
	return prompts, nil
}
