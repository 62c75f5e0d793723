// Package config loads everything a stage needs before it starts: the
// optional pipeline YAML, the model and rater JSON configurations, the
// prompt directory and the credential snapshot. Every problem is reported
// as a domain.ConfigError so stages can abort before doing any work.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm/configuration"
	"github.com/ahrav/go-scriptbench/internal/pool"
	"github.com/ahrav/go-scriptbench/internal/store"
)

// DefaultPipelineFile is read when present and no --config flag is given.
const DefaultPipelineFile = "pipeline.yaml"

// Paths locates the pipeline's inputs and outputs.
type Paths struct {
	Models       string `yaml:"models"`
	Raters       string `yaml:"raters"`
	Prompts      string `yaml:"prompts"`
	RaterPrompts string `yaml:"rater_prompts"`
	Output       string `yaml:"output"`
	Leaderboard  string `yaml:"leaderboard"`

	// Events is the JSON-lines run journal. Empty disables it.
	Events string `yaml:"events"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Pipeline is the full pipeline configuration.
type Pipeline struct {
	Paths       Paths        `yaml:"paths"`
	Store       store.Config `yaml:"store"`
	Concurrency int          `yaml:"concurrency"`
	Log         Log          `yaml:"log"`

	// LLM carries http_timeout, retry and rate_limits at the top level.
	LLM configuration.Config `yaml:",inline"`
}

// Default returns the layout the pipeline uses without a YAML file.
func Default() *Pipeline {
	return &Pipeline{
		Paths: Paths{
			Models:       "config/models_config.json",
			Raters:       "config/autoraters_config.json",
			Prompts:      "script_prompts",
			RaterPrompts: "autorater_prompts",
			Output:       "output",
			Leaderboard:  "docs/leaderboard.json",
		},
		Store:       store.DefaultConfig(),
		Concurrency: pool.DefaultLimit,
		Log:         Log{Level: "info", Format: "text"},
		LLM:         *configuration.DefaultConfig(),
	}
}

// LoadPipeline reads path over the defaults. An empty path tries
// DefaultPipelineFile and falls back to defaults when it does not exist;
// an explicit path must exist.
func LoadPipeline(path string) (*Pipeline, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPipelineFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.NewConfigError(path, "", fmt.Errorf("parse YAML: %w", err))
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, domain.NewConfigError(path, "", err)
	}

	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, domain.NewConfigError(path, "", err)
	}
	return cfg, nil
}

// applyDerivedDefaults fills settings that default to other settings.
func (p *Pipeline) applyDerivedDefaults() {
	if p.Store.Backend == "" {
		p.Store.Backend = store.BackendFS
	}
	if p.Store.Backend == store.BackendFS && p.Store.FS.Root == "" {
		p.Store.FS.Root = p.Paths.Output
	}
	if p.Concurrency <= 0 {
		p.Concurrency = pool.DefaultLimit
	}
}

// Validate checks every section.
func (p *Pipeline) Validate() error {
	var errs []error
	for field, v := range map[string]string{
		"paths.models":        p.Paths.Models,
		"paths.raters":        p.Paths.Raters,
		"paths.prompts":       p.Paths.Prompts,
		"paths.rater_prompts": p.Paths.RaterPrompts,
		"paths.output":        p.Paths.Output,
		"paths.leaderboard":   p.Paths.Leaderboard,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}
	if err := p.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(p.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", p.Log.Format))
	}
	return errors.Join(errs...)
}
