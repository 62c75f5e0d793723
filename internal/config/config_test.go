package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipeline_DefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadPipeline("")
	require.NoError(t, err)
	assert.Equal(t, "config/models_config.json", cfg.Paths.Models)
	assert.Equal(t, "docs/leaderboard.json", cfg.Paths.Leaderboard)
	assert.Equal(t, store.BackendFS, cfg.Store.Backend)
	assert.Equal(t, "output", cfg.Store.FS.Root)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoadPipeline_ExplicitMissingFile(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoadPipeline_OverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pipeline.yaml", `
paths:
  output: runs/out
  events: runs/events.jsonl
concurrency: 8
http_timeout: 30s
retry:
  max_attempts: 5
  initial_interval: 100ms
  max_interval: 2s
  multiplier: 2
rate_limits:
  openai:
    requests_per_second: 2
    burst: 4
log:
  level: debug
  format: json
`)

	cfg, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, "runs/out", cfg.Paths.Output)
	assert.Equal(t, "runs/out", cfg.Store.FS.Root)
	assert.Equal(t, "runs/events.jsonl", cfg.Paths.Events)
	assert.Equal(t, "script_prompts", cfg.Paths.Prompts)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.LLM.HTTPTimeout)
	assert.Equal(t, 5, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.LLM.Retry.InitialInterval)
	assert.Equal(t, 4, cfg.LLM.RateLimits["openai"].Burst)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadPipeline_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed", yaml: "paths: [unclosed"},
		{name: "bad retry", yaml: "retry:\n  max_attempts: 0\n"},
		{name: "bad log format", yaml: "log:\n  format: xml\n"},
		{name: "unknown backend", yaml: "store:\n  backend: tape\n"},
		{name: "bad rate limit", yaml: "rate_limits:\n  openai:\n    requests_per_second: 0\n    burst: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "pipeline.yaml", tt.yaml)
			_, err := LoadPipeline(path)
			require.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestParseModels(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "array",
			json:    `[{"id":"m1","provider":"openai","model_name":"gpt-4o"},{"id":"m2","provider":"ollama","model_name":"llama3"}]`,
			wantIDs: []string{"m1", "m2"},
		},
		{
			name:    "wrapper object",
			json:    `{"models":[{"id":"m1","provider":"anthropic","model_name":"claude","generation_params":{"temperature":0.7,"max_tokens":512}}]}`,
			wantIDs: []string{"m1"},
		},
		{name: "empty", json: `[]`, wantErr: true},
		{name: "blank", json: "  ", wantErr: true},
		{name: "wrong wrapper", json: `{"items":[]}`, wantErr: true},
		{name: "duplicate id", json: `[{"id":"m1","provider":"openai","model_name":"a"},{"id":"m1","provider":"openai","model_name":"b"}]`, wantErr: true},
		{name: "unknown provider", json: `[{"id":"m1","provider":"mystery","model_name":"a"}]`, wantErr: true},
		{name: "slash in id", json: `[{"id":"a/b","provider":"openai","model_name":"a"}]`, wantErr: true},
		{name: "unknown generation param", json: `[{"id":"m1","provider":"openai","model_name":"a","generation_params":{"temprature":1}}]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := ParseModels("models.json", []byte(tt.json))
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfig)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, m := range models {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestLoadModels_MissingFile(t *testing.T) {
	_, err := LoadModels(filepath.Join(t.TempDir(), "models.json"))
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestParseRaters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "voice.txt", "Rate the voice of {{script_text}}")
	models := []domain.ModelConfig{{ID: "judge", Provider: "openai", ModelName: "gpt-4o"}}

	t.Run("inline and file templates", func(t *testing.T) {
		raters, err := ParseRaters("raters.json", []byte(`{"raters":[
			{"id":"voice","prompt_file":"voice.txt","model_ref":"judge","weight":0.5},
			{"id":"plot","prompt_template":"Plot? {{script_text}}","model_ref":"judge","weight":-1}
		]}`), dir, models)
		require.NoError(t, err)
		require.Len(t, raters, 2)
		assert.Equal(t, "Rate the voice of {{script_text}}", raters[0].PromptTemplate)
		assert.Equal(t, "Plot? {{script_text}}", raters[1].PromptTemplate)
		assert.InDelta(t, -1.0, raters[1].Weight, 1e-9)
	})

	failures := map[string]string{
		"unknown model ref": `[{"id":"r1","prompt_template":"x","model_ref":"ghost","weight":1}]`,
		"missing template":  `[{"id":"r1","prompt_file":"absent.txt","model_ref":"judge","weight":1}]`,
		"no template":       `[{"id":"r1","model_ref":"judge","weight":1}]`,
		"duplicate id":      `[{"id":"r1","prompt_template":"x","model_ref":"judge"},{"id":"r1","prompt_template":"y","model_ref":"judge"}]`,
		"empty":             `{"raters":[]}`,
	}
	for name, body := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRaters("raters.json", []byte(body), dir, models)
			require.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_heist.txt", "Write a heist.\n")
	writeFile(t, dir, "a_space.txt", "Write a space opera.")
	writeFile(t, dir, "empty.txt", "  \n")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	prompts, err := LoadPrompts(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.PromptUnit{
		{ID: "a_space", Text: "Write a space opera."},
		{ID: "b_heist", Text: "Write a heist."},
	}, prompts)
}

func TestLoadPrompts_EmptyAndMissing(t *testing.T) {
	prompts, err := LoadPrompts(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, prompts)

	_, err = LoadPrompts(filepath.Join(t.TempDir(), "missing"), nil)
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestCredentials_EnvFileNeverOverrides(t *testing.T) {
	t.Setenv("SCRIPTBENCH_TEST_SET", "from-env")
	path := writeFile(t, t.TempDir(), ".env", "SCRIPTBENCH_TEST_SET=from-file\nSCRIPTBENCH_TEST_NEW=file-only\n")
	t.Cleanup(func() { _ = os.Unsetenv("SCRIPTBENCH_TEST_NEW") })

	creds, err := LoadCredentials(path, nil)
	require.NoError(t, err)

	v, ok := creds.Lookup("SCRIPTBENCH_TEST_SET")
	require.True(t, ok)
	assert.Equal(t, "from-env", v)
	v, ok = creds.Lookup("SCRIPTBENCH_TEST_NEW")
	require.True(t, ok)
	assert.Equal(t, "file-only", v)
}

func TestCredentials_SnapshotIsImmutable(t *testing.T) {
	t.Setenv("SCRIPTBENCH_TEST_KEY", "before")
	creds, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.env"), nil)
	require.NoError(t, err)

	t.Setenv("SCRIPTBENCH_TEST_KEY", "after")
	v, _ := creds.Lookup("SCRIPTBENCH_TEST_KEY")
	assert.Equal(t, "before", v)
}

func TestSnapshotEnv(t *testing.T) {
	creds := SnapshotEnv([]string{"A=1", "B=", "C=x=y", "malformed"})

	v, ok := creds.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = creds.Lookup("B")
	assert.False(t, ok, "empty values count as missing")
	v, _ = creds.Lookup("C")
	assert.Equal(t, "x=y", v)

	var nilCreds *Credentials
	_, ok = nilCreds.Lookup("A")
	assert.False(t, ok)
}
