package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/config"
	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/generation"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: ExitOK},
		{name: "config error", err: domain.NewConfigError("models.json", "", errors.New("bad")), want: ExitUsage},
		{name: "no inputs", err: fmt.Errorf("stage: %w", generation.ErrNoPrompts), want: ExitUsage},
		{name: "runtime", err: errors.New("connection refused"), want: ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.want, ExitCode(tt.err, &buf))
			if tt.err != nil {
				assert.Contains(t, buf.String(), tt.err.Error())
			}
		})
	}
}

func validPipeline() *config.Pipeline {
	cfg := config.Default()
	cfg.Store.FS.Root = "output"
	return cfg
}

func TestApplyFlags(t *testing.T) {
	cfg := validPipeline()

	require.NoError(t, applyFlags(cfg, Flags{Concurrency: 16, MaxAttempts: 1, LogLevel: "debug", LogFormat: "json", EventsFile: "ev.jsonl"}))
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, 1, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ev.jsonl", cfg.Paths.Events)

	// Zero flags leave file values alone.
	require.NoError(t, applyFlags(cfg, Flags{}))
	assert.Equal(t, 16, cfg.Concurrency)

	require.ErrorIs(t, applyFlags(validPipeline(), Flags{Concurrency: -1}), domain.ErrConfig)
	require.ErrorIs(t, applyFlags(validPipeline(), Flags{MaxAttempts: -2}), domain.ErrConfig)
	require.ErrorIs(t, applyFlags(validPipeline(), Flags{LogFormat: "xml"}), domain.ErrConfig)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, config.Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])

	_, err = NewLogger(&buf, config.Log{Level: "loud"})
	require.ErrorIs(t, err, domain.ErrConfig)
	_, err = NewLogger(&buf, config.Log{Format: "xml"})
	require.ErrorIs(t, err, domain.ErrConfig)
}

// ollamaServer answers generation prompts with a script naming the model
// and rating prompts with a score that favors m2.
func ollamaServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := "FADE IN. A script by " + req.Model + "."
		if strings.HasPrefix(req.Prompt, "Rate:") {
			resp = `{"score": 7}`
			if strings.Contains(req.Prompt, "by llama-b") {
				resp = `{"score": 9}`
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": resp, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type workspace struct {
	dir     string
	configF string
}

func newWorkspace(t *testing.T, endpoint string) workspace {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("config/models.json", fmt.Sprintf(`{"models":[
		{"id":"m1","provider":"ollama","model_name":"llama-a","endpoint":%q},
		{"id":"m2","provider":"ollama","model_name":"llama-b","endpoint":%q}
	]}`, endpoint, endpoint))
	write("config/raters.json", `[{"id":"overall","prompt_file":"overall.txt","model_ref":"m1","weight":1}]`)
	write("rater_prompts/overall.txt", "Rate: {{script_text}}")
	write("prompts/p1.txt", "Write a heist.")
	write("prompts/p2.txt", "Write a romance.")
	write("pipeline.yaml", fmt.Sprintf(`
paths:
  models: %[1]s/config/models.json
  raters: %[1]s/config/raters.json
  prompts: %[1]s/prompts
  rater_prompts: %[1]s/rater_prompts
  output: %[1]s/output
  leaderboard: %[1]s/docs/leaderboard.json
  events: %[1]s/events.jsonl
retry:
  max_attempts: 1
  initial_interval: 1ms
  max_interval: 1ms
  multiplier: 1
`, dir))
	return workspace{dir: dir, configF: filepath.Join(dir, "pipeline.yaml")}
}

func (w workspace) run(t *testing.T, newCmd func() *cobra.Command) int {
	t.Helper()
	cmd := newCmd()
	var logs bytes.Buffer
	cmd.SetErr(&logs)
	cmd.SetOut(&logs)
	cmd.SetArgs([]string{"--config", w.configF, "--env-file", filepath.Join(w.dir, "absent.env"), "--concurrency", "2"})
	code := ExitCode(cmd.ExecuteContext(context.Background()), &logs)
	if code != ExitOK {
		t.Logf("logs:\n%s", logs.String())
	}
	return code
}

func TestPipeline_EndToEnd(t *testing.T) {
	var calls atomic.Int64
	srv := ollamaServer(t, &calls)
	ws := newWorkspace(t, srv.URL)

	require.Equal(t, ExitOK, ws.run(t, NewScriptGenCommand))
	assert.EqualValues(t, 4, calls.Load(), "2 models x 2 prompts")

	// A second run finds every unit done and makes no model calls.
	require.Equal(t, ExitOK, ws.run(t, NewScriptGenCommand))
	assert.EqualValues(t, 4, calls.Load())

	require.Equal(t, ExitOK, ws.run(t, NewAutorateCommand))
	assert.EqualValues(t, 8, calls.Load(), "4 scripts x 1 rater")

	require.Equal(t, ExitOK, ws.run(t, NewLeaderboardCommand))
	data, err := os.ReadFile(filepath.Join(ws.dir, "docs", "leaderboard.json"))
	require.NoError(t, err)
	var entries []domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "m2", entries[0].ModelID)
	assert.InDelta(t, 18.0, entries[0].TotalScore, 1e-9)
	assert.InDelta(t, 9.0, entries[0].AverageScore, 1e-9)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "m1", entries[1].ModelID)
	assert.InDelta(t, 14.0, entries[1].TotalScore, 1e-9)
	assert.Equal(t, 2, entries[1].Rank)

	journal, err := os.ReadFile(filepath.Join(ws.dir, "events.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(journal), `"leaderboard.published"`)
}

func TestPipeline_MissingInputsExitUsage(t *testing.T) {
	var calls atomic.Int64
	srv := ollamaServer(t, &calls)
	ws := newWorkspace(t, srv.URL)

	// Nothing generated yet.
	assert.Equal(t, ExitUsage, ws.run(t, NewAutorateCommand))
	assert.Equal(t, ExitUsage, ws.run(t, NewLeaderboardCommand))

	require.NoError(t, os.Remove(filepath.Join(ws.dir, "config", "models.json")))
	assert.Equal(t, ExitUsage, ws.run(t, NewScriptGenCommand))
	assert.Zero(t, calls.Load())
}
