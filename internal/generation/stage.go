// Package generation implements the script generation stage: every
// (model, prompt) pair becomes one work unit whose outcome is persisted as a
// domain.GenerationResult. Units already in the store are skipped, so a
// re-run only does the work a previous run left unfinished.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm"
	"github.com/ahrav/go-scriptbench/internal/pool"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/pkg/events"
)

// DefaultSystemPrompt is sent when a model configures no system_prompt.
const DefaultSystemPrompt = "You are a helpful assistant, skilled in creative writing and generating theatrical scripts."

// Querier sends one prompt to one model.
type Querier interface {
	Query(ctx context.Context, model domain.ModelConfig, prompt string, opts ...llm.QueryOption) llm.Outcome
}

// Report counts unit outcomes for one run.
type Report struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// Errored units hit a store failure; nothing was persisted for them.
	Errored int `json:"errored"`

	// NotStarted units were never scheduled because the run was cancelled.
	NotStarted int `json:"not_started"`

	Total int `json:"total"`
}

// Options wires a Stage.
type Options struct {
	Querier     Querier
	Store       *store.Store[domain.GenerationResult]
	Concurrency int
	Events      *events.Emitter
	Logger      *slog.Logger

	// Now stamps results. Defaults to time.Now.
	Now func() time.Time
}

// Stage runs script generation.
type Stage struct {
	querier     Querier
	store       *store.Store[domain.GenerationResult]
	concurrency int
	events      *events.Emitter
	logger      *slog.Logger
	now         func() time.Time
}

// NewStage validates opts and returns a Stage.
func NewStage(opts Options) (*Stage, error) {
	if opts.Querier == nil {
		return nil, errors.New("generation: querier is required")
	}
	if opts.Store == nil {
		return nil, errors.New("generation: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Stage{
		querier:     opts.Querier,
		store:       opts.Store,
		concurrency: opts.Concurrency,
		events:      opts.Events,
		logger:      logger.With("stage", "scriptgen"),
		now:         now,
	}, nil
}

type unit struct {
	model  domain.ModelConfig
	prompt domain.PromptUnit
}

type outcome int

const (
	outcomeGenerated outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeErrored
)

// Run processes every (model, prompt) pair. Per-unit failures are counted,
// never returned; the error result is reserved for missing inputs.
func (s *Stage) Run(ctx context.Context, prompts []domain.PromptUnit, models []domain.ModelConfig) (Report, error) {
	if len(prompts) == 0 {
		return Report{}, ErrNoPrompts
	}
	if len(models) == 0 {
		return Report{}, ErrNoModels
	}

	units := make([]unit, 0, len(models)*len(prompts))
	for _, m := range models {
		for _, p := range prompts {
			units = append(units, unit{model: m, prompt: p})
		}
	}

	report := Report{Total: len(units)}
	var mu sync.Mutex
	s.logger.InfoContext(ctx, "generation started",
		"models", len(models), "prompts", len(prompts), "units", len(units))

	summary := pool.Run(ctx, s.concurrency, units, func(ctx context.Context, u unit) {
		o := s.process(ctx, u)
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeGenerated:
			report.Generated++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		case outcomeErrored:
			report.Errored++
		}
	})
	report.NotStarted = summary.NotStarted

	if summary.NotStarted > 0 {
		s.logger.WarnContext(ctx, "generation interrupted", "not_started", summary.NotStarted)
	}
	s.logger.InfoContext(ctx, "generation finished",
		"generated", report.Generated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"errored", report.Errored,
		"total", report.Total)
	s.events.Emit(ctx, events.TypeStageCompleted, "", report)
	return report, nil
}

func (s *Stage) process(ctx context.Context, u unit) outcome {
	key := domain.GenerationKey(u.model.ID, u.prompt.ID)
	log := s.logger.With("key", key.String(), "model", u.model.ID, "prompt", u.prompt.ID)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		log.ErrorContext(ctx, "exists check failed", "error", err)
		return outcomeErrored
	}
	if exists {
		log.DebugContext(ctx, "script already generated")
		return outcomeSkipped
	}

	start := s.now()
	out := s.querier.Query(ctx, u.model, u.prompt.Text, llm.WithDefaultSystemPrompt(DefaultSystemPrompt))
	result := domain.GenerationResult{
		ModelID:   u.model.ID,
		PromptID:  u.prompt.ID,
		Attempts:  out.Attempts,
		CreatedAt: s.now().UTC(),
	}
	if out.OK() {
		result.Status = domain.StatusOK
		result.Content = out.Text
	} else {
		result.Status = domain.StatusFailed
		result.Error = out.Failure.Message
		result.ErrorKind = string(out.Failure.Kind)
	}

	if err := s.store.Save(ctx, key, result); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.DebugContext(ctx, "script published concurrently; keeping existing artifact")
			return outcomeSkipped
		}
		log.ErrorContext(ctx, "failed to persist script", "error", err)
		return outcomeErrored
	}

	s.events.Emit(ctx, events.TypeScriptGenerated, key.String(), unitEvent{
		ModelID:   result.ModelID,
		PromptID:  result.PromptID,
		Status:    result.Status,
		ErrorKind: result.ErrorKind,
		Attempts:  result.Attempts,
		LatencyMs: s.now().Sub(start).Milliseconds(),
	})

	if !out.OK() {
		log.WarnContext(ctx, "generation failed",
			"error_kind", result.ErrorKind, "attempts", result.Attempts, "error", result.Error)
		return outcomeFailed
	}
	log.InfoContext(ctx, "script generated", "attempts", result.Attempts, "chars", len(result.Content))
	return outcomeGenerated
}

// unitEvent is the journal payload for one completed unit.
type unitEvent struct {
	ModelID   string        `json:"model_id"`
	PromptID  string        `json:"prompt_id"`
	Status    domain.Status `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Attempts  int           `json:"attempts"`
	LatencyMs int64         `json:"latency_ms"`
}

// String renders the report on one line for CLI output.
func (r Report) String() string {
	return fmt.Sprintf("generated=%d skipped=%d failed=%d errored=%d not_started=%d total=%d",
		r.Generated, r.Skipped, r.Failed, r.Errored, r.NotStarted, r.Total)
}
