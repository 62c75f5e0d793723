// Package rating implements the autorater stage. Each (script, rater) pair
// is one work unit: the rater's template is rendered with the script text,
// sent to the rater's model, and the extracted score is persisted as a
// domain.RatingResult.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm"
	"github.com/ahrav/go-scriptbench/internal/pool"
	"github.com/ahrav/go-scriptbench/internal/scoring"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/pkg/events"
)

// ScriptPlaceholder is replaced by the script content in rater templates.
const ScriptPlaceholder = "{{script_text}}"

var (
	// ErrNoScripts is returned when there are no generation artifacts to rate.
	ErrNoScripts = fmt.Errorf("%w: no generated scripts", domain.ErrNoInputs)

	// ErrNoRaters is returned when the rater set is empty.
	ErrNoRaters = fmt.Errorf("%w: no raters", domain.ErrNoInputs)
)

// Querier sends one prompt to one model.
type Querier interface {
	Query(ctx context.Context, model domain.ModelConfig, prompt string, opts ...llm.QueryOption) llm.Outcome
}

// Render substitutes every placeholder in template with script.
func Render(template, script string) string {
	return strings.ReplaceAll(template, ScriptPlaceholder, script)
}

// Report counts unit outcomes for one run.
type Report struct {
	Rated      int `json:"rated"`
	Skipped    int `json:"skipped"`
	Unparsable int `json:"unparsable"`
	Failed     int `json:"failed"`
	Errored    int `json:"errored"`

	// Excluded pairs reference a script whose generation failed.
	Excluded int `json:"excluded"`

	NotStarted int `json:"not_started"`
	Total      int `json:"total"`
}

// String renders the report on one line for CLI output.
func (r Report) String() string {
	return fmt.Sprintf("rated=%d skipped=%d unparsable=%d failed=%d errored=%d excluded=%d not_started=%d total=%d",
		r.Rated, r.Skipped, r.Unparsable, r.Failed, r.Errored, r.Excluded, r.NotStarted, r.Total)
}

// Options wires a Stage.
type Options struct {
	Querier Querier
	Store   *store.Store[domain.RatingResult]

	// Models resolves RaterConfig.ModelRef.
	Models []domain.ModelConfig

	Concurrency int
	Events      *events.Emitter
	Logger      *slog.Logger
	Now         func() time.Time
}

// Stage runs auto-rating.
type Stage struct {
	querier     Querier
	store       *store.Store[domain.RatingResult]
	models      map[string]domain.ModelConfig
	concurrency int
	events      *events.Emitter
	logger      *slog.Logger
	now         func() time.Time
}

// NewStage validates opts and returns a Stage.
func NewStage(opts Options) (*Stage, error) {
	if opts.Querier == nil {
		return nil, errors.New("rating: querier is required")
	}
	if opts.Store == nil {
		return nil, errors.New("rating: store is required")
	}
	models := make(map[string]domain.ModelConfig, len(opts.Models))
	for _, m := range opts.Models {
		models[m.ID] = m
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
		models:      models,
		concurrency: opts.Concurrency,
		events:      opts.Events,
		logger:      logger.With("stage", "autorate"),
		now:         now,
	}, nil
}

type unit struct {
	script domain.GenerationResult
	rater  domain.RaterConfig
	model  domain.ModelConfig
}

type outcome int

const (
	outcomeRated outcome = iota
	outcomeSkipped
	outcomeUnparsable
	outcomeFailed
	outcomeErrored
)

// Run rates every ok script with every rater. A rater whose model_ref does
// not resolve is a configuration error and aborts the run before any work.
func (s *Stage) Run(ctx context.Context, scripts []domain.GenerationResult, raters []domain.RaterConfig) (Report, error) {
	if len(scripts) == 0 {
		return Report{}, ErrNoScripts
	}
	if len(raters) == 0 {
		return Report{}, ErrNoRaters
	}
	for _, r := range raters {
		if _, ok := s.models[r.ModelRef]; !ok {
			return Report{}, domain.NewConfigError("raters", r.ID+".model_ref",
				fmt.Errorf("unknown model %q", r.ModelRef))
		}
	}

	report := Report{Total: len(scripts) * len(raters)}
	units := make([]unit, 0, report.Total)
	for _, script := range scripts {
		if !script.OK() {
			report.Excluded += len(raters)
			s.logger.DebugContext(ctx, "excluding failed script",
				"model", script.ModelID, "prompt", script.PromptID)
			continue
		}
		for _, r := range raters {
			units = append(units, unit{script: script, rater: r, model: s.models[r.ModelRef]})
		}
	}

	s.logger.InfoContext(ctx, "rating started",
		"scripts", len(scripts), "raters", len(raters), "units", len(units), "excluded", report.Excluded)

	var mu sync.Mutex
	summary := pool.Run(ctx, s.concurrency, units, func(ctx context.Context, u unit) {
		o := s.process(ctx, u)
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeRated:
			report.Rated++
		case outcomeSkipped:
			report.Skipped++
		case outcomeUnparsable:
			report.Unparsable++
		case outcomeFailed:
			report.Failed++
		case outcomeErrored:
			report.Errored++
		}
	})
	report.NotStarted = summary.NotStarted

	if summary.NotStarted > 0 {
		s.logger.WarnContext(ctx, "rating interrupted", "not_started", summary.NotStarted)
	}
	s.logger.InfoContext(ctx, "rating finished",
		"rated", report.Rated,
		"skipped", report.Skipped,
		"unparsable", report.Unparsable,
		"failed", report.Failed,
		"errored", report.Errored,
		"excluded", report.Excluded,
		"total", report.Total)
	s.events.Emit(ctx, events.TypeStageCompleted, "", report)
	return report, nil
}

func (s *Stage) process(ctx context.Context, u unit) outcome {
	key := domain.RatingKey(u.rater.ID, u.script.ModelID, u.script.PromptID)
	log := s.logger.With("key", key.String(), "rater", u.rater.ID, "model", u.script.ModelID, "prompt", u.script.PromptID)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		log.ErrorContext(ctx, "exists check failed", "error", err)
		return outcomeErrored
	}
	if exists {
		log.DebugContext(ctx, "script already rated")
		return outcomeSkipped
	}

	out := s.querier.Query(ctx, u.model, Render(u.rater.PromptTemplate, u.script.Content))
	result := domain.RatingResult{
		RaterID:     u.rater.ID,
		ModelID:     u.script.ModelID,
		PromptID:    u.script.PromptID,
		RawResponse: out.Text,
		CreatedAt:   s.now().UTC(),
	}

	o := outcomeRated
	switch {
	case !out.OK():
		result.Status = domain.StatusFailed
		result.Error = out.Failure.Message
		result.ErrorKind = string(out.Failure.Kind)
		o = outcomeFailed
	default:
		if ex, ok := scoring.Extract(out.Text); ok {
			score := ex.Score
			result.Score = &score
			result.ScoreMethod = string(ex.Method)
			result.Status = domain.StatusOK
		} else {
			result.Status = domain.StatusUnparsable
			o = outcomeUnparsable
		}
	}

	if err := s.store.Save(ctx, key, result); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.DebugContext(ctx, "rating published concurrently; keeping existing artifact")
			return outcomeSkipped
		}
		log.ErrorContext(ctx, "failed to persist rating", "error", err)
		return outcomeErrored
	}

	s.events.Emit(ctx, events.TypeScriptRated, key.String(), unitEvent{
		RaterID:   result.RaterID,
		ModelID:   result.ModelID,
		PromptID:  result.PromptID,
		Status:    result.Status,
		Score:     result.Score,
		ErrorKind: result.ErrorKind,
	})

	switch o {
	case outcomeFailed:
		log.WarnContext(ctx, "rating failed",
			"error_kind", result.ErrorKind, "attempts", out.Attempts, "error", result.Error)
	case outcomeUnparsable:
		log.WarnContext(ctx, "rating response had no score", "response_chars", len(out.Text))
	default:
		log.InfoContext(ctx, "script rated", "score", *result.Score, "method", result.ScoreMethod)
	}
	return o
}

// unitEvent is the journal payload for one completed unit.
type unitEvent struct {
	RaterID   string        `json:"rater_id"`
	ModelID   string        `json:"model_id"`
	PromptID  string        `json:"prompt_id"`
	Status    domain.Status `json:"status"`
	Score     *float64      `json:"score"`
	ErrorKind string        `json:"error_kind,omitempty"`
}
