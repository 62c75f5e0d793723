package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ahrav/go-scriptbench/internal/config"
	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/llm"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/backends"
	"github.com/ahrav/go-scriptbench/pkg/events"
)

// Env is everything a stage command needs, built once per invocation.
type Env struct {
	RunID       string
	Pipeline    *config.Pipeline
	Credentials *config.Credentials
	Logger      *slog.Logger
	Backend     store.Backend
	Cache       *store.ExistsCache
	Events      *events.Emitter

	closers []io.Closer
}

// Setup loads configuration in order: pipeline file, flag overrides, env
// file preload, logger, store backend and the optional event journal.
func Setup(ctx context.Context, flags Flags, logOut io.Writer) (*Env, error) {
	cfg, err := config.LoadPipeline(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger, err := NewLogger(logOut, cfg.Log)
	if err != nil {
		return nil, err
	}
	logger = logger.With("run_id", runID)
	slog.SetDefault(logger)

	creds, err := config.LoadCredentials(flags.EnvFile, logger)
	if err != nil {
		return nil, domain.NewConfigError(flags.EnvFile, "", err)
	}

	env := &Env{RunID: runID, Pipeline: cfg, Credentials: creds, Logger: logger}

	cache, err := backends.ExistsCache(cfg.Store)
	if err != nil {
		return nil, err
	}
	env.Cache = cache

	backend, err := backends.Open(ctx, cfg.Store, creds)
	if err != nil {
		return nil, err
	}
	env.Backend = backend
	env.closers = append(env.closers, backend)

	var sink events.EventSink = events.NewNoOpEventSink()
	if path := cfg.Paths.Events; path != "" {
		jsonl, err := events.OpenJSONLFile(path)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open event journal: %w", err)
		}
		env.closers = append(env.closers, jsonl)
		sink = jsonl
	}
	env.Events = events.NewEmitter(sink, "scriptbench", runID, logger)

	logger.Debug("pipeline configured",
		"store", cfg.Store.Backend,
		"concurrency", cfg.Concurrency,
		"max_attempts", cfg.LLM.Retry.MaxAttempts)
	return env, nil
}

// applyFlags overlays non-zero flags onto cfg and revalidates.
func applyFlags(cfg *config.Pipeline, f Flags) error {
	if f.Concurrency < 0 {
		return domain.NewConfigError("flags", "concurrency", errors.New("must be >= 0"))
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.MaxAttempts != 0 {
		cfg.LLM.Retry.MaxAttempts = f.MaxAttempts
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
	if f.EventsFile != "" {
		cfg.Paths.Events = f.EventsFile
	}
	if err := cfg.Validate(); err != nil {
		return domain.NewConfigError("flags", "", err)
	}
	return nil
}

// NewLogger builds a text or JSON slog logger at the configured level.
func NewLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, domain.NewConfigError("log", "level", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, domain.NewConfigError("log", "format", fmt.Errorf("unknown format %q", cfg.Format))
	}
}

// Querier builds the model querier from the pipeline's LLM settings.
func (e *Env) Querier(ctx context.Context) (*llm.Querier, error) {
	return llm.NewQuerier(ctx, llm.Options{
		Config:      &e.Pipeline.LLM,
		Credentials: e.Credentials,
		Logger:      e.Logger,
	})
}

// Generations is the generation artifact store.
func (e *Env) Generations() *store.Store[domain.GenerationResult] {
	return store.New[domain.GenerationResult](e.Backend, store.WithExistsCache(e.Cache), store.WithLogger(e.Logger))
}

// Ratings is the rating artifact store.
func (e *Env) Ratings() *store.Store[domain.RatingResult] {
	return store.New[domain.RatingResult](e.Backend, store.WithExistsCache(e.Cache), store.WithLogger(e.Logger))
}

// Close releases the store and the event journal.
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.Logger.Warn("close failed", "error", err)
		}
	}
	e.closers = nil
}
