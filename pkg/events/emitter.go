package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	emitAttempts   = 2
	emitRetryDelay = 200 * time.Millisecond
)

// Emitter stamps envelopes with a source and run id and delivers them
// best-effort. A nil *Emitter drops everything.
type Emitter struct {
	sink   EventSink
	source string
	runID  string
	logger *slog.Logger
}

// NewEmitter returns an emitter for one stage run. A nil sink disables
// emission.
func NewEmitter(sink EventSink, source, runID string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		sink:   sink,
		source: source,
		runID:  runID,
		logger: logger.With("component", "events"),
	}
}

// Emit encodes payload and appends it, retrying once after a short delay.
// Failures are logged and never returned.
func (e *Emitter) Emit(ctx context.Context, typ, key string, payload any) {
	if e == nil || e.sink == nil {
		return
	}
	env, err := NewEnvelope(typ, e.source, e.runID, key, payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to encode event", "event_type", typ, "error", err)
		return
	}

	var lastErr error
	for attempt := range emitAttempts {
		if attempt > 0 {
			select {
			case <-time.After(emitRetryDelay):
			case <-ctx.Done():
				e.logger.WarnContext(ctx, "event emission cancelled", "event_type", typ)
				return
			}
		}
		if lastErr = e.sink.Append(ctx, env); lastErr == nil {
			return
		}
	}
	e.logger.ErrorContext(ctx, "failed to emit event",
		"event_type", typ, "attempts", emitAttempts, "error", lastErr)
}
