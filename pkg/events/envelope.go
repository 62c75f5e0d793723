// Package events provides the run journal: every stage emits one Envelope
// per completed work unit and one when the stage finishes. Envelopes go to
// an EventSink; a JSON-lines file sink and a no-op sink are provided.
//
// Events are observability only. A failing sink never fails a unit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the envelope schema version.
const Version = "1.0.0"

// Event types.
const (
	TypeScriptGenerated = "generation.unit_completed"
	TypeScriptRated     = "rating.unit_completed"
	TypeLeaderboard     = "leaderboard.published"
	TypeStageCompleted  = "stage.completed"
)

// Envelope wraps one event payload with routing and correlation metadata.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event, one of the Type constants.
	Type string `json:"type"`

	// Source is the emitting stage, e.g. "scriptgen".
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// RunID correlates every event of one stage invocation.
	RunID string `json:"run_id"`

	// Key is the work-unit key the event describes, when there is one.
	Key string `json:"key,omitempty"`

	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope encodes payload into a fresh envelope.
func NewEnvelope(typ, source, runID, key string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Source:    source,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Key:       key,
		Payload:   raw,
	}, nil
}

// EventSink receives envelopes. Implementations must be safe for
// concurrent use and return quickly.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (NoOpEventSink) Append(context.Context, Envelope) error { return nil }

// NewNoOpEventSink returns a sink that discards events.
func NewNoOpEventSink() EventSink { return NoOpEventSink{} }
