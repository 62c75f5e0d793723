package domain

import "time"

// Status is the terminal state recorded for a work unit.
type Status string

const (
	// StatusOK marks a unit whose model call succeeded (and, for ratings,
	// whose score parsed).
	StatusOK Status = "ok"

	// StatusFailed marks a unit whose model call failed after retries.
	StatusFailed Status = "failed"

	// StatusUnparsable marks a rating whose response had no extractable score.
	StatusUnparsable Status = "unparsable"
)

// GenerationResult is the persisted outcome of one (model, prompt) unit.
type GenerationResult struct {
	ModelID   string    `json:"model_id" validate:"required,unitid"`
	PromptID  string    `json:"prompt_id" validate:"required,unitid"`
	Content   string    `json:"content"`
	Status    Status    `json:"status" validate:"required,oneof=ok failed"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Attempts  int       `json:"attempts,omitempty" validate:"min=0"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the result against its field constraints.
func (g GenerationResult) Validate() error { return validate.Struct(g) }

// Key returns the work-unit key the result is stored under.
func (g GenerationResult) Key() UnitKey { return GenerationKey(g.ModelID, g.PromptID) }

// OK reports whether the generation produced usable content.
func (g GenerationResult) OK() bool { return g.Status == StatusOK }

// RatingResult is the persisted outcome of one (rater, model, prompt) unit.
// Score is nil unless Status is StatusOK.
type RatingResult struct {
	RaterID     string    `json:"rater_id" validate:"required,unitid"`
	ModelID     string    `json:"model_id" validate:"required,unitid"`
	PromptID    string    `json:"prompt_id" validate:"required,unitid"`
	Score       *float64  `json:"score"`
	ScoreMethod string    `json:"score_method,omitempty"`
	RawResponse string    `json:"raw_response"`
	Status      Status    `json:"status" validate:"required,oneof=ok failed unparsable"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the result against its field constraints.
func (r RatingResult) Validate() error { return validate.Struct(r) }

// Key returns the work-unit key the result is stored under.
func (r RatingResult) Key() UnitKey { return RatingKey(r.RaterID, r.ModelID, r.PromptID) }

// Usable reports whether the rating contributes to aggregation.
func (r RatingResult) Usable() bool { return r.Status == StatusOK && r.Score != nil }
