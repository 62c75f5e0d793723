package domain

import (
	"errors"
	"fmt"
)

// ErrConfig indicates malformed or missing pipeline configuration.
// Stages abort before any work begins when they see it.
var ErrConfig = errors.New("invalid configuration")

// ErrNoInputs indicates that a stage found none of the inputs it requires,
// such as an empty prompt directory or no prior-stage artifacts.
var ErrNoInputs = errors.New("required inputs are absent")

// ErrInvalidKey indicates that a work-unit key could not be parsed.
var ErrInvalidKey = errors.New("invalid work unit key")

// ConfigError carries the location of a configuration problem.
// It matches ErrConfig with errors.Is.
type ConfigError struct {
	Source string // File or section the value came from.
	Field  string // Offending field, if known.
	Err    error
}

// NewConfigError builds a ConfigError for source and field.
func NewConfigError(source, field string, err error) *ConfigError {
	return &ConfigError{Source: source, Field: field, Err: err}
}

func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("config %s: %s: %v", e.Source, e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("config %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes every ConfigError match ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
