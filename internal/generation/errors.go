package generation

import (
	"fmt"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

var (
	// ErrNoPrompts is returned when the prompt set is empty.
	ErrNoPrompts = fmt.Errorf("%w: no prompts", domain.ErrNoInputs)

	// ErrNoModels is returned when the model set is empty.
	ErrNoModels = fmt.Errorf("%w: no models", domain.ErrNoInputs)
)
