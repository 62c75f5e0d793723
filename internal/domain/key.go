package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// UnitKind namespaces work-unit keys by stage.
type UnitKind string

const (
	// KindGeneration keys are (model_id, prompt_id).
	KindGeneration UnitKind = "generation"

	// KindRating keys are (rater_id, model_id, prompt_id).
	KindRating UnitKind = "rating"
)

// partsFor returns how many id segments a key of kind carries.
func partsFor(kind UnitKind) int {
	switch kind {
	case KindGeneration:
		return 2
	case KindRating:
		return 3
	default:
		return 0
	}
}

// UnitKey is the stable, collision-free identity of one work unit.
// Each part is path-escaped in the string form, so distinct part tuples
// always produce distinct strings.
type UnitKey struct {
	Kind  UnitKind
	Parts []string
}

// GenerationKey is the key for the script produced by modelID for promptID.
func GenerationKey(modelID, promptID string) UnitKey {
	return UnitKey{Kind: KindGeneration, Parts: []string{modelID, promptID}}
}

// RatingKey is the key for raterID's score of modelID's script for promptID.
func RatingKey(raterID, modelID, promptID string) UnitKey {
	return UnitKey{Kind: KindRating, Parts: []string{raterID, modelID, promptID}}
}

// Segments returns the kind followed by each escaped part. Backends that
// map keys onto hierarchical names (paths, object keys) join these.
func (k UnitKey) Segments() []string {
	segs := make([]string, 0, len(k.Parts)+1)
	segs = append(segs, string(k.Kind))
	for _, p := range k.Parts {
		segs = append(segs, url.PathEscape(p))
	}
	return segs
}

// String renders the key as "<kind>/<part>/<part>...".
func (k UnitKey) String() string { return strings.Join(k.Segments(), "/") }

// Validate checks the kind, the part count and each part.
func (k UnitKey) Validate() error {
	want := partsFor(k.Kind)
	if want == 0 {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidKey, k.Kind)
	}
	if len(k.Parts) != want {
		return fmt.Errorf("%w: %s key needs %d parts, got %d", ErrInvalidKey, k.Kind, want, len(k.Parts))
	}
	for _, p := range k.Parts {
		if !ValidID(p) {
			return fmt.Errorf("%w: invalid id %q", ErrInvalidKey, p)
		}
	}
	return nil
}

// ParseUnitKey is the inverse of UnitKey.String.
func ParseUnitKey(s string) (UnitKey, error) {
	segs := strings.Split(s, "/")
	if len(segs) < 2 {
		return UnitKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	key := UnitKey{Kind: UnitKind(segs[0]), Parts: make([]string, 0, len(segs)-1)}
	for _, seg := range segs[1:] {
		part, err := url.PathUnescape(seg)
		if err != nil {
			return UnitKey{}, fmt.Errorf("%w: %q: %w", ErrInvalidKey, s, err)
		}
		key.Parts = append(key.Parts, part)
	}
	if err := key.Validate(); err != nil {
		return UnitKey{}, err
	}
	return key, nil
}
