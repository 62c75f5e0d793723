// Package store persists work-unit artifacts. A Backend maps unit keys to
// opaque bytes with publish-once semantics; Store[T] layers JSON encoding,
// validation and an optional exists-cache on top.
//
// Artifacts are append-only. Once a key is published its bytes never change,
// so a positive Exists answer can be cached for the life of the process.
package store

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/ahrav/go-scriptbench/internal/store Backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

var (
	// ErrNotFound is returned by Get and Load when no artifact exists.
	ErrNotFound = errors.New("artifact not found")

	// ErrAlreadyExists is returned to the losing publisher of a key.
	// Callers treat it as a skip.
	ErrAlreadyExists = errors.New("artifact already exists")
)

// Backend is the persistence contract every storage variant implements.
//
// Publish must be atomic: readers observe either no artifact or the complete
// bytes, and concurrent publishers of one key leave exactly one intact
// artifact while the others receive ErrAlreadyExists.
type Backend interface {
	Exists(ctx context.Context, key domain.UnitKey) (bool, error)
	Get(ctx context.Context, key domain.UnitKey) ([]byte, error)
	Publish(ctx context.Context, key domain.UnitKey, data []byte) error

	// List returns every published key of kind, in no particular order.
	List(ctx context.Context, kind domain.UnitKind) ([]domain.UnitKey, error)

	Close() error
}

// validatable is implemented by every persisted result type.
type validatable interface {
	Validate() error
}

// Store is a typed view over a Backend for one artifact type.
type Store[T validatable] struct {
	backend Backend
	exists  *ExistsCache
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	exists *ExistsCache
	logger *slog.Logger
}

// WithExistsCache memoizes positive Exists answers in c. A cache may be
// shared by several stores over the same backend.
func WithExistsCache(c *ExistsCache) Option {
	return func(o *options) { o.exists = c }
}

// WithLogger sets the logger used for publish diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns a Store over backend.
func New[T validatable](backend Backend, opts ...Option) *Store[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{
		backend: backend,
		exists:  o.exists,
		logger:  o.logger.With("component", "store"),
	}
}

// Exists reports whether an artifact is published under key.
func (s *Store[T]) Exists(ctx context.Context, key domain.UnitKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	name := key.String()
	if s.exists.Contains(name) {
		return true, nil
	}
	ok, err := s.backend.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", name, err)
	}
	if ok {
		s.exists.Add(name)
	}
	return ok, nil
}

// Load reads and decodes the artifact under key. A missing artifact is
// ErrNotFound.
func (s *Store[T]) Load(ctx context.Context, key domain.UnitKey) (T, error) {
	var v T
	if err := key.Validate(); err != nil {
		return v, err
	}
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return v, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Save validates, encodes and publishes v under key. When another publisher
// got there first the result is ErrAlreadyExists and the stored artifact is
// left untouched.
func (s *Store[T]) Save(ctx context.Context, key domain.UnitKey, v T) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	err = s.backend.Publish(ctx, key, data)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		s.exists.Add(key.String())
		s.logger.DebugContext(ctx, "artifact already published", "key", key.String())
		return err
	case err != nil:
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.exists.Add(key.String())
	return nil
}

// List returns the keys of every published artifact of kind.
func (s *Store[T]) List(ctx context.Context, kind domain.UnitKind) ([]domain.UnitKey, error) {
	keys, err := s.backend.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return keys, nil
}

// LoadAll loads every artifact of kind. Artifacts that fail to load are
// logged and skipped; the error is reserved for a failed listing.
func (s *Store[T]) LoadAll(ctx context.Context, kind domain.UnitKind) ([]T, error) {
	keys, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		v, err := s.Load(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable artifact", "key", key.String(), "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
