// Package fsstore stores artifacts as JSON files under a root directory.
// Each key maps to <root>/<kind>/<part>/.../<last part>.json.
//
// Publishing writes a uniquely named temp file in the destination directory,
// syncs it and hard-links it into place. link(2) fails when the target
// exists, which gives create-once semantics without locks.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

const (
	ext       = ".json"
	tmpPrefix = ".tmp-"
)

// Backend is a filesystem store. It is safe for concurrent use and for use
// by several processes sharing root.
type Backend struct {
	root string
}

var _ store.Backend = (*Backend)(nil)

// New returns a backend rooted at root, creating the directory if needed.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Backend{root: root}, nil
}

// Root returns the artifact directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) path(key domain.UnitKey) string {
	segs := key.Segments()
	segs[len(segs)-1] += ext
	return filepath.Join(append([]string{b.root}, segs...)...)
}

func (b *Backend) Exists(_ context.Context, key domain.UnitKey) (bool, error) {
	_, err := os.Stat(b.path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) Get(_ context.Context, key domain.UnitKey) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (b *Backend) Publish(_ context.Context, key domain.UnitKey, data []byte) error {
	final := b.path(key)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, tmpPrefix+uuid.NewString())
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, final); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("publish %s: %w", final, err)
	}
	return nil
}

func writeSynced(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// List walks <root>/<kind>. Temp files and names that do not parse as keys
// of kind are ignored.
func (b *Backend) List(_ context.Context, kind domain.UnitKind) ([]domain.UnitKey, error) {
	base := filepath.Join(b.root, string(kind))
	var keys []domain.UnitKey
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				return fs.SkipAll
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, ext) {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		key, err := domain.ParseUnitKey(strings.TrimSuffix(filepath.ToSlash(rel), ext))
		if err != nil || key.Kind != kind {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (b *Backend) Close() error { return nil }
