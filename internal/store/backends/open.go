// Package backends opens the store.Backend selected by a store.Config.
package backends

import (
	"context"
	"fmt"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/fsstore"
	"github.com/ahrav/go-scriptbench/internal/store/pgstore"
	"github.com/ahrav/go-scriptbench/internal/store/redisstore"
	"github.com/ahrav/go-scriptbench/internal/store/s3store"
)

// Open validates cfg and connects the selected backend.
func Open(ctx context.Context, cfg store.Config, secrets store.Secrets) (store.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		b   store.Backend
		err error
	)
	switch cfg.Backend {
	case store.BackendFS:
		b, err = fsstore.New(cfg.FS.Root)
	case store.BackendRedis:
		b, err = redisstore.Open(ctx, cfg.Redis, secrets)
	case store.BackendS3:
		b, err = s3store.Open(cfg.S3, secrets)
	case store.BackendPostgres:
		b, err = pgstore.Open(ctx, cfg.Postgres, secrets)
	default:
		return nil, domain.NewConfigError("store", "backend", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return b, nil
}

// ExistsCache builds the cache described by cfg, or nil when disabled.
func ExistsCache(cfg store.Config) (*store.ExistsCache, error) {
	if cfg.ExistsCacheSize < 0 {
		return nil, nil
	}
	return store.NewExistsCache(cfg.ExistsCacheSize)
}
