// Package redisstore stores artifacts as redis string values. Publishing is
// a single SETNX, so the first writer wins and later writers observe a
// false reply.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

// scanCount is the COUNT hint passed to SCAN while listing.
const scanCount = 256

// Backend is a redis store. Keys are prefix + UnitKey.String().
type Backend struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing client. The caller keeps ownership of client.
func New(client redis.UniversalClient, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

// Open dials cfg.Addr and verifies the connection with PING.
func Open(ctx context.Context, cfg store.RedisConfig, secrets store.Secrets) (*Backend, error) {
	var password string
	if cfg.PasswordRef != "" && secrets != nil {
		password, _ = secrets.Lookup(cfg.PasswordRef)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Backend{client: client, prefix: cfg.Prefix, owned: true}, nil
}

func (b *Backend) name(key domain.UnitKey) string { return b.prefix + key.String() }

func (b *Backend) Exists(ctx context.Context, key domain.UnitKey) (bool, error) {
	n, err := b.client.Exists(ctx, b.name(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *Backend) Get(ctx context.Context, key domain.UnitKey) ([]byte, error) {
	data, err := b.client.Get(ctx, b.name(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (b *Backend) Publish(ctx context.Context, key domain.UnitKey, data []byte) error {
	ok, err := b.client.SetNX(ctx, b.name(key), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

func (b *Backend) List(ctx context.Context, kind domain.UnitKind) ([]domain.UnitKey, error) {
	match := b.prefix + string(kind) + "/*"
	var keys []domain.UnitKey
	iter := b.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		key, err := domain.ParseUnitKey(strings.TrimPrefix(iter.Val(), b.prefix))
		if err != nil || key.Kind != kind {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", match, err)
	}
	return keys, nil
}

// Close closes the client when Open created it.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}
