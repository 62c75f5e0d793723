// Package pgstore stores artifacts as rows in a postgres table keyed by the
// unit key string. Publishing relies on the primary key: INSERT ... ON
// CONFLICT DO NOTHING affects zero rows for every writer but the first.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

// Backend is a postgres store.
type Backend struct {
	pool  *pgxpool.Pool
	table string
	owned bool
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing pool and creates table if it is missing. The caller
// keeps ownership of pool.
func New(ctx context.Context, pool *pgxpool.Pool, table string) (*Backend, error) {
	b := &Backend{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Open connects with the DSN named by cfg.DSNRef.
func Open(ctx context.Context, cfg store.PostgresConfig, secrets store.Secrets) (*Backend, error) {
	var dsn string
	if secrets != nil {
		dsn, _ = secrets.Lookup(cfg.DSNRef)
	}
	if dsn == "" {
		return nil, domain.NewConfigError("store", "postgres.dsn_ref", fmt.Errorf("%s is not set", cfg.DSNRef))
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "work_units"
	}
	b, err := New(ctx, pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + b.table + ` (
			key        TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			body       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{indexName(b.table)}.Sanitize() + ` ON ` + b.table + ` (kind)`,
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", b.table, err)
		}
	}
	return nil
}

// indexName derives the kind index name from the sanitized table name.
func indexName(sanitized string) string {
	name := make([]rune, 0, len(sanitized)+5)
	for _, r := range sanitized {
		if r != '"' {
			name = append(name, r)
		}
	}
	return string(name) + "_kind"
}

func (b *Backend) Exists(ctx context.Context, key domain.UnitKey) (bool, error) {
	var ok bool
	err := b.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+b.table+` WHERE key = $1)`, key.String()).Scan(&ok)
	return ok, err
}

func (b *Backend) Get(ctx context.Context, key domain.UnitKey) ([]byte, error) {
	var body []byte
	err := b.pool.QueryRow(ctx, `SELECT body FROM `+b.table+` WHERE key = $1`, key.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return body, err
}

func (b *Backend) Publish(ctx context.Context, key domain.UnitKey, data []byte) error {
	tag, err := b.pool.Exec(ctx,
		`INSERT INTO `+b.table+` (key, kind, body) VALUES ($1, $2, $3) ON CONFLICT (key) DO NOTHING`,
		key.String(), string(key.Kind), data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (b *Backend) List(ctx context.Context, kind domain.UnitKind) ([]domain.UnitKey, error) {
	rows, err := b.pool.Query(ctx, `SELECT key FROM `+b.table+` WHERE kind = $1 ORDER BY key`, string(kind))
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	keys := make([]domain.UnitKey, 0, len(names))
	for _, name := range names {
		key, err := domain.ParseUnitKey(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Close closes the pool when Open created it.
func (b *Backend) Close() error {
	if b.owned {
		b.pool.Close()
	}
	return nil
}
