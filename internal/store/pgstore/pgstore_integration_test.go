//go:build integration
// +build integration

package pgstore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/pgstore"
	"github.com/ahrav/go-scriptbench/internal/store/storetest"
)

type envSecrets map[string]string

func (e envSecrets) Lookup(ref string) (string, bool) {
	v, ok := e[ref]
	return v, ok
}

// setupPostgres starts a postgres container and returns its connection string.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17.5",
		postgres.WithDatabase("scriptbench"),
		postgres.WithUsername("bench"),
		postgres.WithPassword("bench"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestBackend_Conformance(t *testing.T) {
	connStr := setupPostgres(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// One table per subtest keeps them isolated in one database.
	storetest.Run(t, func(t *testing.T) store.Backend {
		table := "units_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		b, err := pgstore.New(ctx, pool, table)
		require.NoError(t, err)
		return b
	})
}

func TestOpen_ResolvesDSNAndMigrates(t *testing.T) {
	connStr := setupPostgres(t)
	ctx := context.Background()
	cfg := store.PostgresConfig{DSNRef: "DATABASE_URL", Table: "work_units"}

	b, err := pgstore.Open(ctx, cfg, envSecrets{"DATABASE_URL": connStr})
	require.NoError(t, err)
	key := domain.GenerationKey("m1", "p1")
	require.NoError(t, b.Publish(ctx, key, []byte(`{"status":"ok"}`)))
	require.NoError(t, b.Close())

	// Reopening runs the idempotent migration against the existing table.
	b, err = pgstore.Open(ctx, cfg, envSecrets{"DATABASE_URL": connStr})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	ok, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_MissingDSN(t *testing.T) {
	_, err := pgstore.Open(context.Background(), store.PostgresConfig{DSNRef: "DATABASE_URL"}, envSecrets{})
	require.ErrorIs(t, err, domain.ErrConfig)
}
