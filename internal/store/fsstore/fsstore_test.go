package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
	"github.com/ahrav/go-scriptbench/internal/store/storetest"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(filepath.Join(t.TempDir(), "output"))
	require.NoError(t, err)
	return b
}

func TestBackend_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend { return newBackend(t) })
}

func TestBackend_PublishAndGet(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	key := domain.GenerationKey("gpt-4o", "hamlet")

	ok, err := b.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Get(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, b.Publish(ctx, key, []byte(`{"v":1}`)))

	ok, err = b.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(data))

	assert.FileExists(t, filepath.Join(b.Root(), "generation", "gpt-4o", "hamlet.json"))
}

func TestBackend_PublishIsCreateOnce(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	key := domain.RatingKey("judge", "m1", "p1")

	require.NoError(t, b.Publish(ctx, key, []byte(`"first"`)))
	err := b.Publish(ctx, key, []byte(`"second"`))
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	data, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `"first"`, string(data))
}

func TestBackend_ConcurrentPublishersLeaveOneArtifact(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	key := domain.GenerationKey("m1", "p1")

	const writers = 32
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Publish(ctx, key, []byte(fmt.Sprintf(`{"writer":%d,"pad":"%s"}`, i, strings.Repeat("x", 4096))))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrAlreadyExists):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, losses)

	data, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), `"}`), "artifact must be complete")

	entries, err := os.ReadDir(filepath.Join(b.Root(), "generation", "m1"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be cleaned up")
	assert.Equal(t, "p1.json", entries[0].Name())
}

func TestBackend_ListByKind(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	gens := []domain.UnitKey{
		domain.GenerationKey("m1", "p1"),
		domain.GenerationKey("m1", "p2"),
		domain.GenerationKey("m 2", "p%1"),
	}
	for _, k := range gens {
		require.NoError(t, b.Publish(ctx, k, []byte(`{}`)))
	}
	require.NoError(t, b.Publish(ctx, domain.RatingKey("r1", "m1", "p1"), []byte(`{}`)))

	// Stray files are ignored.
	stray := filepath.Join(b.Root(), "generation", "m1")
	require.NoError(t, os.WriteFile(filepath.Join(stray, ".tmp-abandoned"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stray, "notes.txt"), []byte("x"), 0o644))

	got, err := b.List(ctx, domain.KindGeneration)
	require.NoError(t, err)
	assert.Equal(t, storetest.Strings(gens), storetest.Strings(got))

	ratings, err := b.List(ctx, domain.KindRating)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, []string{"r1", "m1", "p1"}, ratings[0].Parts)
}

func TestBackend_ListEmpty(t *testing.T) {
	b := newBackend(t)
	keys, err := b.List(context.Background(), domain.KindRating)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
