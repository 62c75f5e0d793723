// Package storetest holds the behavioral checks every store.Backend must
// pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

// Factory returns an empty backend. It is called once per subtest.
type Factory func(t *testing.T) store.Backend

// Run exercises publish-once, lookup and listing against backends built by
// newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("missing key", func(t *testing.T) {
		b := newBackend(t)
		key := domain.GenerationKey("m1", "p1")

		ok, err := b.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = b.Get(context.Background(), key)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("publish once", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		key := domain.RatingKey("r1", "m1", "p1")

		require.NoError(t, b.Publish(ctx, key, []byte(`{"n":1}`)))
		require.ErrorIs(t, b.Publish(ctx, key, []byte(`{"n":2}`)), store.ErrAlreadyExists)

		ok, err := b.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		data, err := b.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(data))
	})

	t.Run("concurrent publishers", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		key := domain.GenerationKey("m1", "p1")

		const writers = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := b.Publish(ctx, key, []byte(fmt.Sprintf(`{"writer":%d}`, i)))
				if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
					t.Errorf("publish: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins, "exactly one publisher must win")
		data, err := b.Get(ctx, key)
		require.NoError(t, err)
		assert.Regexp(t, `^\{"writer": ?\d+\}$`, string(data))
	})

	t.Run("list by kind", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		gens := []domain.UnitKey{
			domain.GenerationKey("m1", "p1"),
			domain.GenerationKey("m2", "p1"),
			domain.GenerationKey("model with spaces", "p?1"),
		}
		for _, k := range gens {
			require.NoError(t, b.Publish(ctx, k, []byte(`{}`)))
		}
		require.NoError(t, b.Publish(ctx, domain.RatingKey("r1", "m1", "p1"), []byte(`{}`)))

		got, err := b.List(ctx, domain.KindGeneration)
		require.NoError(t, err)
		assert.Equal(t, Strings(gens), Strings(got))
	})
}

// Strings renders keys sorted, for order-insensitive comparison.
func Strings(keys []domain.UnitKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}
