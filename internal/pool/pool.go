// Package pool runs independent work units with bounded parallelism.
package pool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the number of concurrent units when none is configured.
const DefaultLimit = 4

// Summary reports how many units ran.
type Summary struct {
	Started int
	// NotStarted counts units never started because ctx was cancelled.
	NotStarted int
}

// Run calls fn once per unit with at most limit calls in flight.
//
// Once ctx is cancelled no further unit starts. Units already running get a
// context detached from ctx's cancellation, so an in-flight model call and
// its persistence finish normally. fn must handle its own errors.
func Run[T any](ctx context.Context, limit int, units []T, fn func(context.Context, T)) Summary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(limit)

	var started atomic.Int64
	for _, unit := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may have blocked on the limit past cancellation.
			if ctx.Err() != nil {
				return nil
			}
			started.Add(1)
			fn(detached, unit)
			return nil
		})
	}
	_ = g.Wait()

	n := int(started.Load())
	return Summary{Started: n, NotStarted: len(units) - n}
}
