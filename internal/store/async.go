package store

import (
	"context"

	"saldo/internal/core"
)

// Future is the single-shot result of an asynchronous persistence call.
// It completes exactly once; Await may be called any number of times.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in its own goroutine and returns a Future for its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the result is ready or ctx ends. Abandoning the wait
// does not cancel the underlying call; cancel the context passed to Go for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// LoadAsync issues a load without blocking the caller.
func LoadAsync(ctx context.Context, l Loader, userID string) *Future[core.Ledger] {
	return Go(ctx, func(ctx context.Context) (core.Ledger, error) {
		return l.Load(ctx, userID)
	})
}

// SaveAsync issues a save without blocking the caller.
func SaveAsync(ctx context.Context, s Saver, userID string, ledger core.Ledger) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Save(ctx, userID, ledger)
	})
}
