package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saldo/internal/core"
)

// Timeout bounds every call to the wrapped store. The wait is enforced here
// rather than trusted to the backend, so a backend that ignores its context
// still yields ErrTimeout once the limit passes.
type Timeout struct {
	next    Store
	limit   time.Duration
	backend string
}

// WithTimeout wraps s so each Load and Save gives up after limit.
// A non-positive limit returns s unchanged.
func WithTimeout(s Store, backend string, limit time.Duration) Store {
	if limit <= 0 {
		return s
	}
	return &Timeout{next: s, limit: limit, backend: backend}
}

func (t *Timeout) Load(ctx context.Context, userID string) (core.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()
	l, err := LoadAsync(ctx, t.next, userID).Await(ctx)
	return l, t.mapErr(ctx, OpLoad, userID, err)
}

func (t *Timeout) Save(ctx context.Context, userID string, l core.Ledger) error {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()
	_, err := SaveAsync(ctx, t.next, userID, l).Await(ctx)
	return t.mapErr(ctx, OpSave, userID, err)
}

func (t *Timeout) mapErr(ctx context.Context, op, userID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &PersistenceError{
			Op:      op,
			Backend: t.backend,
			UserID:  userID,
			Err:     fmt.Errorf("%w after %s", ErrTimeout, t.limit),
		}
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(op, t.backend, userID, err)
	}
	return err
}
