package store

import (
	"context"

	"saldo/internal/core"
)

// Ports for persistence adapters.
type (
	// Loader reads the ledger saved for a user. Structured backends return an
	// error matching ErrNotFound when nothing was ever saved.
	Loader interface {
		Load(ctx context.Context, userID string) (core.Ledger, error)
	}

	// Saver overwrites the whole ledger document for a user.
	Saver interface {
		Save(ctx context.Context, userID string, l core.Ledger) error
	}

	Store interface {
		Loader
		Saver
	}

	// Invalidator is implemented by stores that keep a local copy and can
	// drop it so the next load reads the backend again.
	Invalidator interface {
		Invalidate(userID string)
	}
)

// LoadOrEmpty loads the ledger for userID and maps a missing document to an
// empty ledger, which is how every session starts.
func LoadOrEmpty(ctx context.Context, l Loader, userID string) (core.Ledger, error) {
	ledger, err := l.Load(ctx, userID)
	if IsNotFound(err) {
		return core.NewLedger(), nil
	}
	if err != nil {
		return core.Ledger{}, err
	}
	return ledger, nil
}
