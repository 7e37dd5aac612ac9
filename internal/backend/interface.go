package backend

import (
	"context"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendResult contains the ready-to-use store and its resources.
type BackendResult struct {
	// Store is the backend wrapped with the bounded timeout and, when
	// enabled, the ledger cache.
	Store store.Store
	// Direct is the backend with the bounded timeout but no cache.
	Direct store.Store
	// Raw is the unwrapped backend.
	Raw   store.Store
	Type  BackendType
	Cache *cache.LRUCache[core.Ledger]

	Cleanup CleanupFunc
}

// Ping checks the backend when it supports it and succeeds otherwise.
func (r *BackendResult) Ping(ctx context.Context) error {
	if p, ok := r.Raw.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close runs the cleanup function if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	S3Backend       BackendType = "s3"
	SheetsBackend   BackendType = "sheets"
	PrefsBackend    BackendType = "prefs"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, S3Backend, SheetsBackend, PrefsBackend:
		return true
	default:
		return false
	}
}

// Lossy reports whether the backend drops order and duplicate expenses.
func (bt BackendType) Lossy() bool {
	return bt == PrefsBackend
}
