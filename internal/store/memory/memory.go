package memory

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"saldo/internal/core"
	"saldo/internal/store"
)

const backendName = "memory"

// Store keeps ledgers in process memory. It honours the full remote contract:
// order and duplicates survive, and unknown users report ErrNotFound.
type Store struct {
	mu      sync.Mutex
	ledgers map[string]core.Ledger
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{ledgers: map[string]core.Ledger{}}
}

// NewFromDir seeds the store from <base>/<userID>.json documents. Missing or
// unreadable files are skipped so a fresh checkout starts empty.
func NewFromDir(base string) *Store {
	s := New()
	paths, err := filepath.Glob(filepath.Join(base, "*.json"))
	if err != nil {
		return s
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		l, err := store.UnmarshalLedger(data)
		if err != nil {
			slog.Warn("Skipping invalid seed ledger", "component", "storage", "path", p, "error", err)
			continue
		}
		s.ledgers[strings.TrimSuffix(filepath.Base(p), ".json")] = l
	}
	return s
}

// Load returns the stored ledger for userID.
func (s *Store) Load(_ context.Context, userID string) (core.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrEmptyUser)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[userID]
	if !ok {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrNotFound)
	}
	return l, nil
}

// Save replaces the stored ledger for userID.
func (s *Store) Save(_ context.Context, userID string, l core.Ledger) error {
	if strings.TrimSpace(userID) == "" {
		return store.Wrap(store.OpSave, backendName, userID, store.ErrEmptyUser)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[userID] = l
	return nil
}

// Users lists ids with a saved ledger.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		out = append(out, id)
	}
	return out
}
