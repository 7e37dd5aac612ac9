package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	backendName  = "postgres"
	DefaultTable = "ledgers"
)

// Store keeps each ledger as one JSONB document row.
type Store struct {
	db    *sql.DB
	table string
}

var _ store.Store = (*Store)(nil)

// Open connects to url, verifies the connection and creates the ledger table
// if needed.
func Open(ctx context.Context, url, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", describe(err))
	}
	s := &Store{db: db, table: table}
	if err := s.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, describe(err))
	}
	slog.InfoContext(ctx, "Ledger table ready", "component", "storage", "backend", backendName, "table", s.table)
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    user_id    VARCHAR(255) PRIMARY KEY,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, pq.QuoteIdentifier(table))
}

func selectSQL(table string) string {
	return fmt.Sprintf(`SELECT doc FROM %s WHERE user_id = $1`, pq.QuoteIdentifier(table))
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (user_id, doc, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`, pq.QuoteIdentifier(table))
}

func (s *Store) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrEmptyUser)
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx, selectSQL(s.table), userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrNotFound)
	}
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, describe(err))
	}
	l, err := store.UnmarshalLedger(doc)
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	return l, nil
}

func (s *Store) Save(ctx context.Context, userID string, l core.Ledger) error {
	if strings.TrimSpace(userID) == "" {
		return store.Wrap(store.OpSave, backendName, userID, store.ErrEmptyUser)
	}
	doc, err := store.MarshalLedger(l)
	if err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL(s.table), userID, string(doc)); err != nil {
		return store.Wrap(store.OpSave, backendName, userID, describe(err))
	}
	slog.InfoContext(ctx, "Ledger saved to Postgres",
		"component", "storage",
		"user_id", userID,
		"expense_count", l.Len())
	return nil
}

// describe keeps the server's message and adds the SQLSTATE class name so
// logs say what kind of failure happened.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Class().Name(), pqErr.Code, err)
	}
	return err
}
