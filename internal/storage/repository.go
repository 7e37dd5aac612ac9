package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/store"

	_ "modernc.org/sqlite"
)

const backendName = "sqlite"

// SQLiteRepository keeps ledgers in a local SQLite file. Expenses are stored
// one row per entry with an explicit position, so order and duplicates
// survive a round trip.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrEmptyUser)
	}

	var incomeText string
	err := r.db.QueryRowContext(ctx, `SELECT income FROM ledgers WHERE user_id = ?`, userID).Scan(&incomeText)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrNotFound)
	}
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("select ledger: %w", err))
	}
	income, err := decimal.NewFromString(incomeText)
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("%w: income %q", store.ErrBadPayload, incomeText))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, amount FROM expenses WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("select expenses: %w", err))
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var name, amountText string
		if err := rows.Scan(&name, &amountText); err != nil {
			return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("scan expense: %w", err))
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("%w: amount %q", store.ErrBadPayload, amountText))
		}
		expenses = append(expenses, core.Expense{Name: name, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("iterate expenses: %w", err))
	}

	l, err := core.Restore(income, expenses)
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("%w: %v", store.ErrBadPayload, err))
	}

	slog.DebugContext(ctx, "Ledger loaded from SQLite",
		"component", "storage",
		"user_id", userID,
		"expense_count", l.Len())
	return l, nil
}

// Save replaces the user's ledger in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, l core.Ledger) error {
	if strings.TrimSpace(userID) == "" {
		return store.Wrap(store.OpSave, backendName, userID, store.ErrEmptyUser)
	}
	if err := r.replace(ctx, userID, l); err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}

	slog.InfoContext(ctx, "Ledger saved to SQLite",
		"component", "storage",
		"user_id", userID,
		"income", l.Income().String(),
		"expense_count", l.Len())
	return nil
}

func (r *SQLiteRepository) replace(ctx context.Context, userID string, l core.Ledger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledgers (user_id, income, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET income = excluded.income, updated_at = excluded.updated_at`,
		userID, l.Income().String()); err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO expenses (user_id, position, name, amount) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range l.Expenses() {
		if _, err := stmt.ExecContext(ctx, userID, i, e.Name, e.Amount.String()); err != nil {
			return fmt.Errorf("insert expense %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
