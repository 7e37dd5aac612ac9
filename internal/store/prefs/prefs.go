// Package prefs stores ledgers in a namespaced key-value YAML file using the
// legacy local encoding: income and total as plain values and the expense
// list as a set of "name: amount" strings.
//
// The set encoding is lossy. Ordering is not kept and two expenses with the
// same name and amount collapse into one. Use it only when files written by
// the legacy layout must be read or produced.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	backendName = "prefs"

	KeyIncome        = "income"
	KeyExpenses      = "expenses"
	KeyTotalExpenses = "totalExpenses"

	entrySeparator = ": "
)

// namespace holds the keys of one user.
type namespace struct {
	Income        string   `yaml:"income"`
	Expenses      []string `yaml:"expenses,flow"`
	TotalExpenses string   `yaml:"totalExpenses"`
}

// Store is a file backed key-value store with one namespace per user.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

// EncodeExpense renders an expense the way the legacy layout stores it.
func EncodeExpense(e core.Expense) string {
	return e.Name + entrySeparator + e.Amount.String()
}

// DecodeExpense parses an encoded entry. The amount follows the last
// separator so names may themselves contain ": ".
func DecodeExpense(s string) (core.Expense, error) {
	i := strings.LastIndex(s, entrySeparator)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("%w: entry %q has no separator", store.ErrBadPayload, s)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s[i+len(entrySeparator):]))
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: entry %q amount: %v", store.ErrBadPayload, s, err)
	}
	e := core.Expense{Name: s[:i], Amount: amount}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", store.ErrBadPayload, err)
	}
	return e, nil
}

// Load returns the user's ledger. A user with no namespace gets an empty
// ledger; this backend never reports ErrNotFound.
func (s *Store) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrEmptyUser)
	}
	s.mu.Lock()
	all, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	ns, ok := all[userID]
	if !ok {
		return core.NewLedger(), nil
	}
	l, err := ns.ledger()
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	slog.DebugContext(ctx, "Ledger loaded from prefs",
		"component", "storage",
		"user_id", userID,
		"expense_count", l.Len())
	return l, nil
}

// Save writes the user's namespace. Unlike the legacy layout, write failures
// are reported.
func (s *Store) Save(ctx context.Context, userID string, l core.Ledger) error {
	if strings.TrimSpace(userID) == "" {
		return store.Wrap(store.OpSave, backendName, userID, store.ErrEmptyUser)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	ns := encode(l)
	all[userID] = ns
	if err := s.write(all); err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	if len(ns.Expenses) < l.Len() {
		slog.WarnContext(ctx, "Duplicate expenses collapsed by prefs encoding",
			"component", "storage",
			"user_id", userID,
			"expense_count", l.Len(),
			"stored", len(ns.Expenses))
	}
	return nil
}

func encode(l core.Ledger) namespace {
	set := map[string]struct{}{}
	for _, e := range l.Expenses() {
		set[EncodeExpense(e)] = struct{}{}
	}
	entries := make([]string, 0, len(set))
	for k := range set {
		entries = append(entries, k)
	}
	sort.Strings(entries)
	return namespace{
		Income:        l.Income().String(),
		Expenses:      entries,
		TotalExpenses: l.TotalExpenses().String(),
	}
}

func (ns namespace) ledger() (core.Ledger, error) {
	income := decimal.Zero
	if ns.Income != "" {
		v, err := decimal.NewFromString(ns.Income)
		if err != nil {
			return core.Ledger{}, fmt.Errorf("%w: income %q", store.ErrBadPayload, ns.Income)
		}
		income = v
	}
	expenses := make([]core.Expense, 0, len(ns.Expenses))
	for _, entry := range ns.Expenses {
		e, err := DecodeExpense(entry)
		if err != nil {
			return core.Ledger{}, err
		}
		expenses = append(expenses, e)
	}
	l, err := core.Restore(income, expenses)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", store.ErrBadPayload, err)
	}
	return l, nil
}

func (s *Store) read() (map[string]namespace, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]namespace{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs file: %w", err)
	}
	all := map[string]namespace{}
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrBadPayload, err)
	}
	return all, nil
}

// write replaces the file atomically through a temp file in the same
// directory.
func (s *Store) write(all map[string]namespace) error {
	data, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace prefs file: %w", err)
	}
	return nil
}
