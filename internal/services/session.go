package services

import (
	"context"

	"saldo/internal/core"
	"saldo/internal/log"
)

// Session holds one user's working ledger between load and save. It is
// meant for a single interactive caller and is not safe for concurrent use.
type Session struct {
	svc    *LedgerService
	userID string
	ledger core.Ledger
	dirty  bool
}

// Open loads the user's ledger and starts a session on it.
func (s *LedgerService) Open(ctx context.Context, userID string) (*Session, error) {
	l, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Session{svc: s, userID: userID, ledger: l}, nil
}

func (ss *Session) UserID() string      { return ss.userID }
func (ss *Session) Ledger() core.Ledger { return ss.ledger }

// Dirty reports whether the working ledger differs from what was last
// loaded or saved.
func (ss *Session) Dirty() bool { return ss.dirty }

// SetIncome replaces the income of the working ledger.
func (ss *Session) SetIncome(ctx context.Context, input string) (core.Ledger, error) {
	return ss.apply(ctx, log.OpSetIncome, func(l core.Ledger) (core.Ledger, error) { return l.SetIncome(input) })
}

// AddExpense appends an expense to the working ledger.
func (ss *Session) AddExpense(ctx context.Context, name, amount string) (core.Ledger, error) {
	return ss.apply(ctx, log.OpAdd, func(l core.Ledger) (core.Ledger, error) { return l.AddExpense(name, amount) })
}

// RemoveExpenseAt removes the expense at index i from the working ledger.
func (ss *Session) RemoveExpenseAt(ctx context.Context, i int) (core.Ledger, error) {
	return ss.apply(ctx, log.OpRemove, func(l core.Ledger) (core.Ledger, error) { return l.RemoveExpenseAt(i) })
}

// apply runs fn on the working ledger. A rejected mutation leaves the
// session untouched. Under WriteImmediate the new ledger is saved at once;
// if that save fails the change stays in the session, marked dirty, and
// the error is returned so the caller can retry with Save.
func (ss *Session) apply(ctx context.Context, op string, fn Mutation) (core.Ledger, error) {
	next, err := fn(ss.ledger)
	if err != nil {
		ss.svc.logger.DebugContext(ctx, "Ledger operation rejected",
			log.FieldUserID, ss.userID,
			log.FieldOperation, op,
			log.FieldError, err)
		return ss.ledger, err
	}
	ss.ledger = next
	ss.dirty = true
	if ss.svc.policy == WriteImmediate {
		if err := ss.Save(ctx); err != nil {
			return ss.ledger, err
		}
	}
	return ss.ledger, nil
}

// Save writes the working ledger back.
func (ss *Session) Save(ctx context.Context) error {
	if err := ss.svc.Save(ctx, ss.userID, ss.ledger); err != nil {
		return err
	}
	ss.dirty = false
	return nil
}

// Reload replaces the working ledger with the stored one, dropping any
// unsaved change.
func (ss *Session) Reload(ctx context.Context) error {
	l, err := ss.svc.Refresh(ctx, ss.userID)
	if err != nil {
		return err
	}
	ss.ledger = l
	ss.dirty = false
	return nil
}

// Close ends the session and reports whether unsaved changes were
// discarded.
func (ss *Session) Close(ctx context.Context) bool {
	discarded := ss.dirty
	if discarded {
		ss.svc.logger.WarnContext(ctx, "Discarding unsaved ledger changes",
			log.FieldUserID, ss.userID,
			log.FieldWritePolicy, string(ss.svc.policy))
	}
	ss.dirty = false
	return discarded
}
