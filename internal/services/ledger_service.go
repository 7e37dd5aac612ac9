package services

import (
	"context"
	"fmt"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/store"
)

// WritePolicy decides when a session writes the ledger back.
type WritePolicy string

const (
	// WriteExplicit saves only when asked; unsaved changes are discarded
	// when the session ends.
	WriteExplicit WritePolicy = "explicit"
	// WriteImmediate saves after every successful mutation.
	WriteImmediate WritePolicy = "immediate"
)

// ParseWritePolicy maps a config value to a policy.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch WritePolicy(s) {
	case WriteExplicit, WriteImmediate:
		return WritePolicy(s), nil
	case "":
		return WriteExplicit, nil
	default:
		return "", fmt.Errorf("unknown write policy %q", s)
	}
}

// Notifier is told about every successful save.
type Notifier interface {
	PublishLedgerSaved(ctx context.Context, msg *amqp.LedgerSavedMessage) error
}

// Mutation turns one ledger value into the next.
type Mutation func(core.Ledger) (core.Ledger, error)

// LedgerService runs ledger operations against a store and announces saves.
type LedgerService struct {
	store    store.Store
	notifier Notifier
	policy   WritePolicy
	logger   *log.Logger
}

// NewLedgerService wires a store with an optional notifier. A nil logger
// falls back to the process default.
func NewLedgerService(s store.Store, notifier Notifier, policy WritePolicy, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	if policy == "" {
		policy = WriteExplicit
	}
	return &LedgerService{
		store:    s,
		notifier: notifier,
		policy:   policy,
		logger:   logger.WithComponent(log.ComponentLedger),
	}
}

func (s *LedgerService) Policy() WritePolicy { return s.policy }

// Load returns the user's ledger, or an empty one if nothing was saved yet.
// The load is issued asynchronously and awaited before returning.
// Refresh loads the ledger from the backend itself, skipping any cached
// copy.
func (s *LedgerService) Refresh(ctx context.Context, userID string) (core.Ledger, error) {
	if inv, ok := s.store.(store.Invalidator); ok {
		inv.Invalidate(userID)
	}
	return s.Load(ctx, userID)
}

func (s *LedgerService) Load(ctx context.Context, userID string) (core.Ledger, error) {
	l, err := store.Go(ctx, func(ctx context.Context) (core.Ledger, error) {
		return store.LoadOrEmpty(ctx, s.store, userID)
	}).Await(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
		return core.Ledger{}, err
	}
	s.logger.DebugContext(ctx, "Ledger loaded",
		log.NewFields().WithUser(userID).WithLedger(l).ToSlice()...)
	return l, nil
}

// Save overwrites the stored ledger and publishes a ledger.saved event.
// A publish failure is logged; the save itself has already succeeded.
func (s *LedgerService) Save(ctx context.Context, userID string, l core.Ledger) error {
	if _, err := store.SaveAsync(ctx, s.store, userID, l).Await(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save ledger",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpSave,
			log.FieldError, err)
		return err
	}
	s.logger.InfoContext(ctx, "Ledger saved",
		log.NewFields().WithUser(userID).WithLedger(l).WithOperation(log.OpSave).ToSlice()...)
	s.notify(ctx, userID, l)
	return nil
}

func (s *LedgerService) notify(ctx context.Context, userID string, l core.Ledger) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishLedgerSaved(ctx, amqp.NewLedgerSavedMessage(userID, l)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger saved event",
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}

// Update loads the ledger, applies fn and saves the result. Nothing is
// written when fn fails.
func (s *LedgerService) Update(ctx context.Context, userID string, fn Mutation) (core.Ledger, error) {
	current, err := s.Load(ctx, userID)
	if err != nil {
		return core.Ledger{}, err
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	if err := s.Save(ctx, userID, next); err != nil {
		return current, err
	}
	return next, nil
}

// SetIncome loads, sets the income and saves.
func (s *LedgerService) SetIncome(ctx context.Context, userID, input string) (core.Ledger, error) {
	return s.Update(ctx, userID, func(l core.Ledger) (core.Ledger, error) { return l.SetIncome(input) })
}

// AddExpense loads, appends the expense and saves.
func (s *LedgerService) AddExpense(ctx context.Context, userID, name, amount string) (core.Ledger, error) {
	return s.Update(ctx, userID, func(l core.Ledger) (core.Ledger, error) { return l.AddExpense(name, amount) })
}

// RemoveExpenseAt loads, removes the expense at index i and saves.
func (s *LedgerService) RemoveExpenseAt(ctx context.Context, userID string, i int) (core.Ledger, error) {
	return s.Update(ctx, userID, func(l core.Ledger) (core.Ledger, error) { return l.RemoveExpenseAt(i) })
}
