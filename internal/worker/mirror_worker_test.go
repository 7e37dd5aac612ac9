package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/store"
	"saldo/internal/store/memory"
)

type brokenSaver struct{}

func (brokenSaver) Save(_ context.Context, userID string, _ core.Ledger) error {
	return store.Wrap(store.OpSave, "broken", userID, errors.New("disk full"))
}

func seed(t *testing.T, s store.Saver, userID string) core.Ledger {
	t.Helper()
	l, _ := core.NewLedger().SetIncome("1500")
	l, _ = l.AddExpense("Rent", "800")
	l, _ = l.AddExpense("Rent", "800")
	if err := s.Save(context.Background(), userID, l); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestHandleLedgerSavedCopiesLedger(t *testing.T) {
	ctx := context.Background()
	primary, mirror := memory.New(), memory.New()
	want := seed(t, primary, "u1")

	w := NewMirrorWorker(primary, mirror, 1, log.Discard())
	if err := w.HandleLedgerSaved(ctx, amqp.NewLedgerSavedMessage("u1", want)); err != nil {
		t.Fatal(err)
	}
	got, err := mirror.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Fatalf("mirror differs: %+v", got.Expenses())
	}
}

func TestMirrorSkipsMissingLedger(t *testing.T) {
	mirror := memory.New()
	w := NewMirrorWorker(memory.New(), mirror, 1, log.Discard())
	if err := w.Mirror(context.Background(), "ghost"); err != nil {
		t.Fatalf("missing ledger should be skipped, got %v", err)
	}
	if _, err := mirror.Load(context.Background(), "ghost"); !store.IsNotFound(err) {
		t.Fatal("nothing should be written for a missing ledger")
	}
}

func TestHandleLedgerSavedReportsMirrorFailure(t *testing.T) {
	primary := memory.New()
	seed(t, primary, "u1")
	w := NewMirrorWorker(primary, brokenSaver{}, 1, log.Discard())

	err := w.HandleLedgerSaved(context.Background(), &amqp.LedgerSavedMessage{UserID: "u1"})
	var pe *store.PersistenceError
	if !errors.As(err, &pe) || pe.Backend != "broken" {
		t.Fatalf("expected mirror persistence error, got %v", err)
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	primary, mirror := memory.New(), memory.New()
	seed(t, primary, "a")
	seed(t, primary, "b")

	w := NewMirrorWorker(primary, mirror, 2, log.Discard())
	synced, failed, err := w.Backfill(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if synced != 3 || failed != 0 {
		t.Fatalf("synced=%d failed=%d", synced, failed)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := mirror.Load(ctx, id); err != nil {
			t.Fatalf("%s not mirrored: %v", id, err)
		}
	}
}

func TestBackfillCountsFailures(t *testing.T) {
	primary := memory.New()
	seed(t, primary, "a")
	w := NewMirrorWorker(primary, brokenSaver{}, 4, log.Discard())
	synced, failed, err := w.Backfill(context.Background(), []string{"a", ""})
	if err != nil {
		t.Fatal(err)
	}
	if synced != 0 || failed != 2 {
		t.Fatalf("synced=%d failed=%d", synced, failed)
	}
}

// stuckStore never answers a load within the test's patience and ignores
// its context.
type stuckStore struct{ store.Store }

func (stuckStore) Load(context.Context, string) (core.Ledger, error) {
	time.Sleep(time.Second)
	return core.NewLedger(), nil
}

func TestMirrorBoundedBySlowPrimary(t *testing.T) {
	primary := store.WithTimeout(stuckStore{memory.New()}, "stuck", 20*time.Millisecond)
	mirror := memory.New()
	w := NewMirrorWorker(primary, mirror, 2, log.Discard())

	start := time.Now()
	err := w.HandleLedgerSaved(context.Background(), amqp.NewLedgerSavedMessage("u1", core.NewLedger()))
	if !store.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	synced, failed, err := w.Backfill(context.Background(), []string{"u1", "u2"})
	if err != nil || synced != 0 || failed != 2 {
		t.Fatalf("backfill: synced=%d failed=%d err=%v", synced, failed, err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("slow primary was waited on for %s", elapsed)
	}
}
