package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/log"
	"saldo/internal/store"
)

// MirrorWorker copies ledgers from the primary backend to a mirror backend
// whenever a ledger.saved event arrives.
type MirrorWorker struct {
	primary     store.Loader
	mirror      store.Saver
	concurrency int
	logger      *log.Logger
}

func NewMirrorWorker(primary store.Loader, mirror store.Saver, concurrency int, logger *log.Logger) *MirrorWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &MirrorWorker{
		primary:     primary,
		mirror:      mirror,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerSaved reloads the announced ledger from the primary backend
// and overwrites the mirror copy. The event only names the user; the
// primary store stays the source of truth.
func (w *MirrorWorker) HandleLedgerSaved(ctx context.Context, msg *amqp.LedgerSavedMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger saved message",
		log.FieldUserID, msg.UserID,
		log.FieldExpenseCount, msg.ExpenseCount,
		"timestamp", msg.Timestamp)

	if err := w.Mirror(ctx, msg.UserID); err != nil {
		return fmt.Errorf("mirror ledger: %w", err)
	}
	return nil
}

// Mirror copies one user's ledger. A user with nothing stored in the
// primary backend is skipped.
func (w *MirrorWorker) Mirror(ctx context.Context, userID string) error {
	l, err := w.primary.Load(ctx, userID)
	if store.IsNotFound(err) {
		w.logger.WarnContext(ctx, "Ledger vanished from primary backend, skipping mirror",
			log.FieldUserID, userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load from primary: %w", err)
	}
	if err := w.mirror.Save(ctx, userID, l); err != nil {
		return fmt.Errorf("save to mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.NewFields().WithUser(userID).WithLedger(l).WithOperation(log.OpMirror).ToSlice()...)
	return nil
}

// Backfill mirrors every listed user, for example at startup to recover
// events missed while the worker was down. Individual failures are logged
// and counted; only context cancellation aborts the run.
func (w *MirrorWorker) Backfill(ctx context.Context, userIDs []string) (synced, failed int, err error) {
	if len(userIDs) == 0 {
		w.logger.InfoContext(ctx, "No ledgers to backfill")
		return 0, 0, nil
	}
	w.logger.InfoContext(ctx, "Backfilling mirror", "count", len(userIDs))

	var ok, bad int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := w.Mirror(gctx, id); err != nil {
				w.logger.ErrorContext(gctx, "Failed to backfill ledger",
					log.FieldUserID, id,
					log.FieldError, err)
				atomic.AddInt64(&bad, 1)
				return nil
			}
			atomic.AddInt64(&ok, 1)
			return nil
		})
	}
	err = g.Wait()

	w.logger.InfoContext(ctx, "Backfill completed",
		"synced", ok,
		"failed", bad)
	return int(ok), int(bad), err
}
