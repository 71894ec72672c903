// Package worker mirrors recorded expenses to the off-site backup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/backup"
	"budget/internal/ledger"
)

// BackupWorker consumes ledger events and mirrors expenses to the
// backup writer, marking each one mirrored in the store afterwards.
type BackupWorker struct {
	store     ledger.Store
	writer    backup.Writer
	batchSize int
}

func NewBackupWorker(store ledger.Store, writer backup.Writer, batchSize int) *BackupWorker {
	return &BackupWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleEvent processes one ledger event. Only recorded expenses get
// mirrored; deletions and imports are logged and acknowledged so the
// queue drains.
func (w *BackupWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	switch event.Kind {
	case amqp.KindExpenseRecorded:
		return w.mirrorTransaction(ctx, event.TransactionID)
	case amqp.KindCategoryDeleted:
		slog.InfoContext(ctx, "Category deleted upstream",
			"category_id", event.CategoryID,
			"removed_transactions", event.Removed)
		return nil
	case amqp.KindImportReplaced:
		// The catch-up scan will pick up the imported expenses.
		slog.InfoContext(ctx, "Ledger replaced by import, waiting for catch-up scan")
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "kind", event.Kind)
		return nil
	}
}

func (w *BackupWorker) mirrorTransaction(ctx context.Context, id int64) error {
	t, err := w.store.Transaction(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		// Deleted before we got to it; nothing to mirror.
		slog.WarnContext(ctx, "Transaction gone before mirroring", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", id, err)
	}

	name, err := w.categoryName(ctx, t.CategoryID)
	if err != nil {
		return err
	}

	if err := w.writer.AppendExpense(ctx, t, name); err != nil {
		return fmt.Errorf("mirror transaction %d: %w", id, err)
	}
	if err := w.store.MarkMirrored(ctx, id); err != nil {
		return fmt.Errorf("mark transaction %d mirrored: %w", id, err)
	}
	return nil
}

func (w *BackupWorker) categoryName(ctx context.Context, categoryID string) (string, error) {
	cats, err := w.store.Categories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == categoryID {
			return c.Name, nil
		}
	}
	// Category cascade may have raced the mirror; keep the id as label.
	return categoryID, nil
}

// ProcessPending mirrors expenses that never made it through the event
// path. This is the safety net for lost messages and bulk imports.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.UnmirroredTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unmirrored expenses", "count", len(pending))

	var failed int
	for _, t := range pending {
		if err := w.mirrorTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending expense", "id", t.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pending expenses failed to mirror", failed, len(pending))
	}
	return nil
}
