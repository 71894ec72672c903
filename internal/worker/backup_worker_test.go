package worker

import (
	"context"
	"errors"
	"testing"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/ledger/memory"
)

type fakeWriter struct {
	rows []string
	fail bool
}

func (f *fakeWriter) AppendExpense(ctx context.Context, t core.Transaction, categoryName string) error {
	if f.fail {
		return errors.New("sheet unavailable")
	}
	f.rows = append(f.rows, categoryName)
	return nil
}

func seedStore(t *testing.T) (*memory.Store, int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.PutCategory(ctx, core.Category{ID: "food", Name: "Food", Budget: core.Money{Cents: 100}}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	id, err := store.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: "food", Amount: core.Money{Cents: 500},
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return store, id
}

func TestHandleEventMirrorsExpense(t *testing.T) {
	ctx := context.Background()
	store, id := seedStore(t)
	writer := &fakeWriter{}
	w := NewBackupWorker(store, writer, 10)

	if err := w.HandleEvent(ctx, amqp.NewExpenseRecorded(id)); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(writer.rows) != 1 || writer.rows[0] != "Food" {
		t.Fatalf("rows = %v", writer.rows)
	}

	// Mirrored rows disappear from the pending scan.
	pending, err := store.UnmirroredTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after mirror = %+v", pending)
	}
}

func TestHandleEventMissingTransaction(t *testing.T) {
	store, _ := seedStore(t)
	w := NewBackupWorker(store, &fakeWriter{}, 10)

	// Deleted before processing: acknowledged, not retried forever.
	if err := w.HandleEvent(context.Background(), amqp.NewExpenseRecorded(9999)); err != nil {
		t.Fatalf("missing transaction should not error: %v", err)
	}
}

func TestHandleEventWriterFailure(t *testing.T) {
	ctx := context.Background()
	store, id := seedStore(t)
	w := NewBackupWorker(store, &fakeWriter{fail: true}, 10)

	if err := w.HandleEvent(ctx, amqp.NewExpenseRecorded(id)); err == nil {
		t.Fatal("writer failure must propagate for requeue")
	}

	pending, _ := store.UnmirroredTransactions(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("failed mirror must stay pending, got %+v", pending)
	}
}

func TestHandleEventNonExpenseKinds(t *testing.T) {
	store, _ := seedStore(t)
	writer := &fakeWriter{}
	w := NewBackupWorker(store, writer, 10)

	if err := w.HandleEvent(context.Background(), amqp.NewCategoryDeleted("food", 2)); err != nil {
		t.Fatalf("category deleted: %v", err)
	}
	if err := w.HandleEvent(context.Background(), amqp.NewImportReplaced()); err != nil {
		t.Fatalf("import replaced: %v", err)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("non-expense events must not write rows: %v", writer.rows)
	}
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	store, _ := seedStore(t)
	_, _ = store.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 11), CategoryID: "food", Amount: core.Money{Cents: 900},
	})
	writer := &fakeWriter{}
	w := NewBackupWorker(store, writer, 10)

	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(writer.rows) != 2 {
		t.Fatalf("mirrored %d rows, want 2", len(writer.rows))
	}

	// Second pass finds nothing.
	writer.rows = nil
	if err := w.ProcessPending(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("second pass mirrored %v", writer.rows)
	}
}
