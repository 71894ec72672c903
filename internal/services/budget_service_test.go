package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/memory"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*BudgetService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewBudgetService(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func mustCategory(t *testing.T, svc *BudgetService, name string, budgetCents int64) core.Category {
	t.Helper()
	c, err := svc.PutCategory(context.Background(), core.Category{Name: name, Budget: core.Money{Cents: budgetCents}})
	if err != nil {
		t.Fatalf("add category %s: %v", name, err)
	}
	return c
}

func TestSetSalary(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	if err := svc.SetSalary(ctx, core.Money{Cents: -1}, false); !errors.Is(err, core.ErrNegativeAmount) {
		t.Fatalf("expected negative amount error, got %v", err)
	}
	if err := svc.SetSalary(ctx, core.Money{Cents: 10000000}, false); err != nil {
		t.Fatalf("set salary: %v", err)
	}
	if got, _ := store.Salary(ctx); got.Cents != 10000000 {
		t.Fatalf("stored salary = %d", got.Cents)
	}
	// Overwriting replaces; there is no history.
	if err := svc.SetSalary(ctx, core.Money{Cents: 12000000}, false); err != nil {
		t.Fatalf("overwrite salary: %v", err)
	}
}

// Shrinking salary below committed budgets is a soft warning: rejected
// without force, accepted with it.
func TestSetSalaryBelowBudgetsNeedsForce(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	mustCategory(t, svc, "Rent", 8000000)

	err := svc.SetSalary(ctx, core.Money{Cents: 5000000}, false)
	if !errors.Is(err, ErrSalaryBelowBudgets) {
		t.Fatalf("expected ErrSalaryBelowBudgets, got %v", err)
	}
	if got, _ := store.Salary(ctx); got.Cents != 10000000 {
		t.Fatalf("rejected set must not change state, salary = %d", got.Cents)
	}

	if err := svc.SetSalary(ctx, core.Money{Cents: 5000000}, true); err != nil {
		t.Fatalf("forced set: %v", err)
	}
	if got, _ := store.Salary(ctx); got.Cents != 5000000 {
		t.Fatalf("forced salary = %d", got.Cents)
	}
}

// Adding a category past the salary is a hard rejection; no force path.
func TestPutCategoryOverBudget(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	mustCategory(t, svc, "Rent", 7000000)

	_, err := svc.PutCategory(ctx, core.Category{Name: "Travel", Budget: core.Money{Cents: 4000000}})
	if !errors.Is(err, ErrOverBudget) {
		t.Fatalf("expected ErrOverBudget, got %v", err)
	}

	snap, _ := svc.Snapshot(ctx)
	if len(snap.Categories) != 1 {
		t.Fatalf("rejected add must not write, categories = %+v", snap.Categories)
	}
}

// Editing counts only the budget delta, so raising a category within the
// remaining headroom passes while the same amount as a new category would
// not.
func TestPutCategoryEditUsesDelta(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	c := mustCategory(t, svc, "Rent", 7000000)

	c.Budget = core.Money{Cents: 9000000}
	if _, err := svc.PutCategory(ctx, c); err != nil {
		t.Fatalf("edit within salary: %v", err)
	}

	c.Budget = core.Money{Cents: 11000000}
	if _, err := svc.PutCategory(ctx, c); !errors.Is(err, ErrOverBudget) {
		t.Fatalf("expected ErrOverBudget on edit, got %v", err)
	}

	if _, err := svc.PutCategory(ctx, core.Category{ID: "ghost", Name: "X", Budget: core.Money{Cents: 1}}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

// With no salary set, category budgets are unconstrained.
func TestPutCategoryWithoutSalary(t *testing.T) {
	svc, _ := newTestService(t)
	mustCategory(t, svc, "Anything", 99000000)
}

func TestAddTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)

	// No category exists yet: rejected, totalSpent stays zero.
	_, err := svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: "anything", Amount: core.Money{Cents: 50000},
	})
	if !errors.Is(err, ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}
	snap, _ := svc.Snapshot(ctx)
	if got := snap.TotalSpent(core.Window{}); got.Cents != 0 {
		t.Fatalf("totalSpent after rejection = %d, want 0", got.Cents)
	}

	food := mustCategory(t, svc, "Food", 5000000)

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: "ghost", Amount: core.Money{Cents: 50000},
	}); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	if _, err := svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: food.ID, Amount: core.Money{},
	}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	tx, err := svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: food.ID, Amount: core.Money{Cents: 2000000}, Note: "groceries",
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	if tx.ID == 0 {
		t.Fatal("expected store-assigned id")
	}

	snap, _ = svc.Snapshot(ctx)
	if got := snap.SpentByCategory(core.Window{})[food.ID]; got.Cents != 2000000 {
		t.Fatalf("spent by category = %d", got.Cents)
	}
	if got := snap.TheoreticalSavings(core.Window{}); got.Cents != 8000000 {
		t.Fatalf("theoretical savings = %d", got.Cents)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	food := mustCategory(t, svc, "Food", 3000000)
	travel := mustCategory(t, svc, "Travel", 3000000)

	for i := 1; i <= 3; i++ {
		if _, err := svc.AddTransaction(ctx, core.Transaction{
			Date: core.NewDate(2025, 6, i), CategoryID: food.ID, Amount: core.Money{Cents: 10000},
		}); err != nil {
			t.Fatalf("seed tx: %v", err)
		}
	}
	keep, _ := svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 4), CategoryID: travel.ID, Amount: core.Money{Cents: 99},
	})

	removed, err := svc.DeleteCategory(ctx, food.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	snap, _ := svc.Snapshot(ctx)
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != keep.ID {
		t.Fatalf("surviving transactions = %+v", snap.Transactions)
	}
}

func TestUpsertEnvelopeGuard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	food := mustCategory(t, svc, "Food", 5000000)
	// Spend 40 000 in the current window: 60 000 left to allocate.
	_, _ = svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 5), CategoryID: food.ID, Amount: core.Money{Cents: 4000000},
	})

	if _, err := svc.UpsertEnvelope(ctx, core.Envelope{Name: "Safety", Amount: core.Money{Cents: 7000000}}); !errors.Is(err, ErrExceedsAllocatable) {
		t.Fatalf("expected ErrExceedsAllocatable, got %v", err)
	}

	env, err := svc.UpsertEnvelope(ctx, core.Envelope{Name: "Safety", Amount: core.Money{Cents: 5000000}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Editing an envelope to its own current value never trips the guard:
	// its prior contribution is added back.
	same, err := svc.UpsertEnvelope(ctx, core.Envelope{Name: "safety", Amount: core.Money{Cents: 5000000}})
	if err != nil {
		t.Fatalf("no-op edit rejected: %v", err)
	}
	if same.ID != env.ID {
		t.Fatalf("case-insensitive upsert created a duplicate: %s vs %s", same.ID, env.ID)
	}

	snap, _ := svc.Snapshot(ctx)
	if len(snap.Envelopes) != 1 {
		t.Fatalf("envelopes = %+v", snap.Envelopes)
	}

	// Raising past the remaining slack still fails.
	if _, err := svc.UpsertEnvelope(ctx, core.Envelope{Name: "SAFETY", Amount: core.Money{Cents: 6500000}}); !errors.Is(err, ErrExceedsAllocatable) {
		t.Fatalf("expected ErrExceedsAllocatable on raise, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 10000000}, false)
	food := mustCategory(t, svc, "Food", 5000000)
	_, _ = svc.AddTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 6, 10), CategoryID: food.ID, Amount: core.Money{Cents: 123450}, Note: "market",
	})
	if _, err := svc.UpsertEnvelope(ctx, core.Envelope{Name: "Trip", Amount: core.Money{Cents: 100000}, Target: core.Money{Cents: 400000}}); err != nil {
		t.Fatalf("seed envelope: %v", err)
	}

	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, _ := doc.Encode()

	// Import into a fresh ledger.
	other, _ := newTestService(t)
	if err := other.Import(ctx, data); err != nil {
		t.Fatalf("import: %v", err)
	}

	snap, _ := other.Snapshot(ctx)
	if snap.Salary.Cents != 10000000 {
		t.Fatalf("salary = %d", snap.Salary.Cents)
	}
	if len(snap.Categories) != 1 || snap.Categories[0].Name != "Food" {
		t.Fatalf("categories = %+v", snap.Categories)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].Amount.Cents != 123450 {
		t.Fatalf("transactions = %+v", snap.Transactions)
	}
	if len(snap.Envelopes) != 1 || snap.Envelopes[0].Target.Cents != 400000 {
		t.Fatalf("envelopes = %+v", snap.Envelopes)
	}
}

// A malformed import aborts with no partial write.
func TestImportMalformedLeavesStateIntact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_ = svc.SetSalary(ctx, core.Money{Cents: 4200000}, false)
	mustCategory(t, svc, "Keep me", 100000)

	for _, bad := range []string{
		`not json`,
		`{"salary": 1, "cats": [{"id":"", "name":"X"}]}`,
		`{"salary": 1, "tx": [{"date":"2025-01-01","categoryId":"ghost","amount":5}]}`,
	} {
		if err := svc.Import(ctx, []byte(bad)); err == nil {
			t.Fatalf("expected import error for %q", bad)
		}
	}

	snap, _ := svc.Snapshot(ctx)
	if snap.Salary.Cents != 4200000 || len(snap.Categories) != 1 {
		t.Fatalf("state changed by failed import: %+v", snap)
	}
}
