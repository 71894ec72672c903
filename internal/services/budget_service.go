// Package services orchestrates ledger mutations: every admission-control
// rule is checked against a fresh snapshot strictly before the first store
// write, so a rejected action leaves no trace.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/portable"
)

var (
	// ErrOverBudget: the category change would push the budget total past
	// the salary. Hard rejection: adding one more category is fully
	// discretionary.
	ErrOverBudget = errors.New("category budgets would exceed salary")

	// ErrSalaryBelowBudgets: the new salary is lower than the committed
	// budget total. Soft: the caller retries with force once the user
	// confirms, because shrinking income is not something the user can
	// refuse.
	ErrSalaryBelowBudgets = errors.New("salary below committed category budgets")

	// ErrNoCategories: an expense needs at least one category to exist.
	ErrNoCategories = errors.New("no categories defined")

	// ErrExceedsAllocatable: the envelope amount overshoots what is left
	// to allocate this period.
	ErrExceedsAllocatable = errors.New("amount exceeds allocatable savings")
)

// BudgetService owns all ledger mutations. Events are published
// best-effort; a broker failure never fails the user action.
type BudgetService struct {
	store  ledger.Store
	events *amqp.Client

	// now is swappable in tests; the current window for allocation checks
	// derives from it.
	now func() time.Time
}

func NewBudgetService(store ledger.Store, events *amqp.Client) *BudgetService {
	return &BudgetService{store: store, events: events, now: time.Now}
}

// Snapshot materializes the current ledger state for the engine.
func (s *BudgetService) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	return ledger.LoadSnapshot(ctx, s.store)
}

// SetSalary overwrites the salary. Without force, a reduction below the
// committed category budgets is rejected with ErrSalaryBelowBudgets so
// the caller can ask the user to confirm.
func (s *BudgetService) SetSalary(ctx context.Context, salary core.Money, force bool) error {
	if salary.IsNegative() {
		return core.ErrNegativeAmount
	}
	if !force {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if budgets := snap.SumCategoryBudgets(); salary.Cents < budgets.Cents {
			return fmt.Errorf("%w: budgets %d, new salary %d cents",
				ErrSalaryBelowBudgets, budgets.Cents, salary.Cents)
		}
	}
	if err := s.store.SetSalary(ctx, salary); err != nil {
		return fmt.Errorf("set salary: %w", err)
	}
	slog.InfoContext(ctx, "Salary updated", "cents", salary.Cents, "forced", force)
	return nil
}

// PutCategory creates (empty id) or edits a category. The over-budget
// guard is hard: when a salary is set, the budget total after the change
// must not exceed it. There is no force path here.
func (s *BudgetService) PutCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Category{}, fmt.Errorf("load snapshot: %w", err)
	}

	total := snap.SumCategoryBudgets().Add(c.Budget)
	isEdit := false
	for _, existing := range snap.Categories {
		if existing.ID == c.ID {
			total = total.Sub(existing.Budget) // replacing, not adding
			isEdit = true
			break
		}
	}
	if !isEdit && c.ID != "" {
		return core.Category{}, ledger.ErrNotFound
	}
	if snap.Salary.Cents > 0 && total.Cents > snap.Salary.Cents {
		return core.Category{}, fmt.Errorf("%w: total would be %d of %d cents",
			ErrOverBudget, total.Cents, snap.Salary.Cents)
	}

	if c.ID == "" {
		c.ID = newID()
	}
	if err := s.store.PutCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("put category: %w", err)
	}
	return c, nil
}

// DeleteCategory cascades to every transaction referencing the category.
// Confirmation is the caller's concern; here the cascade is uncondi-
// tional so no orphaned transaction can survive.
func (s *BudgetService) DeleteCategory(ctx context.Context, id string) (int64, error) {
	removed, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	s.publish(ctx, amqp.NewCategoryDeleted(id, removed))
	return removed, nil
}

// AddTransaction records an expense. Requires at least one category, a
// known category id and a strictly positive amount.
func (s *BudgetService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	cats, err := s.store.Categories(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) == 0 {
		return core.Transaction{}, ErrNoCategories
	}
	known := false
	for _, c := range cats {
		if c.ID == t.CategoryID {
			known = true
			break
		}
	}
	if !known {
		return core.Transaction{}, core.ErrUnknownCategory
	}

	id, err := s.store.AddTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	t.ID = id
	slog.InfoContext(ctx, "Expense recorded",
		"id", id, "category_id", t.CategoryID, "amount_cents", t.Amount.Cents, "day", t.Date.String())
	s.publish(ctx, amqp.NewExpenseRecorded(id))
	return t, nil
}

// DeleteTransaction removes one expense. There is no edit operation:
// correcting an entry is delete plus re-add.
func (s *BudgetService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// ClearTransactions wipes the whole expense history.
func (s *BudgetService) ClearTransactions(ctx context.Context) error {
	if err := s.store.ClearTransactions(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	slog.InfoContext(ctx, "Expense history cleared")
	return nil
}

// UpsertEnvelope inserts or updates a savings envelope, matching on the
// trimmed, case-insensitive name. The allocation guard adds the
// envelope's own prior amount back, so editing an envelope to its
// current value is always a no-op that passes.
func (s *BudgetService) UpsertEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	e.Name = strings.TrimSpace(e.Name)
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Envelope{}, fmt.Errorf("load snapshot: %w", err)
	}

	var previous core.Envelope
	for _, existing := range snap.Envelopes {
		if core.SameName(existing.Name, e.Name) {
			previous = existing
			break
		}
	}

	window := core.WindowFor(s.now())
	allocatable := snap.LeftToAllocate(window).Add(previous.Amount)
	if e.Amount.Cents > allocatable.Cents {
		return core.Envelope{}, fmt.Errorf("%w: %d of %d cents allocatable",
			ErrExceedsAllocatable, e.Amount.Cents, allocatable.Cents)
	}

	if previous.ID != "" {
		e.ID = previous.ID
	} else {
		e.ID = newID()
	}
	if err := s.store.PutEnvelope(ctx, e); err != nil {
		return core.Envelope{}, fmt.Errorf("put envelope: %w", err)
	}
	return e, nil
}

func (s *BudgetService) DeleteEnvelope(ctx context.Context, id string) error {
	if err := s.store.DeleteEnvelope(ctx, id); err != nil {
		return fmt.Errorf("delete envelope: %w", err)
	}
	return nil
}

// Export builds the portable document from the current ledger state.
func (s *BudgetService) Export(ctx context.Context) (portable.Document, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return portable.Document{}, fmt.Errorf("load snapshot: %w", err)
	}
	return portable.FromSnapshot(snap), nil
}

// Import replaces all four collections wholesale. The document is fully
// validated before the store is touched, so a malformed file leaves the
// ledger exactly as it was.
func (s *BudgetService) Import(ctx context.Context, data []byte) error {
	doc, err := portable.Decode(data)
	if err != nil {
		return err
	}
	snap, err := doc.Snapshot()
	if err != nil {
		return err
	}
	if err := s.store.ReplaceAll(ctx, *snap); err != nil {
		return fmt.Errorf("replace collections: %w", err)
	}
	slog.InfoContext(ctx, "Import replaced ledger",
		"categories", len(snap.Categories),
		"transactions", len(snap.Transactions),
		"envelopes", len(snap.Envelopes))
	s.publish(ctx, amqp.NewImportReplaced())
	return nil
}

func (s *BudgetService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event", "kind", event.Kind, "error", err)
	}
}

// newID produces an opaque record id, hex over random bytes.
func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("id_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
