// Package ledger defines the store contract the budget engine is computed
// against. Adapters (SQLite, in-memory) implement these ports; the engine
// itself only ever sees a fully materialized core.Snapshot.
package ledger

import (
	"context"
	"errors"

	"budget/internal/core"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Scalar keys recognised by ScalarStore implementations.
const (
	KeySalary   = "salary"
	KeyMigrated = "migrated"
)

type (
	// ScalarStore holds the process-wide scalars: the salary and the
	// one-time migration flag.
	ScalarStore interface {
		Salary(ctx context.Context) (core.Money, error)
		SetSalary(ctx context.Context, m core.Money) error
		Flag(ctx context.Context, key string) (bool, error)
		SetFlag(ctx context.Context, key string) error
	}

	CategoryStore interface {
		Categories(ctx context.Context) ([]core.Category, error)
		PutCategory(ctx context.Context, c core.Category) error
		// DeleteCategory removes the category and every transaction
		// referencing it, atomically from the caller's point of view, and
		// reports how many transactions went with it.
		DeleteCategory(ctx context.Context, id string) (removed int64, err error)
	}

	TransactionStore interface {
		Transactions(ctx context.Context) ([]core.Transaction, error)
		Transaction(ctx context.Context, id int64) (core.Transaction, error)
		// AddTransaction inserts the record and returns the store-assigned id.
		AddTransaction(ctx context.Context, t core.Transaction) (int64, error)
		DeleteTransaction(ctx context.Context, id int64) error
		ClearTransactions(ctx context.Context) error
	}

	EnvelopeStore interface {
		Envelopes(ctx context.Context) ([]core.Envelope, error)
		PutEnvelope(ctx context.Context, e core.Envelope) error
		DeleteEnvelope(ctx context.Context, id string) error
	}

	// Mirror tracks which transactions have been copied to the external
	// backup target.
	Mirror interface {
		UnmirroredTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkMirrored(ctx context.Context, id int64) error
	}

	// Store is the full ledger contract.
	Store interface {
		ScalarStore
		CategoryStore
		TransactionStore
		EnvelopeStore
		Mirror

		// ReplaceAll swaps out all four collections wholesale. Used by
		// import, which is a replacement, never a merge.
		ReplaceAll(ctx context.Context, s core.Snapshot) error

		Close() error
	}
)

// LoadSnapshot materializes the four collections into an engine snapshot.
func LoadSnapshot(ctx context.Context, st Store) (*core.Snapshot, error) {
	salary, err := st.Salary(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := st.Categories(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := st.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	envs, err := st.Envelopes(ctx)
	if err != nil {
		return nil, err
	}
	return &core.Snapshot{
		Salary:       salary,
		Categories:   cats,
		Transactions: txs,
		Envelopes:    envs,
	}, nil
}
