// Package storage is the SQLite ledger store. Schema changes go through
// the embedded golang-migrate migrations, never ad-hoc DDL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"budget/internal/core"
	"budget/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Salary(ctx context.Context) (core.Money, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, ledger.KeySalary).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("read salary: %w", err)
	}
	cents, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return core.Money{}, fmt.Errorf("malformed salary value %q: %w", value, err)
	}
	return core.Money{Cents: cents}, nil
}

func (s *SQLiteStore) SetSalary(ctx context.Context, m core.Money) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		ledger.KeySalary, strconv.FormatInt(m.Cents, 10))
	if err != nil {
		return fmt.Errorf("set salary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Flag(ctx context.Context, key string) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", key, err)
	}
	return value == "1", nil
}

func (s *SQLiteStore) SetFlag(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, '1') ON CONFLICT(key) DO UPDATE SET value = '1'`, key)
	if err != nil {
		return fmt.Errorf("set flag %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, budget_cents FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Budget.Cents); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, budget_cents) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, budget_cents = excluded.budget_cents`,
		c.ID, c.Name, c.Budget.Cents)
	if err != nil {
		return fmt.Errorf("put category: %w", err)
	}
	return nil
}

// DeleteCategory cascades to the category's transactions inside a single
// SQL transaction: the affected ids are counted first, then both deletes
// commit or roll back together.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cascade delete: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM categories WHERE id = ?`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check category: %w", err)
	}
	if exists == 0 {
		return 0, ledger.ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE category_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("cascade delete transactions: %w", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cascade delete: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted with cascade", "id", id, "transactions_removed", removed)
	return removed, nil
}

func (s *SQLiteStore) Transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day, category_id, amount_cents, note FROM transactions ORDER BY day, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *SQLiteStore) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	var day string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, day, category_id, amount_cents, note FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &day, &t.CategoryID, &t.Amount.Cents, &t.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	if t.Date, err = core.ParseDate(day); err != nil {
		return core.Transaction{}, fmt.Errorf("malformed day %q for transaction %d: %w", day, id, err)
	}
	return t, nil
}

func (s *SQLiteStore) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (day, category_id, amount_cents, note) VALUES (?, ?, ?, ?)`,
		t.Date.String(), t.CategoryID, t.Amount.Cents, t.Note)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ClearTransactions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Envelopes(ctx context.Context) ([]core.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, amount_cents, target_cents FROM savings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	var out []core.Envelope
	for rows.Next() {
		var e core.Envelope
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount.Cents, &e.Target.Cents); err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutEnvelope(ctx context.Context, e core.Envelope) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO savings (id, name, amount_cents, target_cents) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, amount_cents = excluded.amount_cents, target_cents = excluded.target_cents`,
		e.ID, e.Name, e.Amount.Cents, e.Target.Cents)
	if err != nil {
		return fmt.Errorf("put envelope: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteEnvelope(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM savings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete envelope %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UnmirroredTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, day, category_id, amount_cents, note FROM transactions WHERE mirrored = 0 ORDER BY id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unmirrored transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *SQLiteStore) MarkMirrored(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE transactions SET mirrored = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction %d mirrored: %w", id, err)
	}
	return nil
}

// ReplaceAll swaps all four collections in one SQL transaction. Imported
// transaction ids are regenerated by the autoincrement column.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, snap core.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM transactions`, `DELETE FROM categories`, `DELETE FROM savings`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		ledger.KeySalary, strconv.FormatInt(snap.Salary.Cents, 10)); err != nil {
		return fmt.Errorf("import salary: %w", err)
	}
	for _, c := range snap.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, budget_cents) VALUES (?, ?, ?)`,
			c.ID, c.Name, c.Budget.Cents); err != nil {
			return fmt.Errorf("import category %s: %w", c.ID, err)
		}
	}
	for _, t := range snap.Transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (day, category_id, amount_cents, note) VALUES (?, ?, ?, ?)`,
			t.Date.String(), t.CategoryID, t.Amount.Cents, t.Note); err != nil {
			return fmt.Errorf("import transaction: %w", err)
		}
	}
	for _, e := range snap.Envelopes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO savings (id, name, amount_cents, target_cents) VALUES (?, ?, ?, ?)`,
			e.ID, e.Name, e.Amount.Cents, e.Target.Cents); err != nil {
			return fmt.Errorf("import envelope %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Collections replaced wholesale",
		"categories", len(snap.Categories),
		"transactions", len(snap.Transactions),
		"envelopes", len(snap.Envelopes))
	return nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var day string
		if err := rows.Scan(&t.ID, &day, &t.CategoryID, &t.Amount.Cents, &t.Note); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("malformed day %q for transaction %d: %w", day, t.ID, err)
		}
		t.Date = d
		out = append(out, t)
	}
	return out, rows.Err()
}
