package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Money is a monetary value in integer cents. Aggregation always stays
	// in cents; rounding to whole display units happens only at the
	// formatting boundary.
	Money struct {
		Cents int64
	}

	Date struct {
		time.Time
	}

	// Window restricts an aggregation to a calendar year, or a year+month.
	// The zero Window matches every transaction.
	Window struct {
		Year  int
		Month int // 1-12, 0 means the whole year
	}

	// Category is a budgeted spending bucket.
	Category struct {
		ID     string
		Name   string
		Budget Money
	}

	// Transaction is a dated expense against a category. Transactions are
	// never edited in place; correcting one means delete and re-add.
	Transaction struct {
		ID         int64 // assigned by the store on insert
		Date       Date
		CategoryID string
		Amount     Money
		Note       string
	}

	// Envelope is a named savings goal. Name is the identity key on upsert,
	// matched case-insensitively. Target of zero means no goal is set.
	Envelope struct {
		ID     string
		Name   string
		Amount Money
		Target Money
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownCategory = errors.New("unknown category")
)

const isoDay = "2006-01-02"

// NewDate creates a Date pinned to midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar day (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDay, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(isoDay)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) IsNegative() bool { return m.Cents < 0 }

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns the difference of two amounts, which may be negative.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// FloorZero clamps a negative amount to zero.
func (m Money) FloorZero() Money {
	if m.Cents < 0 {
		return Money{}
	}
	return m
}

// WindowFor returns the year+month window containing t.
func WindowFor(t time.Time) Window {
	return Window{Year: t.Year(), Month: int(t.Month())}
}

// Contains reports whether a transaction date falls inside the window.
func (w Window) Contains(d Date) bool {
	if w.Year == 0 {
		return true
	}
	if d.Year() != w.Year {
		return false
	}
	return w.Month == 0 || int(d.Time.Month()) == w.Month
}

// IsZero reports whether the window is unrestricted.
func (w Window) IsZero() bool { return w.Year == 0 }

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Budget.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrUnknownCategory
	}
	if t.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.Amount.IsNegative() || e.Target.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// SameName reports whether two envelope names collide under the
// case-insensitive identity rule.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
