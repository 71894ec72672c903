// Package portable implements the export document: a single JSON object
// carrying salary and the three collections. Import replaces the ledger
// wholesale; it is never a merge.
package portable

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"budget/internal/core"
)

// Document is the portable representation. Amounts are plain decimal
// numbers in whole currency units, as the ledger displays them.
type Document struct {
	Salary  float64             `json:"salary"`
	Cats    []CategoryRecord    `json:"cats"`
	Tx      []TransactionRecord `json:"tx"`
	Savings []EnvelopeRecord    `json:"savings"`
}

type CategoryRecord struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Budget float64 `json:"budget"`
}

type TransactionRecord struct {
	ID         int64   `json:"id"`
	Date       string  `json:"date"`
	CategoryID string  `json:"categoryId"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note,omitempty"`
}

type EnvelopeRecord struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Target float64 `json:"target,omitempty"`
}

var ErrMalformed = errors.New("malformed export document")

func toUnits(m core.Money) float64 {
	return float64(m.Cents) / 100.0
}

func toMoney(units float64) (core.Money, error) {
	if math.IsNaN(units) || math.IsInf(units, 0) || units < 0 {
		return core.Money{}, ErrMalformed
	}
	return core.Money{Cents: int64(math.Round(units * 100))}, nil
}

// FromSnapshot builds the export document from a ledger snapshot.
func FromSnapshot(s *core.Snapshot) Document {
	doc := Document{
		Salary:  toUnits(s.Salary),
		Cats:    make([]CategoryRecord, 0, len(s.Categories)),
		Tx:      make([]TransactionRecord, 0, len(s.Transactions)),
		Savings: make([]EnvelopeRecord, 0, len(s.Envelopes)),
	}
	for _, c := range s.Categories {
		doc.Cats = append(doc.Cats, CategoryRecord{ID: c.ID, Name: c.Name, Budget: toUnits(c.Budget)})
	}
	for _, t := range s.Transactions {
		doc.Tx = append(doc.Tx, TransactionRecord{
			ID:         t.ID,
			Date:       t.Date.String(),
			CategoryID: t.CategoryID,
			Amount:     toUnits(t.Amount),
			Note:       t.Note,
		})
	}
	for _, e := range s.Envelopes {
		doc.Savings = append(doc.Savings, EnvelopeRecord{ID: e.ID, Name: e.Name, Amount: toUnits(e.Amount), Target: toUnits(e.Target)})
	}
	return doc
}

// Encode renders the document as indented JSON, matching the file the
// export dialog hands to the user.
func (d Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Decode parses and shape-checks an export document. Any failure aborts
// the whole import; the caller must not have written anything yet.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// Snapshot converts the document to a validated engine snapshot. Every
// record is checked at this boundary: ids and names present, amounts in
// range, dates parseable, and every transaction referencing a category
// that exists in the document.
func (d Document) Snapshot() (*core.Snapshot, error) {
	salary, err := toMoney(d.Salary)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salary %v", ErrMalformed, d.Salary)
	}
	snap := &core.Snapshot{Salary: salary}

	catIDs := make(map[string]bool, len(d.Cats))
	for i, rec := range d.Cats {
		budget, err := toMoney(rec.Budget)
		if err != nil {
			return nil, fmt.Errorf("%w: cat %d has bad budget %v", ErrMalformed, i, rec.Budget)
		}
		c := core.Category{ID: rec.ID, Name: rec.Name, Budget: budget}
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: cat %d missing id", ErrMalformed, i)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: cat %d: %v", ErrMalformed, i, err)
		}
		if catIDs[rec.ID] {
			return nil, fmt.Errorf("%w: duplicate cat id %s", ErrMalformed, rec.ID)
		}
		catIDs[rec.ID] = true
		snap.Categories = append(snap.Categories, c)
	}

	for i, rec := range d.Tx {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d has bad date %q", ErrMalformed, i, rec.Date)
		}
		amount, err := toMoney(rec.Amount)
		if err != nil || amount.Cents <= 0 {
			return nil, fmt.Errorf("%w: tx %d has bad amount %v", ErrMalformed, i, rec.Amount)
		}
		if !catIDs[rec.CategoryID] {
			return nil, fmt.Errorf("%w: tx %d references unknown cat %q", ErrMalformed, i, rec.CategoryID)
		}
		snap.Transactions = append(snap.Transactions, core.Transaction{
			ID:         rec.ID,
			Date:       date,
			CategoryID: rec.CategoryID,
			Amount:     amount,
			Note:       rec.Note,
		})
	}

	for i, rec := range d.Savings {
		amount, err := toMoney(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: savings %d has bad amount %v", ErrMalformed, i, rec.Amount)
		}
		target, err := toMoney(rec.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: savings %d has bad target %v", ErrMalformed, i, rec.Target)
		}
		e := core.Envelope{ID: rec.ID, Name: rec.Name, Amount: amount, Target: target}
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: savings %d missing id", ErrMalformed, i)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: savings %d: %v", ErrMalformed, i, err)
		}
		snap.Envelopes = append(snap.Envelopes, e)
	}

	return snap, nil
}
