// Package memory is the in-memory ledger store, used by tests and the
// "memory" backend for throwaway runs.
package memory

import (
	"context"
	"sync"

	"budget/internal/core"
	"budget/internal/ledger"
)

type Store struct {
	mu        sync.Mutex
	salary    core.Money
	flags     map[string]bool
	cats      []core.Category
	txs       []core.Transaction
	envs      []core.Envelope
	nextTxID  int64
	mirrored  map[int64]bool
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		flags:    make(map[string]bool),
		mirrored: make(map[int64]bool),
		nextTxID: 1,
	}
}

func (s *Store) Salary(_ context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.salary, nil
}

func (s *Store) SetSalary(_ context.Context, m core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salary = m
	return nil
}

func (s *Store) Flag(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key], nil
}

func (s *Store) SetFlag(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = true
	return nil
}

func (s *Store) Categories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) PutCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID == c.ID {
			s.cats[i] = c
			return nil
		}
	}
	s.cats = append(s.cats, c)
	return nil
}

// DeleteCategory cascades: the affected transaction ids are computed
// first, then both collections are rewritten under the same lock so the
// caller observes the delete as atomic.
func (s *Store) DeleteCategory(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	kept := s.cats[:0]
	for _, c := range s.cats {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return 0, ledger.ErrNotFound
	}
	s.cats = kept

	var removed int64
	keptTx := s.txs[:0]
	for _, t := range s.txs {
		if t.CategoryID == id {
			removed++
			delete(s.mirrored, t.ID)
			continue
		}
		keptTx = append(keptTx, t)
	}
	s.txs = keptTx
	return removed, nil
}

func (s *Store) Transactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) Transaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

func (s *Store) AddTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextTxID
	s.nextTxID++
	s.txs = append(s.txs, t)
	return t.ID, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.txs {
		if t.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			delete(s.mirrored, id)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) ClearTransactions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = nil
	s.mirrored = make(map[int64]bool)
	return nil
}

func (s *Store) Envelopes(_ context.Context) ([]core.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Envelope(nil), s.envs...), nil
}

func (s *Store) PutEnvelope(_ context.Context, e core.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.envs {
		if s.envs[i].ID == e.ID {
			s.envs[i] = e
			return nil
		}
	}
	s.envs = append(s.envs, e)
	return nil
}

func (s *Store) DeleteEnvelope(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.envs {
		if e.ID == id {
			s.envs = append(s.envs[:i], s.envs[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) UnmirroredTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if s.mirrored[t.ID] {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkMirrored(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrored[id] = true
	return nil
}

func (s *Store) ReplaceAll(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salary = snap.Salary
	s.cats = append([]core.Category(nil), snap.Categories...)
	s.envs = append([]core.Envelope(nil), snap.Envelopes...)
	s.txs = nil
	s.mirrored = make(map[int64]bool)
	s.nextTxID = 1
	for _, t := range snap.Transactions {
		t.ID = s.nextTxID
		s.nextTxID++
		s.txs = append(s.txs, t)
	}
	return nil
}

func (s *Store) Close() error { return nil }
