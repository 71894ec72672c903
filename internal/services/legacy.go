package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"budget/internal/core"
	"budget/internal/ledger"
)

// The legacy store was a flat string-to-string map: salary as a bare
// number, categories and transactions as JSON arrays serialized into
// single values. A dump of it is a JSON object with those three keys.
type legacyDump map[string]json.RawMessage

type legacyCategory struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Budget float64 `json:"budget"`
	// The legacy records carried a stored "spent" field; it was always
	// recomputed from transactions and is dropped on migration.
	Spent float64 `json:"spent"`
}

type legacyTransaction struct {
	Date   string  `json:"date"`
	CatID  string  `json:"catId"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// MigrateLegacy imports a legacy flat key-value dump into the structured
// store, at most once: the migrated flag makes redundant calls no-ops.
// A missing dump file just sets the flag; there is nothing to carry over.
func (s *BudgetService) MigrateLegacy(ctx context.Context, path string) error {
	done, err := s.store.Flag(ctx, ledger.KeyMigrated)
	if err != nil {
		return fmt.Errorf("read migrated flag: %w", err)
	}
	if done {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.InfoContext(ctx, "No legacy dump found, marking migration done", "path", path)
		return s.store.SetFlag(ctx, ledger.KeyMigrated)
	}
	if err != nil {
		return fmt.Errorf("read legacy dump: %w", err)
	}

	var dump legacyDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return fmt.Errorf("parse legacy dump: %w", err)
	}

	if raw, ok := dump["salary"]; ok {
		salary, err := legacyAmount(raw)
		if err != nil {
			return fmt.Errorf("legacy salary: %w", err)
		}
		if err := s.store.SetSalary(ctx, salary); err != nil {
			return fmt.Errorf("migrate salary: %w", err)
		}
	}

	var migratedCats, migratedTxs int
	if raw, ok := dump["cats"]; ok {
		var cats []legacyCategory
		if err := legacyArray(raw, &cats); err != nil {
			return fmt.Errorf("legacy cats: %w", err)
		}
		for _, lc := range cats {
			c := core.Category{ID: lc.ID, Name: lc.Name, Budget: unitsToMoney(lc.Budget)}
			if c.ID == "" || c.Validate() != nil {
				slog.WarnContext(ctx, "Skipping malformed legacy category", "id", lc.ID, "name", lc.Name)
				continue
			}
			if err := s.store.PutCategory(ctx, c); err != nil {
				return fmt.Errorf("migrate category %s: %w", c.ID, err)
			}
			migratedCats++
		}
	}

	if raw, ok := dump["tx"]; ok {
		var txs []legacyTransaction
		if err := legacyArray(raw, &txs); err != nil {
			return fmt.Errorf("legacy tx: %w", err)
		}
		for _, lt := range txs {
			date, err := core.ParseDate(lt.Date)
			if err != nil {
				slog.WarnContext(ctx, "Skipping legacy transaction with bad date", "date", lt.Date)
				continue
			}
			t := core.Transaction{
				Date:       date,
				CategoryID: lt.CatID,
				Amount:     unitsToMoney(lt.Amount),
				Note:       lt.Note,
			}
			if t.Validate() != nil {
				slog.WarnContext(ctx, "Skipping malformed legacy transaction", "category_id", lt.CatID)
				continue
			}
			// Legacy ids are dropped; the store assigns fresh ones.
			if _, err := s.store.AddTransaction(ctx, t); err != nil {
				return fmt.Errorf("migrate transaction: %w", err)
			}
			migratedTxs++
		}
	}

	if err := s.store.SetFlag(ctx, ledger.KeyMigrated); err != nil {
		return fmt.Errorf("set migrated flag: %w", err)
	}
	slog.InfoContext(ctx, "Legacy migration complete", "categories", migratedCats, "transactions", migratedTxs)
	return nil
}

// legacyAmount reads a number that may be serialized as a bare number or
// as a quoted string, both of which the flat store produced.
func legacyAmount(raw json.RawMessage) (core.Money, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return unitsToMoney(f), nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return core.Money{}, errors.New("neither number nor string")
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return core.Money{}, err
	}
	return unitsToMoney(f), nil
}

// legacyArray reads an array that may be stored directly or double-encoded
// as a JSON string holding the array.
func legacyArray(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err == nil {
		return nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return errors.New("neither array nor string")
	}
	return json.Unmarshal([]byte(str), out)
}

func unitsToMoney(units float64) core.Money {
	return core.Money{Cents: int64(math.Round(units * 100))}
}
