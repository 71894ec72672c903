// Package backend selects and builds the ledger store from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"budget/internal/config"
	"budget/internal/ledger"
	"budget/internal/ledger/memory"
	"budget/internal/storage"
)

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

// Result holds the store and an optional cleanup to run at shutdown.
type Result struct {
	Store   ledger.Store
	Cleanup func() error
}

// Open builds the ledger store named by cfg.DataBackend.
func Open(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch Type(cfg.DataBackend) {
	case SQLite:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite store: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: store, Cleanup: store.Close}, nil

	case Memory:
		store := memory.New()
		logger.Info("Initialized memory backend")
		return &Result{Store: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}
}
