// Package backup mirrors recorded expenses into a Google spreadsheet.
// The sheet is an off-site copy for the user, never read back.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/config"
	"budget/internal/core"
)

// Writer appends one expense row to the backup destination.
type Writer interface {
	AppendExpense(ctx context.Context, t core.Transaction, categoryName string) error
}

type SheetsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ Writer = (*SheetsWriter)(nil)

// NewSheetsWriter builds the Sheets client from configuration using
// service account credentials.
func NewSheetsWriter(ctx context.Context, cfg *config.Config) (*SheetsWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing Google spreadsheet ID")
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets backup client ready",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	return &SheetsWriter{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     cfg.GoogleSheetName,
	}, nil
}

// loadCredentials reads service account JSON from config, falling back
// to the standard GOOGLE_APPLICATION_CREDENTIALS variable.
func loadCredentials(cfg *config.Config) ([]byte, error) {
	if cfg.GoogleServiceAccountJSON != "" {
		return []byte(cfg.GoogleServiceAccountJSON), nil
	}

	file := cfg.GoogleServiceAccountFile
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendExpense adds one row: date, category, amount in units, note.
func (w *SheetsWriter) AppendExpense(ctx context.Context, t core.Transaction, categoryName string) error {
	if w.svc == nil {
		return errors.New("sheets service not initialized")
	}

	units := float64(t.Amount.Cents) / 100.0
	rng := fmt.Sprintf("%s!A:D", w.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{{t.Date.String(), categoryName, units, t.Note}}}

	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", w.sheetName, err)
	}

	slog.InfoContext(ctx, "Mirrored expense to sheet",
		"transaction_id", t.ID,
		"sheet", w.sheetName,
		"amount_cents", t.Amount.Cents)
	return nil
}
