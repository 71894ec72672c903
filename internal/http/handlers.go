package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/portable"
	"budget/internal/services"
)

const maxBodyBytes = 1 << 20

type SalaryView struct {
	SalaryCents int64  `json:"salaryCents"`
	Formatted   string `json:"formatted"`
}

type CategoryView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BudgetCents int64  `json:"budgetCents"`
}

type TransactionView struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	CategoryID  string `json:"categoryId"`
	AmountCents int64  `json:"amountCents"`
	Note        string `json:"note,omitempty"`
}

type EnvelopeView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AmountCents     int64  `json:"amountCents"`
	TargetCents     int64  `json:"targetCents,omitempty"`
	ProgressPercent int    `json:"progressPercent"`
}

type DashboardCategory struct {
	CategoryView
	SpentCents         int64 `json:"spentCents"`
	UtilizationPercent int   `json:"utilizationPercent"`
}

type MonthFiguresView struct {
	Month                   int   `json:"month"`
	SpentCents              int64 `json:"spentCents"`
	TheoreticalSavingsCents int64 `json:"theoreticalSavingsCents"`
	SavingsAllocatedCents   int64 `json:"savingsAllocatedCents"`
}

type ProjectionView struct {
	Year                         int                `json:"year"`
	Months                       []MonthFiguresView `json:"months"`
	TotalSpentCents              int64              `json:"totalSpentCents"`
	TotalTheoreticalSavingsCents int64              `json:"totalTheoreticalSavingsCents"`
	SavingsAllocatedCents        int64              `json:"savingsAllocatedCents"`
}

func projectionView(p core.Projection) ProjectionView {
	months := make([]MonthFiguresView, 0, len(p.Months))
	for _, m := range p.Months {
		months = append(months, MonthFiguresView{
			Month:                   m.Month,
			SpentCents:              m.Spent.Cents,
			TheoreticalSavingsCents: m.TheoreticalSavings.Cents,
			SavingsAllocatedCents:   m.SavingsAllocated.Cents,
		})
	}
	return ProjectionView{
		Year:                         p.Year,
		Months:                       months,
		TotalSpentCents:              p.TotalSpent.Cents,
		TotalTheoreticalSavingsCents: p.TotalTheoreticalSavings.Cents,
		SavingsAllocatedCents:        p.SavingsAllocated.Cents,
	}
}

// DashboardView is the aggregated state for one window: totals,
// per-category utilization and the advisory tips.
type DashboardView struct {
	Year                    int                 `json:"year,omitempty"`
	Month                   int                 `json:"month,omitempty"`
	SalaryCents             int64               `json:"salaryCents"`
	TotalSpentCents         int64               `json:"totalSpentCents"`
	TheoreticalSavingsCents int64               `json:"theoreticalSavingsCents"`
	SavingsAllocatedCents   int64               `json:"savingsAllocatedCents"`
	LeftToAllocateCents     int64               `json:"leftToAllocateCents"`
	Categories              []DashboardCategory `json:"categories"`
	Envelopes               []EnvelopeView      `json:"envelopes"`
	Tips                    []core.Tip          `json:"tips"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// writeError maps domain errors onto HTTP statuses: validation failures
// are 400, missing records 404, admission-control rejections 409.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrOverBudget),
		errors.Is(err, services.ErrSalaryBelowBudgets),
		errors.Is(err, services.ErrNoCategories),
		errors.Is(err, services.ErrExceedsAllocatable):
		status = http.StatusConflict
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, portable.ErrMalformed):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "url", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseWindow reads the optional year and month query parameters. No
// year means the whole history; a month without a year is an error.
func parseWindow(r *http.Request) (core.Window, error) {
	var w core.Window
	q := r.URL.Query()

	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 1 {
			return core.Window{}, fmt.Errorf("%w: bad year %q", core.ErrInvalidDate, y)
		}
		w.Year = year
	}
	if m := q.Get("month"); m != "" {
		if w.Year == 0 {
			return core.Window{}, fmt.Errorf("%w: month requires a year", core.ErrInvalidDate)
		}
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			return core.Window{}, fmt.Errorf("%w: bad month %q", core.ErrInvalidDate, m)
		}
		w.Month = month
	}
	return w, nil
}

func (s *Server) handleGetSalary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SalaryView{
		SalaryCents: snap.Salary.Cents,
		Formatted:   core.FormatAmount(snap.Salary),
	})
}

func (s *Server) handleSetSalary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SalaryCents int64 `json:"salaryCents"`
		Force       bool  `json:"force"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.svc.SetSalary(r.Context(), core.Money{Cents: req.SalaryCents}, req.Force); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusOK, SalaryView{
		SalaryCents: req.SalaryCents,
		Formatted:   core.FormatAmount(core.Money{Cents: req.SalaryCents}),
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]CategoryView, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		views = append(views, CategoryView{ID: c.ID, Name: c.Name, BudgetCents: c.Budget.Cents})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePutCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		BudgetCents int64  `json:"budgetCents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	saved, err := s.svc.PutCategory(r.Context(), core.Category{
		ID:     req.ID,
		Name:   req.Name,
		Budget: core.Money{Cents: req.BudgetCents},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()

	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, CategoryView{ID: saved.ID, Name: saved.Name, BudgetCents: saved.Budget.Cents})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.DeleteCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusOK, map[string]int64{"removedTransactions": removed})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]TransactionView, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		if !window.Contains(t.Date) {
			continue
		}
		views = append(views, TransactionView{
			ID:          t.ID,
			Date:        t.Date.String(),
			CategoryID:  t.CategoryID,
			AmountCents: t.Amount.Cents,
			Note:        t.Note,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		CategoryID  string `json:"categoryId"`
		AmountCents int64  `json:"amountCents"`
		Note        string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.svc.AddTransaction(r.Context(), core.Transaction{
		Date:       date,
		CategoryID: req.CategoryID,
		Amount:     core.Money{Cents: req.AmountCents},
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusCreated, TransactionView{
		ID:          saved.ID,
		Date:        saved.Date.String(),
		CategoryID:  saved.CategoryID,
		AmountCents: saved.Amount.Cents,
		Note:        saved.Note,
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad transaction id"})
		return
	}
	if err := s.svc.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearTransactions(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelopeViews(snap.Envelopes))
}

func (s *Server) handleUpsertEnvelope(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		AmountCents int64  `json:"amountCents"`
		TargetCents int64  `json:"targetCents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	saved, err := s.svc.UpsertEnvelope(r.Context(), core.Envelope{
		Name:   req.Name,
		Amount: core.Money{Cents: req.AmountCents},
		Target: core.Money{Cents: req.TargetCents},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	writeJSON(w, http.StatusOK, envelopeView(saved))
}

func (s *Server) handleDeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteEnvelope(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := fmt.Sprintf("dash/%d-%d", window.Year, window.Month)
	if view, ok := s.dashboardCache.Get(key); ok {
		writeJSON(w, http.StatusOK, view)
		return
	}

	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	spent := snap.SpentByCategory(window)
	cats := make([]DashboardCategory, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		cats = append(cats, DashboardCategory{
			CategoryView:       CategoryView{ID: c.ID, Name: c.Name, BudgetCents: c.Budget.Cents},
			SpentCents:         spent[c.ID].Cents,
			UtilizationPercent: snap.CategoryUtilization(c.ID, window),
		})
	}

	view := DashboardView{
		Year:                    window.Year,
		Month:                   window.Month,
		SalaryCents:             snap.Salary.Cents,
		TotalSpentCents:         snap.TotalSpent(window).Cents,
		TheoreticalSavingsCents: snap.TheoreticalSavings(window).Cents,
		SavingsAllocatedCents:   snap.TotalSavingsAllocated().Cents,
		LeftToAllocateCents:     snap.LeftToAllocate(window).Cents,
		Categories:              cats,
		Envelopes:               envelopeViews(snap.Envelopes),
		Tips:                    snap.Compass(window, time.Now()),
	}

	s.dashboardCache.Set(key, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad year"})
			return
		}
		year = parsed
	}

	key := fmt.Sprintf("proj/%d", year)
	if view, ok := s.projectionCache.Get(key); ok {
		writeJSON(w, http.StatusOK, view)
		return
	}

	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := projectionView(snap.AnnualProjection(year))
	s.projectionCache.Set(key, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := doc.Encode()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="budget-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read request body"})
		return
	}
	if err := s.svc.Import(r.Context(), data); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func envelopeView(e core.Envelope) EnvelopeView {
	return EnvelopeView{
		ID:              e.ID,
		Name:            e.Name,
		AmountCents:     e.Amount.Cents,
		TargetCents:     e.Target.Cents,
		ProgressPercent: core.RatioPercent(e.Amount.Cents, e.Target.Cents),
	}
}

func envelopeViews(envelopes []core.Envelope) []EnvelopeView {
	views := make([]EnvelopeView, 0, len(envelopes))
	for _, e := range envelopes {
		views = append(views, envelopeView(e))
	}
	return views
}
