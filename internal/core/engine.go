package core

// Snapshot is a fully materialized copy of the four ledger collections.
// The engine only ever computes over a snapshot fetched immediately
// before the computation; derived figures are never stored, so they
// cannot drift from source data.
type Snapshot struct {
	Salary       Money
	Categories   []Category
	Transactions []Transaction
	Envelopes    []Envelope
}

// MonthFigures is one row of an annual projection.
type MonthFigures struct {
	Month              int
	Spent              Money
	TheoreticalSavings Money
	SavingsAllocated   Money
}

// Projection is the "if this continues" view of a year: twelve month rows
// plus totals. SavingsAllocated repeats the current global envelope total
// for every month: envelopes carry no date dimension, so the projection
// is an extrapolation, not a historical reconstruction.
type Projection struct {
	Year                    int
	Months                  []MonthFigures
	TotalSpent              Money
	TotalTheoreticalSavings Money
	SavingsAllocated        Money
}

// SumCategoryBudgets sums all category budgets, unconditionally.
func (s *Snapshot) SumCategoryBudgets() Money {
	var total Money
	for _, c := range s.Categories {
		total = total.Add(c.Budget)
	}
	return total
}

// TotalSpent sums transaction amounts inside the window.
func (s *Snapshot) TotalSpent(w Window) Money {
	var total Money
	for _, t := range s.Transactions {
		if w.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// SpentByCategory groups windowed transaction amounts by category id.
// Categories with no matching transactions are absent from the result.
func (s *Snapshot) SpentByCategory(w Window) map[string]Money {
	spent := make(map[string]Money)
	for _, t := range s.Transactions {
		if w.Contains(t.Date) {
			spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		}
	}
	return spent
}

// TotalSavingsAllocated sums envelope amounts. Always global: envelopes
// have no date dimension, so no window applies.
func (s *Snapshot) TotalSavingsAllocated() Money {
	var total Money
	for _, e := range s.Envelopes {
		total = total.Add(e.Amount)
	}
	return total
}

// TheoreticalSavings is salary minus windowed spending, floored at zero.
// Overspending is treated as fully consumed slack, not as debt.
func (s *Snapshot) TheoreticalSavings(w Window) Money {
	return s.Salary.Sub(s.TotalSpent(w)).FloorZero()
}

// LeftToAllocate is the part of theoretical savings not yet assigned to
// any envelope, floored at zero independently of the savings floor.
func (s *Snapshot) LeftToAllocate(w Window) Money {
	return s.TheoreticalSavings(w).Sub(s.TotalSavingsAllocated()).FloorZero()
}

// CategoryUtilization is the spent-to-budget percentage of one category,
// capped at 100 for display. A zero budget yields 0, never an error;
// callers needing the true overage compute spent minus budget themselves.
func (s *Snapshot) CategoryUtilization(categoryID string, w Window) int {
	var budget Money
	for _, c := range s.Categories {
		if c.ID == categoryID {
			budget = c.Budget
			break
		}
	}
	if budget.Cents <= 0 {
		return 0
	}
	spent := s.SpentByCategory(w)[categoryID]
	pct := RatioPercent(spent.Cents, budget.Cents)
	if pct > 100 {
		return 100
	}
	return pct
}

// AnnualProjection builds the twelve-month view for a year.
func (s *Snapshot) AnnualProjection(year int) Projection {
	allocated := s.TotalSavingsAllocated()
	p := Projection{
		Year:             year,
		Months:           make([]MonthFigures, 0, 12),
		SavingsAllocated: allocated,
	}
	for month := 1; month <= 12; month++ {
		w := Window{Year: year, Month: month}
		spent := s.TotalSpent(w)
		savings := s.TheoreticalSavings(w)
		p.Months = append(p.Months, MonthFigures{
			Month:              month,
			Spent:              spent,
			TheoreticalSavings: savings,
			SavingsAllocated:   allocated,
		})
		p.TotalSpent = p.TotalSpent.Add(spent)
		p.TotalTheoreticalSavings = p.TotalTheoreticalSavings.Add(savings)
	}
	return p
}
