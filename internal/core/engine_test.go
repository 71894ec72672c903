package core

import "testing"

func testSnapshot() *Snapshot {
	return &Snapshot{
		Salary: Money{Cents: 10000000}, // 100 000
		Categories: []Category{
			{ID: "food", Name: "Food", Budget: Money{Cents: 5000000}},
			{ID: "travel", Name: "Travel", Budget: Money{Cents: 3000000}},
		},
		Transactions: []Transaction{
			{ID: 1, Date: NewDate(2025, 3, 5), CategoryID: "food", Amount: Money{Cents: 2000000}},
			{ID: 2, Date: NewDate(2025, 3, 20), CategoryID: "travel", Amount: Money{Cents: 500000}},
			{ID: 3, Date: NewDate(2025, 4, 1), CategoryID: "food", Amount: Money{Cents: 100000}},
		},
		Envelopes: []Envelope{
			{ID: "s1", Name: "Safety", Amount: Money{Cents: 1000000}, Target: Money{Cents: 5000000}},
			{ID: "s2", Name: "Trip", Amount: Money{Cents: 850000}, Target: Money{Cents: 1000000}},
		},
	}
}

func TestSumCategoryBudgets(t *testing.T) {
	s := testSnapshot()
	if got := s.SumCategoryBudgets(); got.Cents != 8000000 {
		t.Fatalf("SumCategoryBudgets = %d, want 8000000", got.Cents)
	}
}

func TestTotalSpentWindows(t *testing.T) {
	s := testSnapshot()
	cases := []struct {
		w     Window
		cents int64
	}{
		{Window{}, 2600000},
		{Window{Year: 2025}, 2600000},
		{Window{Year: 2025, Month: 3}, 2500000},
		{Window{Year: 2025, Month: 4}, 100000},
		{Window{Year: 2024}, 0},
	}
	for i, tc := range cases {
		if got := s.TotalSpent(tc.w); got.Cents != tc.cents {
			t.Fatalf("case %d: TotalSpent = %d, want %d", i, got.Cents, tc.cents)
		}
	}
}

// The sum of per-category spending must equal total spending exactly, for
// any window: no double counting, no drift.
func TestSpentByCategoryMatchesTotal(t *testing.T) {
	s := testSnapshot()
	for _, w := range []Window{{}, {Year: 2025}, {Year: 2025, Month: 3}, {Year: 2024}} {
		var sum Money
		for _, amt := range s.SpentByCategory(w) {
			sum = sum.Add(amt)
		}
		if total := s.TotalSpent(w); sum.Cents != total.Cents {
			t.Fatalf("window %+v: by-category sum %d != total %d", w, sum.Cents, total.Cents)
		}
	}
}

// Scenario from the household ledger: salary 100 000, Food budget 50 000,
// one 20 000 expense.
func TestBasicScenario(t *testing.T) {
	s := &Snapshot{
		Salary:     Money{Cents: 10000000},
		Categories: []Category{{ID: "food", Name: "Food", Budget: Money{Cents: 5000000}}},
		Transactions: []Transaction{
			{ID: 1, Date: NewDate(2025, 6, 10), CategoryID: "food", Amount: Money{Cents: 2000000}},
		},
	}
	if got := s.SpentByCategory(Window{})["food"]; got.Cents != 2000000 {
		t.Fatalf("spent by category = %d, want 2000000", got.Cents)
	}
	if got := s.TotalSpent(Window{}); got.Cents != 2000000 {
		t.Fatalf("total spent = %d, want 2000000", got.Cents)
	}
	if got := s.TheoreticalSavings(Window{}); got.Cents != 8000000 {
		t.Fatalf("theoretical savings = %d, want 8000000", got.Cents)
	}
}

func TestTheoreticalSavingsFloorsAtZero(t *testing.T) {
	s := &Snapshot{
		Salary:     Money{Cents: 100000},
		Categories: []Category{{ID: "c", Name: "C", Budget: Money{Cents: 100000}}},
		Transactions: []Transaction{
			{ID: 1, Date: NewDate(2025, 1, 2), CategoryID: "c", Amount: Money{Cents: 250000}},
		},
	}
	if got := s.TheoreticalSavings(Window{}); got.Cents != 0 {
		t.Fatalf("overspent savings = %d, want 0", got.Cents)
	}
}

func TestLeftToAllocate(t *testing.T) {
	s := testSnapshot()
	w := Window{Year: 2025, Month: 3}
	// savings = 100 000 - 25 000 = 75 000; allocated = 18 500
	if got := s.LeftToAllocate(w); got.Cents != 5650000 {
		t.Fatalf("LeftToAllocate = %d, want 5650000", got.Cents)
	}

	// With zero theoretical savings, left-to-allocate is zero regardless
	// of existing envelopes: the two floors are independent.
	s.Salary = Money{}
	if got := s.LeftToAllocate(w); got.Cents != 0 {
		t.Fatalf("LeftToAllocate with zero salary = %d, want 0", got.Cents)
	}
}

func TestCategoryUtilization(t *testing.T) {
	s := testSnapshot()
	w := Window{Year: 2025, Month: 3}
	cases := []struct {
		id  string
		pct int
	}{
		{"food", 40},   // 20 000 of 50 000
		{"travel", 17}, // 5 000 of 30 000, rounded
		{"missing", 0},
	}
	for i, tc := range cases {
		if got := s.CategoryUtilization(tc.id, w); got != tc.pct {
			t.Fatalf("case %d: utilization(%s) = %d, want %d", i, tc.id, got, tc.pct)
		}
	}

	// Overspent categories cap at 100 for display.
	s.Categories[0].Budget = Money{Cents: 1000000}
	if got := s.CategoryUtilization("food", w); got != 100 {
		t.Fatalf("overspent utilization = %d, want 100", got)
	}

	// Zero budget never divides.
	s.Categories[0].Budget = Money{}
	if got := s.CategoryUtilization("food", w); got != 0 {
		t.Fatalf("zero-budget utilization = %d, want 0", got)
	}
}

func TestAnnualProjection(t *testing.T) {
	s := testSnapshot()
	p := s.AnnualProjection(2025)
	if len(p.Months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(p.Months))
	}
	if p.Months[2].Spent.Cents != 2500000 {
		t.Fatalf("march spent = %d, want 2500000", p.Months[2].Spent.Cents)
	}
	if p.Months[3].Spent.Cents != 100000 {
		t.Fatalf("april spent = %d, want 100000", p.Months[3].Spent.Cents)
	}
	if p.TotalSpent.Cents != 2600000 {
		t.Fatalf("total spent = %d, want 2600000", p.TotalSpent.Cents)
	}
	// Envelope totals are not historized: every month repeats the current
	// global allocation.
	for i, m := range p.Months {
		if m.SavingsAllocated.Cents != 1850000 {
			t.Fatalf("month %d allocated = %d, want 1850000", i+1, m.SavingsAllocated.Cents)
		}
	}
	// Empty months still get full theoretical savings.
	if p.Months[0].TheoreticalSavings.Cents != 10000000 {
		t.Fatalf("january savings = %d, want 10000000", p.Months[0].TheoreticalSavings.Cents)
	}
}
