package core

import (
	"fmt"
	"time"
)

// TipLevel classifies a compass tip.
type TipLevel string

const (
	TipGood TipLevel = "good"
	TipWarn TipLevel = "warn"
	TipBad  TipLevel = "bad"
)

// Tip is one advisory line. Tips never block or mutate anything.
type Tip struct {
	Level TipLevel `json:"level"`
	Text  string   `json:"text"`
}

// paceBand is the tolerance, in percentage points, between spend pace and
// calendar pace before a tip flips from "on pace".
const paceBand = 10

// nearGoalNum/nearGoalDen encode the 80% near-goal threshold in integer
// arithmetic.
const (
	nearGoalNum = 4
	nearGoalDen = 5
)

// Compass evaluates the advisory rules against the snapshot for the given
// window, ordered: pace, allocation, near-goal envelopes, over-budget
// guard. The caller passes "today" so the pace rule can compare spend
// progress with calendar progress.
func (s *Snapshot) Compass(w Window, today time.Time) []Tip {
	tips := make([]Tip, 0, 4)

	spent := s.TotalSpent(w)
	daysInMonth := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, today.Location()).Day()
	spendRatio := RatioPercent(spent.Cents, s.Salary.Cents)
	timeRatio := RatioPercent(int64(today.Day()), int64(daysInMonth))

	switch {
	case spendRatio > timeRatio+paceBand:
		tips = append(tips, Tip{TipBad, fmt.Sprintf(
			"Spending pace is ahead of the calendar: %d%% of salary gone at %d%% of the month.",
			spendRatio, timeRatio)})
	case spendRatio < timeRatio-paceBand:
		tips = append(tips, Tip{TipGood, fmt.Sprintf(
			"Ahead of plan: only %d%% of salary spent at %d%% of the month.",
			spendRatio, timeRatio)})
	default:
		tips = append(tips, Tip{TipWarn, fmt.Sprintf(
			"On pace (%d%% spent, %d%% of the month); watch for large known expenses still to come.",
			spendRatio, timeRatio)})
	}

	if left := s.LeftToAllocate(w); left.Cents > 0 {
		tips = append(tips, Tip{TipGood, fmt.Sprintf(
			"%s not yet assigned to any envelope. Consider safety, leisure or projects.",
			FormatAmount(left))})
	} else {
		tips = append(tips, Tip{TipWarn,
			"Nothing left to allocate: any further spending now reduces theoretical savings directly."})
	}

	for _, e := range s.Envelopes {
		if e.Target.Cents > 0 && e.Amount.Cents*nearGoalDen >= e.Target.Cents*nearGoalNum {
			tips = append(tips, Tip{TipGood, fmt.Sprintf(
				"%s is close to its goal (%s of %s).",
				e.Name, FormatAmount(e.Amount), FormatAmount(e.Target))})
		}
	}

	if s.Salary.Cents > 0 {
		if budgets := s.SumCategoryBudgets(); budgets.Cents > s.Salary.Cents {
			tips = append(tips, Tip{TipBad, fmt.Sprintf(
				"Category budgets exceed salary by %s, a structural risk regardless of this month's spending.",
				FormatAmount(budgets.Sub(s.Salary)))})
		}
	}

	return tips
}
