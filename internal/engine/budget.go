package engine

import (
	"fmt"
	"time"
)

// BillingCycleDays is the fixed length of a billing month
const BillingCycleDays = 30

// DefaultMonthlyBudget is used when the household has not set one
const DefaultMonthlyBudget = 300.0

// CycleStart is midnight on the first of t's month, where the cycle that
// dayOfMonth counts from begins
func CycleStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Severity grades the daily spending limit
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityCaution  Severity = "caution"
	SeverityOK       Severity = "ok"
	SeverityEnded    Severity = "ended"
)

// BudgetProjector projects month-end spend against a monthly budget
type BudgetProjector struct {
	monthlyBudget float64
}

// NewBudgetProjector creates a projector. An unset (zero) budget falls back to
// DefaultMonthlyBudget; any other value is kept as given.
func NewBudgetProjector(monthlyBudget float64) *BudgetProjector {
	if monthlyBudget == 0 {
		monthlyBudget = DefaultMonthlyBudget
	}
	return &BudgetProjector{monthlyBudget: monthlyBudget}
}

// MonthlyBudget returns the configured budget
func (b *BudgetProjector) MonthlyBudget() float64 {
	return b.monthlyBudget
}

// SetMonthlyBudget changes the budget. Values are not validated.
func (b *BudgetProjector) SetMonthlyBudget(budget float64) {
	b.monthlyBudget = budget
}

// Status projects todayCost, the spend accrued by dayOfMonth, to the end of
// the cycle
func (b *BudgetProjector) Status(todayCost float64, dayOfMonth int) BudgetStatus {
	projected := 0.0
	if dayOfMonth > 0 {
		projected = todayCost * BillingCycleDays / float64(dayOfMonth)
	}
	// Classification uses the unclamped remainder
	remaining := b.monthlyBudget - projected

	classification := BudgetOnTrack
	switch {
	case projected > b.monthlyBudget*1.1:
		classification = BudgetOverBudget
	case remaining < 0:
		classification = BudgetExceeded
	}

	pct := 0.0
	if b.monthlyBudget != 0 {
		pct = projected / b.monthlyBudget * 100
	}

	return BudgetStatus{
		Classification:   classification,
		DailyBudget:      b.monthlyBudget / BillingCycleDays,
		TodayCost:        todayCost,
		ProjectedMonthly: projected,
		RemainingBudget:  max(0, remaining),
		DaysLeft:         BillingCycleDays - dayOfMonth,
		PercentageUsed:   max(0, min(100, pct)),
	}
}

// DailyLimit is how much can still be spent per remaining day of the cycle.
// ok is false once the cycle has ended.
func (b *BudgetProjector) DailyLimit(dayOfMonth int, costSoFar float64) (limit float64, severity Severity, ok bool) {
	daysLeft := BillingCycleDays - dayOfMonth
	if daysLeft <= 0 {
		return 0, SeverityEnded, false
	}

	limit = (b.monthlyBudget - costSoFar) / float64(daysLeft)
	switch {
	case limit < 5:
		severity = SeverityCritical
	case limit < 10:
		severity = SeverityCaution
	default:
		severity = SeverityOK
	}
	return limit, severity, true
}

// DailyLimitRecommendation renders DailyLimit as advice text
func (b *BudgetProjector) DailyLimitRecommendation(dayOfMonth int, costSoFar float64) string {
	limit, severity, ok := b.DailyLimit(dayOfMonth, costSoFar)
	if !ok {
		return "Billing cycle has ended."
	}

	switch severity {
	case SeverityCritical:
		return fmt.Sprintf("Critical! Limit %.2f/day. Cut spending sharply!", limit)
	case SeverityCaution:
		return fmt.Sprintf("Careful! Limit %.2f/day. Reduce consumption.", limit)
	default:
		return fmt.Sprintf("OK! Limit %.2f/day. Keep to your routine.", limit)
	}
}
