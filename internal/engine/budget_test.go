package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetStatus(t *testing.T) {
	tests := []struct {
		name          string
		budget        float64
		todayCost     float64
		day           int
		wantClass     BudgetClassification
		wantProjected float64
		wantRemaining float64
		wantPct       float64
		wantDaysLeft  int
	}{
		{
			name: "on track", budget: 300, todayCost: 10, day: 10,
			wantClass: BudgetOnTrack, wantProjected: 30, wantRemaining: 270, wantPct: 10, wantDaysLeft: 20,
		},
		{
			name: "slightly over is exceeded", budget: 300, todayCost: 105, day: 10,
			wantClass: BudgetExceeded, wantProjected: 315, wantRemaining: 0, wantPct: 100, wantDaysLeft: 20,
		},
		{
			name: "well over is over budget", budget: 300, todayCost: 200, day: 10,
			wantClass: BudgetOverBudget, wantProjected: 600, wantRemaining: 0, wantPct: 100, wantDaysLeft: 20,
		},
		{
			name: "exactly on budget", budget: 300, todayCost: 150, day: 15,
			wantClass: BudgetOnTrack, wantProjected: 300, wantRemaining: 0, wantPct: 100, wantDaysLeft: 15,
		},
		{
			name: "day zero guarded", budget: 300, todayCost: 50, day: 0,
			wantClass: BudgetOnTrack, wantProjected: 0, wantRemaining: 300, wantPct: 0, wantDaysLeft: 30,
		},
		{
			name: "last day", budget: 300, todayCost: 240, day: 30,
			wantClass: BudgetOnTrack, wantProjected: 240, wantRemaining: 60, wantPct: 80, wantDaysLeft: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewBudgetProjector(tt.budget).Status(tt.todayCost, tt.day)

			assert.Equal(t, tt.wantClass, got.Classification)
			assert.InDelta(t, tt.wantProjected, got.ProjectedMonthly, 1e-9)
			assert.InDelta(t, tt.wantRemaining, got.RemainingBudget, 1e-9)
			assert.InDelta(t, tt.wantPct, got.PercentageUsed, 1e-9)
			assert.Equal(t, tt.wantDaysLeft, got.DaysLeft)
			assert.InDelta(t, tt.budget/30, got.DailyBudget, 1e-9)
			assert.Equal(t, tt.todayCost, got.TodayCost)
		})
	}
}

func TestBudgetDefaults(t *testing.T) {
	tests := []struct {
		name   string
		budget float64
		want   float64
	}{
		{"zero means unset", 0, DefaultMonthlyBudget},
		{"positive kept", 120, 120},
		{"negative passed through", -50, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBudgetProjector(tt.budget).MonthlyBudget())
		})
	}

	b := NewBudgetProjector(0)
	b.SetMonthlyBudget(450)
	assert.Equal(t, 450.0, b.MonthlyBudget())
}

func TestDailyLimit(t *testing.T) {
	b := NewBudgetProjector(300)

	tests := []struct {
		name         string
		day          int
		costSoFar    float64
		wantSeverity Severity
		wantLimit    float64
		wantPrefix   string
	}{
		{"ok", 10, 100, SeverityOK, 10, "OK!"},
		{"caution", 10, 120, SeverityCaution, 9, "Careful!"},
		{"critical", 20, 260, SeverityCritical, 4, "Critical!"},
		{"overspent is critical", 20, 400, SeverityCritical, -10, "Critical!"},
		{"cycle ended", 30, 0, SeverityEnded, 0, "Billing cycle has ended."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, severity, _ := b.DailyLimit(tt.day, tt.costSoFar)
			assert.Equal(t, tt.wantSeverity, severity)
			assert.InDelta(t, tt.wantLimit, limit, 1e-9)
			assert.Contains(t, b.DailyLimitRecommendation(tt.day, tt.costSoFar), tt.wantPrefix)
		})
	}
}

func TestCycleStart(t *testing.T) {
	loc := time.FixedZone("EET", 2*3600)
	got := CycleStart(time.Date(2024, 12, 10, 15, 4, 5, 6, loc))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, loc), got)
}
