// Package advisor combines the engine components into one report and guards
// them for use from several goroutines (MQTT ingestion, HTTP handlers).
package advisor

import (
	"sync"
	"time"

	"github.com/awaistahir/smart-save/internal/engine"
)

// Settings is the household configuration the advisor is built from
type Settings struct {
	Tariff        engine.TariffPlan        `json:"tariff"`
	Level         engine.OptimizationLevel `json:"level"`
	MonthlyBudget float64                  `json:"monthly_budget"`
	AutoLevel     bool                     `json:"auto_level"`
}

// DefaultSettings mirrors the engine defaults
func DefaultSettings() Settings {
	return Settings{
		Tariff:        engine.DefaultTariffPlan(),
		Level:         engine.LevelBalanced,
		MonthlyBudget: engine.DefaultMonthlyBudget,
		AutoLevel:     true,
	}
}

// Input is the per-report context supplied by the caller. Zero values mean
// "not known": the advisor falls back to its own window or the clock.
type Input struct {
	CurrentPower        *float64         `json:"current_power,omitempty"`
	DailyConsumptionKWh float64          `json:"daily_consumption_kwh,omitempty"`
	CostSoFar           *float64         `json:"cost_so_far,omitempty"`
	DayOfMonth          int              `json:"day_of_month,omitempty"`
	Weather             *engine.Weather  `json:"weather,omitempty"`
	TimeOfDay           engine.TimeOfDay `json:"time_of_day,omitempty"`
	DeviceMix           engine.DeviceMix `json:"device_mix,omitempty"`
	Now                 time.Time        `json:"now"`
}

// Report is everything the household sees in one refresh
type Report struct {
	GeneratedAt         time.Time                `json:"generated_at"`
	Price               float64                  `json:"price"`
	Period              engine.Period            `json:"period"`
	CurrentPower        float64                  `json:"current_power"`
	DailyConsumptionKWh float64                  `json:"daily_consumption_kwh"`
	EstimatedDailyCost  float64                  `json:"estimated_daily_cost"`
	Tips                []engine.Tip             `json:"tips"`
	Score               engine.ScoreResult       `json:"score"`
	Savings             engine.Savings           `json:"savings"`
	Budget              engine.BudgetStatus      `json:"budget"`
	DailyLimitAdvice    string                   `json:"daily_limit_advice"`
	SpendPercentage     float64                  `json:"spend_percentage"`
	Level               engine.OptimizationLevel `json:"level"`
	AutoLevel           bool                     `json:"auto_level"`
}

// Advisor owns one of each engine component. All methods are safe for
// concurrent use.
type Advisor struct {
	mu        sync.Mutex
	tariff    *engine.TariffCalculator
	estimator *engine.RollingPowerEstimator
	optimizer *engine.Optimizer
	budget    *engine.BudgetProjector
	autoLevel bool
	now       func() time.Time
}

// New creates an advisor from settings
func New(s Settings) *Advisor {
	return &Advisor{
		tariff:    engine.NewTariffCalculator(s.Tariff),
		estimator: engine.NewRollingPowerEstimator(),
		optimizer: engine.NewOptimizer(s.Level),
		budget:    engine.NewBudgetProjector(s.MonthlyBudget),
		autoLevel: s.AutoLevel,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (a *Advisor) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
	a.tariff.SetClock(now)
}

// Settings returns the current configuration
func (a *Advisor) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Settings{
		Tariff:        a.tariff.Plan(),
		Level:         a.optimizer.Level(),
		MonthlyBudget: a.budget.MonthlyBudget(),
		AutoLevel:     a.autoLevel,
	}
}

// SetTariff replaces the tariff plan
func (a *Advisor) SetTariff(plan engine.TariffPlan) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tariff.SetPlan(plan)
}

// PriceAt is the unit price per kWh in force at t
func (a *Advisor) PriceAt(t time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	price, _ := a.tariff.CurrentAt(t)
	return price
}

// SetPrices changes tariff prices without moving the day window
func (a *Advisor) SetPrices(dayPrice, nightPrice float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tariff.SetPrices(dayPrice, nightPrice)
}

// SetLevel fixes the optimization level and turns auto-level off
func (a *Advisor) SetLevel(level engine.OptimizationLevel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.optimizer.SetLevel(level)
	a.autoLevel = false
}

// SetAutoLevel toggles deriving the level from the budget projection
func (a *Advisor) SetAutoLevel(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoLevel = on
}

// SetMonthlyBudget changes the budget
func (a *Advisor) SetMonthlyBudget(budget float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budget.SetMonthlyBudget(budget)
}

// Record adds a power sample in watts. Invalid readings are dropped.
func (a *Advisor) Record(watts float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimator.Record(watts)
}

// RecordValue adds a loosely typed power sample. Invalid readings are dropped.
func (a *Advisor) RecordValue(v any) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimator.RecordValue(v)
}

// Seed replays previously saved samples, oldest first
func (a *Advisor) Seed(samples []float64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range samples {
		if a.estimator.Record(s) {
			n++
		}
	}
	return n
}

// Estimate is the rolling window summary
type Estimate struct {
	Samples     int     `json:"samples"`
	AverageW    float64 `json:"average_w"`
	LatestW     float64 `json:"latest_w"`
	DailyKWh    float64 `json:"daily_kwh"`
	DailyCost   float64 `json:"daily_cost"`
	Price       float64 `json:"price"`
	PricePeriod string  `json:"period"`
}

// Estimate summarises the rolling window and prices it at the current rate
func (a *Advisor) Estimate() Estimate {
	a.mu.Lock()
	defer a.mu.Unlock()

	latest, _ := a.estimator.Latest()
	avg := a.estimator.Average()
	price, period := a.tariff.Current()

	return Estimate{
		Samples:     a.estimator.Len(),
		AverageW:    avg,
		LatestW:     latest,
		DailyKWh:    a.estimator.EstimateDailyKWh(),
		DailyCost:   a.tariff.Cost(avg, 24),
		Price:       price,
		PricePeriod: string(period),
	}
}

// Score rates the given readings with the engine's score bands
func (a *Advisor) Score(currentPower, dailyKWh float64) engine.ScoreResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.optimizer.Score(currentPower, dailyKWh)
}

// BudgetStatus projects cost accrued by dayOfMonth
func (a *Advisor) BudgetStatus(cost float64, dayOfMonth int) (engine.BudgetStatus, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.budget.Status(cost, dayOfMonth), a.budget.DailyLimitRecommendation(dayOfMonth, cost)
}

// Report builds a full advisory report from the rolling window and in
func (a *Advisor) Report(in Input) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := in.Now
	if now.IsZero() {
		now = a.now()
	}
	price, period := a.tariff.CurrentAt(now)

	current, _ := a.estimator.Latest()
	if in.CurrentPower != nil {
		current = *in.CurrentPower
	}

	daily := in.DailyConsumptionKWh
	if daily <= 0 {
		daily = a.estimator.EstimateDailyKWh()
	}
	dailyCost := daily * price

	day := in.DayOfMonth
	if day <= 0 {
		day = now.Day()
	}
	costSoFar := dailyCost * float64(day)
	if in.CostSoFar != nil {
		costSoFar = *in.CostSoFar
	}

	pct := engine.ProjectedSpendPercentage(current, price, day, a.budget.MonthlyBudget())
	if a.autoLevel {
		a.optimizer.SetLevel(engine.LevelForPercentage(pct))
	}

	tod := in.TimeOfDay
	if tod == "" {
		tod = engine.TimeOfDayAt(now)
	}

	tips := a.optimizer.Analyze(engine.AnalysisInput{
		CurrentPower:        current,
		DailyConsumptionKWh: daily,
		Weather:             in.Weather,
		TimeOfDay:           tod,
		DeviceMix:           in.DeviceMix,
	})

	return Report{
		GeneratedAt:         now,
		Price:               price,
		Period:              period,
		CurrentPower:        current,
		DailyConsumptionKWh: daily,
		EstimatedDailyCost:  dailyCost,
		Tips:                tips,
		Score:               a.optimizer.Score(current, daily),
		Savings:             engine.AggregateSavings(tips),
		Budget:              a.budget.Status(costSoFar, day),
		DailyLimitAdvice:    a.budget.DailyLimitRecommendation(day, costSoFar),
		SpendPercentage:     pct,
		Level:               a.optimizer.Level(),
		AutoLevel:           a.autoLevel,
	}
}
