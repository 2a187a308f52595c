package engine

import "time"

// PriceAt resolves the unit price and period that apply to plan at now
func PriceAt(plan TariffPlan, now time.Time) (float64, Period) {
	if isDayHour(plan, now.Hour()) {
		return plan.DayPrice, PeriodDay
	}
	return plan.NightPrice, PeriodNight
}

// isDayHour reports whether hour falls inside the plan's day window
func isDayHour(plan TariffPlan, hour int) bool {
	if plan.DayStartHour <= plan.DayEndHour {
		return plan.DayStartHour <= hour && hour < plan.DayEndHour
	}
	// Overnight day window (e.g., 22 - 6)
	return hour >= plan.DayStartHour || hour < plan.DayEndHour
}

// Cost is the cost of drawing powerW watts for hours at the price in force at now
func Cost(powerW, hours float64, plan TariffPlan, now time.Time) float64 {
	price, _ := PriceAt(plan, now)
	return powerW / 1000.0 * price * hours
}

// TariffCalculator owns the household's active plan
type TariffCalculator struct {
	plan TariffPlan
	now  func() time.Time
}

// NewTariffCalculator creates a calculator for plan using the wall clock
func NewTariffCalculator(plan TariffPlan) *TariffCalculator {
	return &TariffCalculator{plan: plan, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (c *TariffCalculator) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	c.now = now
}

// Plan returns a copy of the active plan
func (c *TariffCalculator) Plan() TariffPlan {
	return c.plan
}

// SetPlan replaces the whole plan, hours included
func (c *TariffCalculator) SetPlan(plan TariffPlan) {
	c.plan = plan
}

// SetPrices changes the day and night prices and keeps the hour boundaries
func (c *TariffCalculator) SetPrices(dayPrice, nightPrice float64) {
	c.plan.DayPrice = dayPrice
	c.plan.NightPrice = nightPrice
}

// SetHours moves the day window
func (c *TariffCalculator) SetHours(dayStart, dayEnd int) {
	c.plan.DayStartHour = dayStart
	c.plan.DayEndHour = dayEnd
}

// Current returns the price and period in force right now
func (c *TariffCalculator) Current() (float64, Period) {
	return PriceAt(c.plan, c.now())
}

// CurrentAt returns the price and period in force at t
func (c *TariffCalculator) CurrentAt(t time.Time) (float64, Period) {
	return PriceAt(c.plan, t)
}

// Cost prices powerW watts over hours at the current rate
func (c *TariffCalculator) Cost(powerW, hours float64) float64 {
	return Cost(powerW, hours, c.plan, c.now())
}
