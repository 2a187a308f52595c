package engine

// Period is the tariff window a moment falls into
type Period string

const (
	PeriodDay   Period = "day"
	PeriodNight Period = "night"
)

// TariffPlan is a two-rate day/night electricity plan. Prices are per kWh.
// When DayStartHour > DayEndHour the day period wraps past midnight.
type TariffPlan struct {
	Name         string  `json:"name"`
	DayPrice     float64 `json:"day_price"`
	NightPrice   float64 `json:"night_price"`
	DayStartHour int     `json:"day_start_hour"`
	DayEndHour   int     `json:"day_end_hour"`
}

// DefaultTariffPlan returns the plan used until the household configures one
func DefaultTariffPlan() TariffPlan {
	return TariffPlan{
		Name:         "Custom",
		DayPrice:     4.32,
		NightPrice:   2.59,
		DayStartHour: 7,
		DayEndHour:   23,
	}
}

// Category is the kind of subject a tip is about
type Category string

const (
	CategoryLight   Category = "light"
	CategoryClimate Category = "climate"
	CategoryPlug    Category = "plug"
	CategorySystem  Category = "system"
)

// Priority of a tip. Lower rank sorts first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Tip is a single savings recommendation
type Tip struct {
	Subject               string   `json:"subject"`
	Category              Category `json:"category"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	EstimatedDailySavings float64  `json:"estimated_daily_savings"`
	Priority              Priority `json:"priority"`
	Action                string   `json:"action"`
	Impact                string   `json:"impact"`
}

// Weather carries the optional outdoor conditions used by the climate rules.
// Temperature is in Celsius, Humidity in percent, Wind in km/h at 10 m. Code
// is a WMO weather interpretation code.
type Weather struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Wind        *float64 `json:"wind_speed,omitempty"`
	Code        *int     `json:"weather_code,omitempty"`
}

// TimeOfDay is one of four fixed day buckets. The zero value means unknown.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// DeviceMix counts devices per category
type DeviceMix map[Category]int

// AnalysisInput is everything the rule set looks at
type AnalysisInput struct {
	CurrentPower        float64   `json:"current_power"`
	DailyConsumptionKWh float64   `json:"daily_consumption_kwh"`
	Weather             *Weather  `json:"weather,omitempty"`
	TimeOfDay           TimeOfDay `json:"time_of_day,omitempty"`
	DeviceMix           DeviceMix `json:"device_mix,omitempty"`
}

// ScoreResult is the efficiency score and its letter grade
type ScoreResult struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Savings aggregates tip savings. Daily is per day, the rest per 30-day month.
type Savings struct {
	Total  float64 `json:"total"`
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
	Daily  float64 `json:"daily"`
}

// BudgetClassification summarises a projection against the monthly budget
type BudgetClassification string

const (
	BudgetOnTrack    BudgetClassification = "on_track"
	BudgetOverBudget BudgetClassification = "over_budget"
	BudgetExceeded   BudgetClassification = "exceeded"
)

// BudgetStatus is the month-end projection for a billing cycle
type BudgetStatus struct {
	Classification   BudgetClassification `json:"status"`
	DailyBudget      float64              `json:"daily_budget"`
	TodayCost        float64              `json:"today_cost"`
	ProjectedMonthly float64              `json:"projected_monthly"`
	RemainingBudget  float64              `json:"remaining_budget"`
	DaysLeft         int                  `json:"days_left"`
	PercentageUsed   float64              `json:"percentage_used"`
}

// Float returns a pointer to f, for optional weather fields
func Float(f float64) *float64 {
	return &f
}

// Int returns a pointer to i
func Int(i int) *int {
	return &i
}
