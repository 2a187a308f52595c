package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidInput = errors.New("invalid input parameters")

// OptimizationLevel is how aggressively the household wants to shed load
type OptimizationLevel int

const (
	LevelMinimal OptimizationLevel = iota + 1
	LevelBalanced
	LevelAggressive
)

func (l OptimizationLevel) String() string {
	switch l {
	case LevelMinimal:
		return "MINIMAL"
	case LevelBalanced:
		return "BALANCED"
	case LevelAggressive:
		return "AGGRESSIVE"
	default:
		return fmt.Sprintf("OptimizationLevel(%d)", int(l))
	}
}

// MarshalText encodes the level by name
func (l OptimizationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts a level name in any case
func (l *OptimizationLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses "minimal", "balanced" or "aggressive"
func ParseLevel(s string) (OptimizationLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MINIMAL":
		return LevelMinimal, nil
	case "BALANCED":
		return LevelBalanced, nil
	case "AGGRESSIVE":
		return LevelAggressive, nil
	}
	return 0, fmt.Errorf("%w: unknown optimization level %q", ErrInvalidInput, s)
}

// ParseTimeOfDay parses one of the four day buckets. Empty input yields the
// zero TimeOfDay, meaning no bucket.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	switch t := TimeOfDay(strings.ToLower(strings.TrimSpace(s))); t {
	case "", Morning, Afternoon, Evening, Night:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown time of day %q", ErrInvalidInput, s)
}

// ParseCategory parses a device category label
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryLight, CategoryClimate, CategoryPlug, CategorySystem:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown device category %q", ErrInvalidInput, s)
}

// TimeOfDayAt buckets t by its clock hour
func TimeOfDayAt(t time.Time) TimeOfDay {
	hour := t.Hour()
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Evening
	default:
		return Night
	}
}

// ProjectedSpendPercentage projects a month of spend from an instantaneous
// draw at price and expresses it as a share of budget
func ProjectedSpendPercentage(powerW, price float64, dayOfMonth int, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	costPerDay := powerW / 1000.0 * price * 24
	projected := costPerDay * BillingCycleDays / float64(dayOfMonth)
	return projected / budget * 100
}

// LevelForPercentage maps a projected-spend percentage to the level other
// parts of the system use for load shedding
func LevelForPercentage(pct float64) OptimizationLevel {
	switch {
	case pct <= 80:
		return LevelMinimal
	case pct <= 100:
		return LevelBalanced
	default:
		return LevelAggressive
	}
}
