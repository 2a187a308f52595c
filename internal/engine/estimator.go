package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// WindowSize is how many recent power samples the estimator keeps
const WindowSize = 120

// RollingPowerEstimator keeps the most recent WindowSize power readings in a
// ring buffer and extrapolates daily energy from their average.
// It is not safe for concurrent use.
type RollingPowerEstimator struct {
	buf   [WindowSize]float64
	head  int // next write position
	count int
}

// NewRollingPowerEstimator returns an empty estimator
func NewRollingPowerEstimator() *RollingPowerEstimator {
	return &RollingPowerEstimator{}
}

// Record adds a reading in watts. NaN, infinite and negative values are dropped.
func (e *RollingPowerEstimator) Record(watts float64) bool {
	if math.IsNaN(watts) || math.IsInf(watts, 0) || watts < 0 {
		return false
	}

	if e.count < WindowSize {
		e.count++
	}
	e.buf[e.head] = watts
	e.head = (e.head + 1) % WindowSize

	return true
}

// RecordValue records a loosely typed reading, as decoded from JSON or MQTT.
// Anything that does not parse as a number is silently ignored.
func (e *RollingPowerEstimator) RecordValue(v any) bool {
	watts, ok := toFloat(v)
	if !ok {
		return false
	}
	return e.Record(watts)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	default:
		return 0, false
	}
}

// Len is the number of samples currently in the window
func (e *RollingPowerEstimator) Len() int {
	return e.count
}

// Average is the mean power of the window in watts, 0 when empty
func (e *RollingPowerEstimator) Average() float64 {
	if e.count == 0 {
		return 0
	}
	total := 0.0
	for _, s := range e.Samples() {
		total += s
	}
	return total / float64(e.count)
}

// Latest returns the most recent sample
func (e *RollingPowerEstimator) Latest() (float64, bool) {
	if e.count == 0 {
		return 0, false
	}
	return e.buf[(e.head-1+WindowSize)%WindowSize], true
}

// Samples returns the window contents, oldest first
func (e *RollingPowerEstimator) Samples() []float64 {
	out := make([]float64, 0, e.count)
	start := (e.head - e.count + WindowSize) % WindowSize
	for i := 0; i < e.count; i++ {
		out = append(out, e.buf[(start+i)%WindowSize])
	}
	return out
}

// Reset empties the window
func (e *RollingPowerEstimator) Reset() {
	*e = RollingPowerEstimator{}
}

// EstimateDailyKWh extrapolates the window's average power over 24 hours.
// This is an average-power approximation, not an integral over time.
func (e *RollingPowerEstimator) EstimateDailyKWh() float64 {
	if e.count == 0 {
		return 0
	}
	return e.Average() / 1000.0 * 24
}
