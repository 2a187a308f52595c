package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Optimizer is the rule engine that turns consumption readings into tips
type Optimizer struct {
	level OptimizationLevel
}

// NewOptimizer creates an optimizer at the given level. A zero level means BALANCED.
func NewOptimizer(level OptimizationLevel) *Optimizer {
	if level == 0 {
		level = LevelBalanced
	}
	return &Optimizer{level: level}
}

// Level returns the configured optimization level
func (o *Optimizer) Level() OptimizationLevel {
	return o.level
}

// SetLevel changes the optimization level used by later calls
func (o *Optimizer) SetLevel(level OptimizationLevel) {
	o.level = level
}

// Analyze evaluates every rule against in and returns the matching tips,
// highest priority first and larger savings first within a priority
func (o *Optimizer) Analyze(in AnalysisInput) []Tip {
	tips := []Tip{}
	for _, r := range rules {
		if tip, ok := r(in, o.level); ok {
			tips = append(tips, tip)
		}
	}

	sortTips(tips)
	return tips
}

// sortTips orders by priority rank then descending savings, keeping emission
// order for equal keys
func sortTips(tips []Tip) {
	sort.SliceStable(tips, func(i, j int) bool {
		ri, rj := tips[i].Priority.rank(), tips[j].Priority.rank()
		if ri != rj {
			return ri < rj
		}
		return tips[i].EstimatedDailySavings > tips[j].EstimatedDailySavings
	})
}

// Score rates the household's efficiency from 0 to 100
func (o *Optimizer) Score(currentPower, dailyConsumptionKWh float64) ScoreResult {
	score := 100

	switch {
	case currentPower > 3500:
		score -= 30
	case currentPower > 3000:
		score -= 20
	case currentPower > 2500:
		score -= 10
	case currentPower > 2000:
		score -= 5
	}

	switch {
	case dailyConsumptionKWh > 20:
		score -= 25
	case dailyConsumptionKWh > 15:
		score -= 15
	case dailyConsumptionKWh > 12:
		score -= 5
	}

	score = max(0, min(100, score))
	return ScoreResult{Score: score, Grade: gradeFor(score)}
}

func gradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}

// AggregateSavings sums tip savings per day and projects them over a month
func AggregateSavings(tips []Tip) Savings {
	var s Savings
	for _, t := range tips {
		s.Daily += t.EstimatedDailySavings
		switch t.Priority {
		case PriorityHigh:
			s.High += t.EstimatedDailySavings
		case PriorityMedium:
			s.Medium += t.EstimatedDailySavings
		case PriorityLow:
			s.Low += t.EstimatedDailySavings
		}
	}

	s.Total = s.Daily * BillingCycleDays
	s.High *= BillingCycleDays
	s.Medium *= BillingCycleDays
	s.Low *= BillingCycleDays
	return s
}

// PeakHourRecommendations looks at average power per clock hour and suggests
// moving load away from the peak and towards quiet hours
func PeakHourRecommendations(hourly map[int]float64) []string {
	if len(hourly) == 0 {
		return nil
	}

	hours := make([]int, 0, len(hourly))
	total := 0.0
	for h, p := range hourly {
		hours = append(hours, h)
		total += p
	}
	sort.Ints(hours)
	avg := total / float64(len(hourly))

	// Ties go to the earliest hour
	peakHour := hours[0]
	for _, h := range hours[1:] {
		if hourly[h] > hourly[peakHour] {
			peakHour = h
		}
	}
	peakPower := hourly[peakHour]

	recs := []string{}
	if peakPower > avg*1.5 {
		recs = append(recs, fmt.Sprintf(
			"Peak consumption at %d:00 (%dW). Consider moving energy-hungry tasks to other hours.",
			peakHour, int(peakPower)))
	}

	low := []string{}
	for _, h := range hours {
		if hourly[h] < avg*0.7 && len(low) < 3 {
			low = append(low, fmt.Sprintf("%d:00", h))
		}
	}
	if len(low) > 0 {
		recs = append(recs, fmt.Sprintf(
			"Low consumption at: %s. Move energy-hungry tasks to these hours.",
			strings.Join(low, ", ")))
	}

	return recs
}
