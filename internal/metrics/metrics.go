package metrics

import (
	"net/http"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the advisor's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	currentPower     prometheus.Gauge
	dailyKWh         prometheus.Gauge
	score            prometheus.Gauge
	projectedMonthly prometheus.Gauge
	level            prometheus.Gauge
	tips             *prometheus.GaugeVec
	samples          *prometheus.CounterVec
}

// New registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		currentPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartsave_current_power_watts",
			Help: "Most recent household power reading.",
		}),
		dailyKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartsave_daily_consumption_kwh",
			Help: "Daily consumption used for the last report.",
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartsave_efficiency_score",
			Help: "Efficiency score from 0 to 100.",
		}),
		projectedMonthly: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartsave_projected_monthly_cost",
			Help: "Projected month-end cost.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartsave_optimization_level",
			Help: "Optimization level: 1 minimal, 2 balanced, 3 aggressive.",
		}),
		tips: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartsave_tips",
			Help: "Number of tips in the last report by priority.",
		}, []string{"priority"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartsave_power_samples_total",
			Help: "Power samples received by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.currentPower, m.dailyKWh, m.score, m.projectedMonthly, m.level, m.tips, m.samples,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can Gather directly
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SampleAccepted counts an ingested reading and updates the power gauge
func (m *Metrics) SampleAccepted(watts float64) {
	m.samples.WithLabelValues("accepted").Inc()
	m.currentPower.Set(watts)
}

// SampleDropped counts a malformed reading
func (m *Metrics) SampleDropped() {
	m.samples.WithLabelValues("dropped").Inc()
}

// ObserveReport copies a report's headline numbers into the gauges
func (m *Metrics) ObserveReport(r advisor.Report) {
	m.currentPower.Set(r.CurrentPower)
	m.dailyKWh.Set(r.DailyConsumptionKWh)
	m.score.Set(float64(r.Score.Score))
	m.projectedMonthly.Set(r.Budget.ProjectedMonthly)
	m.level.Set(float64(r.Level))

	counts := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, t := range r.Tips {
		counts[string(t.Priority)]++
	}
	for p, n := range counts {
		m.tips.WithLabelValues(p).Set(float64(n))
	}
}
