package uiapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/engine"
	"github.com/awaistahir/smart-save/internal/metrics"
	"github.com/awaistahir/smart-save/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noon = time.Date(2024, 12, 10, 12, 0, 0, 0, time.UTC)

type fakeWeather struct {
	wx  *engine.Weather
	err error
}

func (f fakeWeather) Current(context.Context) (*engine.Weather, error) {
	return f.wx, f.err
}

func newTestServer(t *testing.T, st *store.Store) *Server {
	t.Helper()
	adv := advisor.New(advisor.DefaultSettings())
	adv.SetClock(func() time.Time { return noon })
	s := NewServer(adv, st, zerolog.New(io.Discard))
	s.now = func() time.Time { return noon }
	return s
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Custom", body["tariff"])
	assert.Equal(t, "BALANCED", body["level"])
	assert.Equal(t, false, body["persistent"])
}

func TestTariffUpdate(t *testing.T) {
	st := newTestStore(t)
	h := newTestServer(t, st).Handler()

	rec := do(t, h, http.MethodPut, "/api/tariff", `{"day_price": 0.30, "night_price": 0.12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[engine.TariffPlan](t, rec)
	assert.Equal(t, engine.TariffPlan{Name: "Custom", DayPrice: 0.30, NightPrice: 0.12, DayStartHour: 7, DayEndHour: 23}, plan)

	saved, err := st.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, plan, saved.Tariff)

	rec = do(t, h, http.MethodGet, "/api/tariff/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[map[string]interface{}](t, rec)
	assert.Equal(t, 0.30, current["price"])
	assert.Equal(t, "day", current["period"])
}

func TestTariffUpdateRejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	tests := []struct {
		name string
		body string
	}{
		{"hour out of range", `{"day_start_hour": 24}`},
		{"negative price", `{"night_price": -1}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/api/tariff", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/tariff", "")
	assert.Equal(t, engine.DefaultTariffPlan(), decode[engine.TariffPlan](t, rec))
}

func TestAddSample(t *testing.T) {
	st := newTestStore(t)
	m := metrics.New()
	h := newTestServer(t, st).WithMetrics(m).Handler()

	rec := do(t, h, http.MethodPost, "/api/samples", `{"power": 1000}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/samples", `2000`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	est := decode[advisor.Estimate](t, rec)
	assert.Equal(t, 2, est.Samples)
	assert.Equal(t, 2000.0, est.LatestW)
	assert.InDelta(t, 36.0, est.DailyKWh, 1e-9)

	rec = do(t, h, http.MethodPost, "/api/samples", `{"power": -3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/samples", `"abc"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	saved, err := st.RecentSamples(10)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, 4.32, saved[1].Price, "noon is on the day rate")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `smartsave_power_samples_total{outcome="accepted"} 2`)
	assert.Contains(t, out, `smartsave_power_samples_total{outcome="dropped"} 2`)
}

func TestAdviceUsesWeather(t *testing.T) {
	s := newTestServer(t, nil).WithWeather(fakeWeather{wx: &engine.Weather{Temperature: engine.Float(30)}})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/advice", `{"current_power": 100, "daily_consumption_kwh": 5, "time_of_day": "Afternoon"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[advisor.Report](t, rec)
	titles := []string{}
	for _, tip := range report.Tips {
		titles = append(titles, tip.Title)
	}
	assert.Contains(t, titles, "Hot outside: switch heating off")
	assert.Contains(t, titles, "Daytime: lights off")
	assert.Equal(t, 100.0, report.CurrentPower)
	assert.Equal(t, 5.0, report.DailyConsumptionKWh)
}

func TestAdviceWithoutWeather(t *testing.T) {
	s := newTestServer(t, nil).WithWeather(fakeWeather{err: errors.New("timeout")})
	h := s.Handler()

	// Empty body is allowed and weather failures are not fatal
	rec := do(t, h, http.MethodPost, "/api/advice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/advice", `{"time_of_day": "teatime"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/advice", `{"device_mix": {"toaster": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScore(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/score", `{"current_power": 500, "daily_consumption_kwh": 8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.ScoreResult{Score: 100, Grade: "A"}, decode[engine.ScoreResult](t, rec))
}

func TestBudget(t *testing.T) {
	st := newTestStore(t)
	h := newTestServer(t, st).Handler()

	rec := do(t, h, http.MethodPut, "/api/budget", `{"monthly_budget": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/budget", `{"monthly_budget": 200}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/budget", "")
	assert.Equal(t, 200.0, decode[budgetRequest](t, rec).MonthlyBudget)

	saved, err := st.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, 200.0, saved.MonthlyBudget)
}

func TestBudgetStatus(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/budget/status", `{"cost": 100, "day_of_month": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "on_track", body["status"])
	assert.Equal(t, 300.0, body["projected_monthly"])
	assert.Equal(t, 20.0, body["days_left"])
	assert.Equal(t, "OK! Limit 10.00/day. Keep to your routine.", body["advice"])
}

func TestBudgetStatusUsesRecordedCost(t *testing.T) {
	st := newTestStore(t)
	// 2 kW for an hour yesterday at the day rate, and a reading from last month
	require.NoError(t, st.AddSample(noon.AddDate(0, 0, -1), 2000, 4.32))
	require.NoError(t, st.AddSample(time.Date(2024, 11, 30, 12, 0, 0, 0, time.UTC), 5000, 4.32))
	h := newTestServer(t, st).Handler()

	tests := []struct {
		name     string
		path     string
		body     string
		wantCost float64
	}{
		{"budget status", "/api/budget/status", `{"day_of_month": 10}`, 8.64},
		{"explicit cost wins", "/api/budget/status", `{"cost": 50, "day_of_month": 10}`, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			status := decode[engine.BudgetStatus](t, rec)
			assert.InDelta(t, tt.wantCost, status.TodayCost, 1e-9)
			assert.InDelta(t, tt.wantCost*3, status.ProjectedMonthly, 1e-9)
		})
	}

	t.Run("advice", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/advice", `{"current_power": 100, "day_of_month": 10}`)
		require.Equal(t, http.StatusOK, rec.Code)
		report := decode[advisor.Report](t, rec)
		assert.InDelta(t, 8.64, report.Budget.TodayCost, 1e-9)
	})
}

func TestPeakHours(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/peak-hours", `{"0": 100, "1": 100, "2": 100, "18": 1000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[peakHoursResponse](t, rec)
	assert.Equal(t, []string{
		"Peak consumption at 18:00 (1000W). Consider moving energy-hungry tasks to other hours.",
		"Low consumption at: 0:00, 1:00, 2:00. Move energy-hungry tasks to these hours.",
	}, body.Recommendations)

	rec = do(t, h, http.MethodPost, "/api/peak-hours", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[peakHoursResponse](t, rec).Recommendations)

	rec = do(t, h, http.MethodPost, "/api/peak-hours", `{"25": 10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoredPeakHours(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, newTestServer(t, nil).Handler(), http.MethodGet, "/api/peak-hours", "").Code)

	st := newTestStore(t)
	yesterday := noon.AddDate(0, 0, -1)
	at := func(hour int) time.Time {
		return time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), hour, 15, 0, 0, time.UTC)
	}
	require.NoError(t, st.AddSample(at(3), 100, 4.32))
	require.NoError(t, st.AddSample(at(12), 300, 4.32))
	require.NoError(t, st.AddSample(at(18), 1800, 4.32))
	require.NoError(t, st.AddSample(at(18), 2200, 4.32))
	require.NoError(t, st.AddSample(noon.AddDate(0, 0, -30), 9000, 4.32))

	h := newTestServer(t, st).Handler()
	rec := do(t, h, http.MethodGet, "/api/peak-hours?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[peakHoursResponse](t, rec)
	assert.Len(t, body.Hourly, 3)
	assert.Equal(t, []string{
		"Peak consumption at 18:00 (2000W). Consider moving energy-hungry tasks to other hours.",
		"Low consumption at: 3:00, 12:00. Move energy-hungry tasks to these hours.",
	}, body.Recommendations)

	rec = do(t, h, http.MethodGet, "/api/peak-hours?days=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateLevel(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodPut, "/api/level", `{"level": "aggressive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "AGGRESSIVE", body["level"])
	assert.Equal(t, false, body["auto_level"])

	rec = do(t, h, http.MethodPut, "/api/level", `{"auto_level": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]interface{}](t, rec)["auto_level"])

	rec = do(t, h, http.MethodPut, "/api/level", `{"level": "turbo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/level", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeather(t *testing.T) {
	rec := do(t, newTestServer(t, nil).Handler(), http.MethodGet, "/api/weather", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s := newTestServer(t, nil).WithWeather(fakeWeather{wx: &engine.Weather{Temperature: engine.Float(12), Humidity: engine.Float(80)}})
	rec = do(t, s.Handler(), http.MethodGet, "/api/weather", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wx := decode[engine.Weather](t, rec)
	require.NotNil(t, wx.Temperature)
	assert.Equal(t, 12.0, *wx.Temperature)

	s = newTestServer(t, nil).WithWeather(fakeWeather{err: errors.New("down")})
	rec = do(t, s.Handler(), http.MethodGet, "/api/weather", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
