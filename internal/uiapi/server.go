package uiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/engine"
	"github.com/awaistahir/smart-save/internal/ingest"
	"github.com/awaistahir/smart-save/internal/metrics"
	"github.com/awaistahir/smart-save/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

// WeatherSource supplies current outdoor conditions
type WeatherSource interface {
	Current(ctx context.Context) (*engine.Weather, error)
}

type Server struct {
	advisor *advisor.Advisor
	store   *store.Store
	weather WeatherSource
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewServer creates the API server. st may be nil, in which case samples and
// settings are kept in memory only.
func NewServer(adv *advisor.Advisor, st *store.Store, logger zerolog.Logger) *Server {
	return &Server{
		advisor: adv,
		store:   st,
		logger:  logger.With().Str("component", "api").Logger(),
		now:     time.Now,
	}
}

// WithWeather enables weather lookups for /api/weather and advice requests
func (s *Server) WithWeather(w WeatherSource) *Server {
	s.weather = w
	return s
}

// WithMetrics mounts /metrics and feeds reports and samples into it
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for local development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/tariff", s.handleGetTariff)
		r.Put("/tariff", s.handleUpdateTariff)
		r.Get("/tariff/current", s.handleCurrentPrice)
		r.Post("/samples", s.handleAddSample)
		r.Get("/estimate", s.handleEstimate)
		r.Post("/advice", s.handleAdvice)
		r.Post("/score", s.handleScore)
		r.Get("/budget", s.handleGetBudget)
		r.Put("/budget", s.handleUpdateBudget)
		r.Post("/budget/status", s.handleBudgetStatus)
		r.Post("/peak-hours", s.handlePeakHours)
		r.Get("/peak-hours", s.handleStoredPeakHours)
		r.Put("/level", s.handleUpdateLevel)
		r.Get("/weather", s.handleGetWeather)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// recordedCost is the spend priced from stored readings since the start of
// now's month. It reports false without a store or when the query fails.
func (s *Server) recordedCost(now time.Time) (float64, bool) {
	if s.store == nil {
		return 0, false
	}
	cost, err := s.store.CostSince(engine.CycleStart(now))
	if err != nil {
		s.logger.Error().Err(err).Msg("pricing recorded samples")
		return 0, false
	}
	return cost, true
}

// persist saves the advisor settings when a store is attached
func (s *Server) persist() error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveSettings(s.advisor.Settings())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := s.advisor.Settings()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    version,
		"tariff":     settings.Tariff.Name,
		"level":      settings.Level,
		"auto_level": settings.AutoLevel,
		"samples":    s.advisor.Estimate().Samples,
		"persistent": s.store != nil,
	})
}

func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.advisor.Settings().Tariff)
}

// tariffRequest updates only the fields that are present
type tariffRequest struct {
	Name         *string  `json:"name"`
	DayPrice     *float64 `json:"day_price"`
	NightPrice   *float64 `json:"night_price"`
	DayStartHour *int     `json:"day_start_hour"`
	DayEndHour   *int     `json:"day_end_hour"`
}

func (req tariffRequest) apply(plan engine.TariffPlan) (engine.TariffPlan, error) {
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.DayPrice != nil {
		plan.DayPrice = *req.DayPrice
	}
	if req.NightPrice != nil {
		plan.NightPrice = *req.NightPrice
	}
	if req.DayStartHour != nil {
		plan.DayStartHour = *req.DayStartHour
	}
	if req.DayEndHour != nil {
		plan.DayEndHour = *req.DayEndHour
	}

	if plan.DayPrice < 0 || plan.NightPrice < 0 {
		return plan, fmt.Errorf("%w: prices must not be negative", engine.ErrInvalidInput)
	}
	if !validHour(plan.DayStartHour) || !validHour(plan.DayEndHour) {
		return plan, fmt.Errorf("%w: hours must be within 0-23", engine.ErrInvalidInput)
	}
	return plan, nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := req.apply(s.advisor.Settings().Tariff)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.advisor.SetTariff(plan)
	if err := s.persist(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	est := s.advisor.Estimate()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"price":  est.Price,
		"period": est.PricePeriod,
	})
}

func (s *Server) handleAddSample(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watts, ok := ingest.ParsePayload(body)
	if !ok || !s.advisor.RecordValue(watts) {
		if s.metrics != nil {
			s.metrics.SampleDropped()
		}
		respondError(w, http.StatusBadRequest, "power reading must be a non-negative number")
		return
	}

	if s.metrics != nil {
		s.metrics.SampleAccepted(watts)
	}
	if s.store != nil {
		now := s.now()
		if err := s.store.AddSample(now, watts, s.advisor.PriceAt(now)); err != nil {
			s.logger.Error().Err(err).Msg("saving power sample")
		}
	}

	respondJSON(w, http.StatusAccepted, s.advisor.Estimate())
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.advisor.Estimate())
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var in advisor.Input
	if err := decodeOptional(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tod, err := engine.ParseTimeOfDay(string(in.TimeOfDay))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.TimeOfDay = tod

	if len(in.DeviceMix) > 0 {
		mix := engine.DeviceMix{}
		for c, n := range in.DeviceMix {
			cat, err := engine.ParseCategory(string(c))
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			mix[cat] += n
		}
		in.DeviceMix = mix
	}

	// Weather is best effort; advice without it is still useful
	if in.Weather == nil && s.weather != nil {
		wx, err := s.weather.Current(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("weather unavailable, advising without it")
		} else {
			in.Weather = wx
		}
	}

	if in.CostSoFar == nil {
		now := in.Now
		if now.IsZero() {
			now = s.now()
		}
		if cost, ok := s.recordedCost(now); ok {
			in.CostSoFar = &cost
		}
	}

	report := s.advisor.Report(in)
	if s.metrics != nil {
		s.metrics.ObserveReport(report)
	}
	if report.AutoLevel {
		if err := s.persist(); err != nil {
			s.logger.Error().Err(err).Msg("saving settings")
		}
	}

	respondJSON(w, http.StatusOK, report)
}

type scoreRequest struct {
	CurrentPower        *float64 `json:"current_power"`
	DailyConsumptionKWh *float64 `json:"daily_consumption_kwh"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Missing figures come from the rolling window
	est := s.advisor.Estimate()
	current, daily := est.LatestW, est.DailyKWh
	if req.CurrentPower != nil {
		current = *req.CurrentPower
	}
	if req.DailyConsumptionKWh != nil {
		daily = *req.DailyConsumptionKWh
	}

	respondJSON(w, http.StatusOK, s.advisor.Score(current, daily))
}

type budgetRequest struct {
	MonthlyBudget float64 `json:"monthly_budget"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, budgetRequest{MonthlyBudget: s.advisor.Settings().MonthlyBudget})
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MonthlyBudget <= 0 {
		respondError(w, http.StatusBadRequest, "monthly_budget must be positive")
		return
	}

	s.advisor.SetMonthlyBudget(req.MonthlyBudget)
	if err := s.persist(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, req)
}

type budgetStatusRequest struct {
	Cost       *float64 `json:"cost"`
	DayOfMonth int      `json:"day_of_month"`
}

type budgetStatusResponse struct {
	engine.BudgetStatus
	Advice string `json:"advice"`
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	var req budgetStatusRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	day := req.DayOfMonth
	if day <= 0 {
		day = s.now().Day()
	}
	var cost float64
	if req.Cost != nil {
		cost = *req.Cost
	} else if recorded, ok := s.recordedCost(s.now()); ok {
		cost = recorded
	} else {
		// No history on disk: assume every day so far cost what today does
		cost = s.advisor.Estimate().DailyCost * float64(day)
	}

	status, advice := s.advisor.BudgetStatus(cost, day)
	respondJSON(w, http.StatusOK, budgetStatusResponse{BudgetStatus: status, Advice: advice})
}

type peakHoursResponse struct {
	Hourly          map[int]float64 `json:"hourly"`
	Recommendations []string        `json:"recommendations"`
}

func (s *Server) handlePeakHours(w http.ResponseWriter, r *http.Request) {
	var hourly map[int]float64
	if err := json.NewDecoder(r.Body).Decode(&hourly); err != nil {
		respondError(w, http.StatusBadRequest, "body must map hour to average watts")
		return
	}
	for h := range hourly {
		if !validHour(h) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("hour %d outside 0-23", h))
			return
		}
	}

	respondPeakHours(w, hourly)
}

func (s *Server) handleStoredPeakHours(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "no sample history without a database")
		return
	}

	days := 7
	if q := r.URL.Query().Get("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	hourly, err := s.store.HourlyAverages(s.now().AddDate(0, 0, -days))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondPeakHours(w, hourly)
}

func respondPeakHours(w http.ResponseWriter, hourly map[int]float64) {
	recs := engine.PeakHourRecommendations(hourly)
	if recs == nil {
		recs = []string{}
	}
	respondJSON(w, http.StatusOK, peakHoursResponse{Hourly: hourly, Recommendations: recs})
}

type levelRequest struct {
	Level     *engine.OptimizationLevel `json:"level"`
	AutoLevel *bool                     `json:"auto_level"`
}

func (s *Server) handleUpdateLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid request body"
		if errors.Is(err, engine.ErrInvalidInput) {
			msg = err.Error()
		}
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Level == nil && req.AutoLevel == nil {
		respondError(w, http.StatusBadRequest, "level or auto_level required")
		return
	}

	if req.Level != nil {
		s.advisor.SetLevel(*req.Level)
	}
	if req.AutoLevel != nil {
		s.advisor.SetAutoLevel(*req.AutoLevel)
	}
	if err := s.persist(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	settings := s.advisor.Settings()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"level":      settings.Level,
		"auto_level": settings.AutoLevel,
	})
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	if s.weather == nil {
		respondError(w, http.StatusServiceUnavailable, "weather lookups are not configured")
		return
	}

	wx, err := s.weather.Current(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to fetch weather: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, wx)
}

// decodeOptional decodes a JSON body, treating an empty body as no fields set
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
