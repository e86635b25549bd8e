package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/middleware"
	"github.com/liwanag/screening-server/internal/service"
)

const (
	defaultChartDays = 7
	maxChartDays     = 90
)

type DashboardHandler struct {
	charts *service.ChartService
}

func NewDashboardHandler(charts *service.ChartService) *DashboardHandler {
	return &DashboardHandler{charts: charts}
}

func (h *DashboardHandler) Register(r chi.Router) {
	r.Get("/chart-data", h.ChartData)
	r.Get("/measurement-timeline", h.Timeline)
	r.Get("/current-vpt-readings", h.CurrentVPT)
	r.Get("/current-vitals-readings", h.CurrentVitals)
	r.Get("/dashboard/summary", h.Summary)
}

func chartDays(r *http.Request) int {
	days := defaultChartDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > maxChartDays {
		days = maxChartDays
	}
	return days
}

// GET /api/chart-data?days=7
func (h *DashboardHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	data, err := h.charts.ChartData(r.Context(), user.ID, chartDays(r))
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("chart data build failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GET /api/measurement-timeline?days=7&point=Right+Heel
func (h *DashboardHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	point := r.URL.Query().Get("point")

	timeline, err := h.charts.Timeline(r.Context(), user.ID, chartDays(r), point)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("measurement timeline build failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

// GET /api/current-vpt-readings
func (h *DashboardHandler) CurrentVPT(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	readings, err := h.charts.CurrentVPTReadings(r.Context(), user.ID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("vpt readings lookup failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// GET /api/current-vitals-readings
func (h *DashboardHandler) CurrentVitals(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	readings, err := h.charts.CurrentVitalsReadings(r.Context(), user.ID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("vitals readings lookup failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// GET /api/dashboard/summary
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	summary, err := h.charts.Summary(r.Context(), user.ID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("dashboard summary failed")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
