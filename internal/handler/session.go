package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/audit"
	apperrors "github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/middleware"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/service"
)

type SessionHandler struct {
	screenings   *service.ScreeningService
	measurements *service.MeasurementService
	exports      *service.ExportService
}

func NewSessionHandler(
	screenings *service.ScreeningService,
	measurements *service.MeasurementService,
	exports *service.ExportService,
) *SessionHandler {
	return &SessionHandler{
		screenings:   screenings,
		measurements: measurements,
		exports:      exports,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/create", h.Create)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
		r.Post("/complete", h.Complete)
		r.Post("/cancel", h.Cancel)
		r.Post("/duplicate", h.Duplicate)
		r.Get("/export", h.Export)
		r.Get("/measurements", h.Measurements)
		r.Post("/measurements", h.RecordMeasurement)
		r.Delete("/measurements/{measurementID}", h.DeleteMeasurement)
	})

	return r
}

func sessionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	return id, err == nil
}

// GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	page := ParsePagination(r)

	sessions, total, err := h.screenings.List(r.Context(), user.ID, page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Msg("session list failed")
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(sessions))
	for i := range sessions {
		formatted[i] = formatSession(&sessions[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": formatted,
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// POST /api/sessions/create
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		SessionName    string   `json:"sessionName"`
		Protocol       *string  `json:"protocol"`
		Notes          *string  `json:"notes"`
		ExpectedPoints []string `json:"expectedPoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	session, err := h.screenings.Create(r.Context(), user.ID, service.CreateScreeningParams{
		SessionName:    req.SessionName,
		Protocol:       req.Protocol,
		Notes:          req.Notes,
		ExpectedPoints: req.ExpectedPoints,
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("session create failed")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionCreate,
		UserID:  user.ID,
		Details: map[string]interface{}{"session_id": session.ID},
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message":    "Session created successfully",
		"session_id": session.ID,
		"session":    formatSession(session),
	})
}

// GET /api/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	session, err := h.screenings.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	progress, err := h.screenings.Progress(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	body := formatSession(session)
	body["progress"] = progress
	writeJSON(w, http.StatusOK, map[string]any{"session": body})
}

// DELETE /api/sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	if err := h.screenings.Delete(r.Context(), user.ID, id); err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("session delete failed")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionDelete,
		UserID:  user.ID,
		Details: map[string]interface{}{"session_id": id},
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.screenings.Pause)
}

func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.screenings.Resume)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.screenings.Cancel)
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error),
) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	session, err := apply(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": formatSession(session)})
}

// POST /api/sessions/{sessionID}/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	var req struct {
		PlantarPressureStatus *string `json:"plantarPressureStatus"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	var override *model.PlantarPressureStatus
	if req.PlantarPressureStatus != nil {
		status := model.PlantarPressureStatus(*req.PlantarPressureStatus)
		if status.Valid() {
			override = &status
		}
	}

	session, err := h.screenings.Complete(r.Context(), user.ID, id, override)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionComplete,
		UserID:  user.ID,
		Details: map[string]interface{}{"session_id": id},
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": formatSession(session)})
}

// POST /api/sessions/{sessionID}/duplicate
func (h *SessionHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	copied, err := h.screenings.Duplicate(r.Context(), user.ID, id)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("session duplicate failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"message":    "Session duplicated successfully",
		"session_id": copied.ID,
		"session":    formatSession(copied),
	})
}

// GET /api/sessions/{sessionID}/export?format=csv|xlsx
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		filename    string
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case "csv":
		filename, data, err = h.exports.CSV(r.Context(), user.ID, id)
		contentType = "text/csv"
	case "xlsx":
		filename, data, err = h.exports.XLSX(r.Context(), user.ID, id)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported export format: " + format})
		return
	}
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("session export failed")
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GET /api/sessions/{sessionID}/measurements
func (h *SessionHandler) Measurements(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	measurements, err := h.measurements.ListForSession(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(measurements))
	for i := range measurements {
		formatted[i] = formatMeasurement(&measurements[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": formatted})
}

// POST /api/sessions/{sessionID}/measurements
func (h *SessionHandler) RecordMeasurement(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid session id"})
		return
	}

	var req struct {
		PointName   string     `json:"pointName"`
		VPTVoltage  *FlexFloat `json:"vptVoltage"`
		Temperature *FlexFloat `json:"temperature"`
		SpO2        *FlexInt   `json:"spo2"`
		Notes       *string    `json:"notes"`
	}
	if !decodeDeviceBody(w, r, &req) {
		return
	}

	measurement, err := h.measurements.Record(r.Context(), user.ID, id, service.RecordParams{
		PointName:   req.PointName,
		VPTVoltage:  (*float64)(req.VPTVoltage),
		Temperature: (*float64)(req.Temperature),
		SpO2:        (*int)(req.SpO2),
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"measurement": formatMeasurement(measurement),
	})
}

// DELETE /api/sessions/{sessionID}/measurements/{measurementID}
func (h *SessionHandler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	measurementID, err := strconv.ParseInt(chi.URLParam(r, "measurementID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid measurement id"})
		return
	}

	if err := h.measurements.Delete(r.Context(), user.ID, measurementID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
