package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/audit"
	apperrors "github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/middleware"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/service"
)

// FlexFloat accepts a JSON number or a numeric string. Device firmwares have
// sent both.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return apperrors.InvalidInput("numeric value", s)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt accepts a JSON number or numeric string, truncating fractions.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return apperrors.InvalidInput("numeric value", s)
	}
	*f = FlexInt(int(v))
	return nil
}

type DeviceHandler struct {
	ingest *service.IngestService
}

func NewDeviceHandler(ingest *service.IngestService) *DeviceHandler {
	return &DeviceHandler{ingest: ingest}
}

func (h *DeviceHandler) Register(r chi.Router) {
	r.Post("/data", h.ReceiveData)
	r.Post("/data-json-send", h.ReceiveSensorData)
	r.Post("/session/complete", h.CompleteSession)
	r.Get("/users/{userID}/sessions", h.UserSessions)
}

func decodeDeviceBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if apperrors.IsAppError(err) {
			writeError(w, err)
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No data provided"})
		}
		return false
	}
	return true
}

// POST /api/data
//
// Primary device ingestion. user_id and toe are required; session_id is
// optional, and without it the user's open session is reused or a new one
// is created.
func (h *DeviceHandler) ReceiveData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    *int64     `json:"user_id"`
		SessionID *int64     `json:"session_id"`
		VPT       *FlexFloat `json:"vpt"`
		Temp      *FlexFloat `json:"temp"`
		SpO2      *FlexInt   `json:"spo2"`
		Toe       string     `json:"toe"`
	}
	if !decodeDeviceBody(w, r, &req) {
		return
	}

	if req.UserID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: user_id"})
		return
	}
	if req.Toe == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: toe"})
		return
	}

	measurement, session, err := h.ingest.Ingest(r.Context(), service.IngestParams{
		UserID:    *req.UserID,
		SessionID: req.SessionID,
		RecordParams: service.RecordParams{
			PointName:   req.Toe,
			VPTVoltage:  (*float64)(req.VPT),
			Temperature: (*float64)(req.Temp),
			SpO2:        (*int)(req.SpO2),
		},
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("device ingest failed")
		}
		writeError(w, err)
		return
	}

	h.auditWrite(r, measurement)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"message":        "Data received successfully",
		"measurement_id": measurement.ID,
		"session_id":     session.ID,
		"timestamp":      measurement.Timestamp.Format(time.RFC3339),
	})
}

// POST /api/data-json-send
//
// Legacy gateway path addressed by username. All three sensor fields are
// required.
func (h *DeviceHandler) ReceiveSensorData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string     `json:"username"`
		VPT      *FlexFloat `json:"vpt"`
		Temp     *FlexFloat `json:"temp"`
		SpO2     *FlexInt   `json:"spo2"`
		Toe      string     `json:"toe"`
	}
	if !decodeDeviceBody(w, r, &req) {
		return
	}

	missing := ""
	switch {
	case req.VPT == nil:
		missing = "vpt"
	case req.Temp == nil:
		missing = "temp"
	case req.SpO2 == nil:
		missing = "spo2"
	case req.Toe == "":
		missing = "toe"
	case req.Username == "":
		missing = "username"
	}
	if missing != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: " + missing})
		return
	}

	measurement, session, err := h.ingest.IngestByUsername(r.Context(), service.UsernameIngestParams{
		Username:    req.Username,
		PointName:   strings.TrimSpace(req.Toe),
		VPTVoltage:  float64(*req.VPT),
		Temperature: float64(*req.Temp),
		SpO2:        int(*req.SpO2),
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("sensor data ingest failed")
		}
		writeError(w, err)
		return
	}

	h.auditWrite(r, measurement)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "Sensor data received successfully",
		"measurement_id": measurement.ID,
		"session_id":     session.ID,
		"point_name":     measurement.PointName,
		"data": map[string]any{
			"vpt":         measurement.VPTVoltage,
			"temperature": measurement.Temperature,
			"spo2":        measurement.SpO2,
			"timestamp":   measurement.Timestamp.Format(time.RFC3339),
		},
	})
}

// POST /api/session/complete
func (h *DeviceHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID             *int64  `json:"session_id"`
		PlantarPressureStatus *string `json:"plantar_pressure_status"`
	}
	if !decodeDeviceBody(w, r, &req) {
		return
	}

	if req.SessionID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	var override *model.PlantarPressureStatus
	if req.PlantarPressureStatus != nil {
		status := model.PlantarPressureStatus(*req.PlantarPressureStatus)
		if status.Valid() {
			override = &status
		}
	}

	session, err := h.ingest.CompleteSession(r.Context(), *req.SessionID, override)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("device session complete failed")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionComplete,
		KeyName: keyName(r),
		Details: map[string]interface{}{"session_id": session.ID},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session completed successfully",
		"session": formatSession(session),
	})
}

// GET /api/users/{userID}/sessions
func (h *DeviceHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
		return
	}

	sessions, err := h.ingest.SessionsForUser(r.Context(), userID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("device session list failed")
		}
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(sessions))
	for i := range sessions {
		formatted[i] = formatSession(&sessions[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": formatted})
}

func (h *DeviceHandler) auditWrite(r *http.Request, m *model.Measurement) {
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventMeasurementWrite,
		KeyName: keyName(r),
		Details: map[string]interface{}{
			"measurement_id": m.ID,
			"session_id":     m.SessionID,
			"point_name":     m.PointName,
			"is_valid":       m.IsValid,
		},
	})
}

func keyName(r *http.Request) string {
	if key := middleware.GetAPIKey(r.Context()); key != nil {
		return key.KeyName
	}
	return ""
}
