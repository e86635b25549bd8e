package handler

import (
	"net/http"
	"time"

	"github.com/liwanag/screening-server/internal/httputil"
	"github.com/liwanag/screening-server/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func formatUser(user *model.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"username":       user.Username,
		"firstName":      user.FirstName,
		"surname":        user.Surname,
		"middleInitial":  user.MiddleInitial,
		"fullName":       user.FullName(),
		"hospitalName":   user.HospitalName,
		"hospitalRoomNo": user.HospitalRoomNo,
		"createdAt":      user.CreatedAt.Format(time.RFC3339),
		"lastLogin":      formatTime(user.LastLogin),
	}
}

func formatSession(session *model.ScreeningSession) map[string]any {
	return map[string]any{
		"id":                    session.ID,
		"userId":                session.UserID,
		"sessionName":           session.SessionName,
		"protocol":              session.Protocol,
		"status":                session.Status,
		"plantarPressureStatus": session.PlantarPressureStatus,
		"notes":                 session.Notes,
		"expectedPoints":        []string(session.ExpectedPoints),
		"createdAt":             session.CreatedAt.Format(time.RFC3339),
		"completedAt":           formatTime(session.CompletedAt),
	}
}

func formatMeasurement(m *model.Measurement) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"sessionId":    m.SessionID,
		"pointName":    m.PointName,
		"vptVoltage":   m.VPTVoltage,
		"temperature":  m.Temperature,
		"spo2":         m.SpO2,
		"timestamp":    m.Timestamp.Format(time.RFC3339),
		"notes":        m.Notes,
		"isValid":      m.IsValid,
		"qualityScore": m.QualityScore(),
	}
}
