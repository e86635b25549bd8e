package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
)

func exportFixtures() (*model.ScreeningSession, []model.Measurement) {
	session := &model.ScreeningSession{ID: 3, UserID: 10, SessionName: "Morning Round"}
	ts := time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)
	measurements := []model.Measurement{
		{ID: 1, SessionID: 3, PointName: "Right Heel", VPTVoltage: fptr(4.5), Temperature: fptr(36.5), SpO2: iptr(97), Timestamp: ts},
		{ID: 2, SessionID: 3, PointName: "Left Big Toe", Timestamp: ts.Add(time.Minute)},
	}
	return session, measurements
}

func TestExportServiceCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("renders header and rows", func(t *testing.T) {
		session, measurements := exportFixtures()
		sessionRepo := new(mockSessionRepo)
		measurementRepo := new(mockMeasurementRepo)
		svc := NewExportService(sessionRepo, measurementRepo)

		sessionRepo.On("FindByIDForUser", ctx, int64(3), int64(10)).Return(session, nil)
		measurementRepo.On("FindBySession", ctx, int64(3)).Return(measurements, nil)

		filename, data, err := svc.CSV(ctx, 10, 3)
		assert.NoError(t, err)
		assert.Equal(t, "session_3_measurements.csv", filename)

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Equal(t, "Timestamp,Point Name,VPT Voltage,Temperature,SpO2", lines[0])
		assert.Equal(t, "2025-06-10T08:30:00Z,Right Heel,4.5,36.5,97", lines[1])
		assert.Equal(t, "2025-06-10T08:31:00Z,Left Big Toe,,,", lines[2])
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		svc := NewExportService(sessionRepo, new(mockMeasurementRepo))

		sessionRepo.On("FindByIDForUser", ctx, int64(99), int64(10)).Return(nil, nil)

		_, _, err := svc.CSV(ctx, 10, 99)
		assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
	})
}

func TestExportServiceXLSX(t *testing.T) {
	ctx := context.Background()

	session, measurements := exportFixtures()
	sessionRepo := new(mockSessionRepo)
	measurementRepo := new(mockMeasurementRepo)
	svc := NewExportService(sessionRepo, measurementRepo)

	sessionRepo.On("FindByIDForUser", ctx, int64(3), int64(10)).Return(session, nil)
	measurementRepo.On("FindBySession", ctx, int64(3)).Return(measurements, nil)

	filename, data, err := svc.XLSX(ctx, 10, 3)
	assert.NoError(t, err)
	assert.Equal(t, "session_3_measurements.xlsx", filename)

	f, err := excelize.OpenReader(strings.NewReader(string(data)))
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Measurements")
	assert.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"Timestamp", "Point Name", "VPT Voltage", "Temperature", "SpO2"}, rows[0])
	assert.Equal(t, "Right Heel", rows[1][1])
	assert.Equal(t, "4.5", rows[1][2])
}
