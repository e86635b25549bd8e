package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

var exportHeader = []string{"Timestamp", "Point Name", "VPT Voltage", "Temperature", "SpO2"}

type ExportService struct {
	sessionRepo     repository.SessionRepository
	measurementRepo repository.MeasurementRepository
}

func NewExportService(
	sessionRepo repository.SessionRepository,
	measurementRepo repository.MeasurementRepository,
) *ExportService {
	return &ExportService{
		sessionRepo:     sessionRepo,
		measurementRepo: measurementRepo,
	}
}

// CSV renders a session's measurements in chronological order. Missing
// sensor fields become empty cells, timestamps are RFC 3339 UTC.
func (s *ExportService) CSV(ctx context.Context, userID, sessionID int64) (string, []byte, error) {
	session, measurements, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return "", nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range measurements {
		if err := w.Write(exportRow(m)); err != nil {
			return "", nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", nil, fmt.Errorf("flush csv: %w", err)
	}

	return exportFilename(session, "csv"), buf.Bytes(), nil
}

// XLSX renders the same table as CSV into a single-sheet workbook.
func (s *ExportService) XLSX(ctx context.Context, userID, sessionID int64) (string, []byte, error) {
	session, measurements, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Measurements"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return "", nil, fmt.Errorf("write header row: %w", err)
	}

	for i, m := range measurements {
		row := make([]interface{}, 0, 5)
		for _, cell := range exportRow(m) {
			row = append(row, cell)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", nil, fmt.Errorf("write row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("write workbook: %w", err)
	}
	return exportFilename(session, "xlsx"), buf.Bytes(), nil
}

func (s *ExportService) load(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, []model.Measurement, error) {
	session, err := s.sessionRepo.FindByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, nil, errors.NotFound("Session")
	}

	measurements, err := s.measurementRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load measurements: %w", err)
	}
	return session, measurements, nil
}

func exportRow(m model.Measurement) []string {
	row := []string{
		m.Timestamp.UTC().Format(time.RFC3339),
		m.PointName,
		"", "", "",
	}
	if m.VPTVoltage != nil {
		row[2] = strconv.FormatFloat(*m.VPTVoltage, 'f', -1, 64)
	}
	if m.Temperature != nil {
		row[3] = strconv.FormatFloat(*m.Temperature, 'f', -1, 64)
	}
	if m.SpO2 != nil {
		row[4] = strconv.Itoa(*m.SpO2)
	}
	return row
}

func exportFilename(session *model.ScreeningSession, ext string) string {
	return fmt.Sprintf("session_%d_measurements.%s", session.ID, ext)
}
