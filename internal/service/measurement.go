package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

type MeasurementService struct {
	sessionRepo     repository.SessionRepository
	measurementRepo repository.MeasurementRepository
}

func NewMeasurementService(
	sessionRepo repository.SessionRepository,
	measurementRepo repository.MeasurementRepository,
) *MeasurementService {
	return &MeasurementService{
		sessionRepo:     sessionRepo,
		measurementRepo: measurementRepo,
	}
}

type RecordParams struct {
	PointName   string
	VPTVoltage  *float64
	Temperature *float64
	SpO2        *int
	Notes       *string
}

// Record stores a measurement against a session the user owns. Out-of-range
// readings are stored with is_valid false, never rejected.
func (s *MeasurementService) Record(ctx context.Context, userID, sessionID int64, params RecordParams) (*model.Measurement, error) {
	session, err := s.sessionRepo.FindByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, errors.NotFound("Session")
	}
	return recordMeasurement(ctx, s.measurementRepo, sessionID, params)
}

// recordMeasurement validates and persists one reading. Shared with the
// device ingestion path, which does its own session resolution.
// Point names are stored as sent. Unknown names still persist; the chart
// aggregator skips what it cannot parse.
func recordMeasurement(ctx context.Context, repo repository.MeasurementRepository, sessionID int64, params RecordParams) (*model.Measurement, error) {
	pointName := strings.TrimSpace(params.PointName)
	if pointName == "" {
		return nil, errors.MissingRequired("point_name")
	}

	if _, ok := model.ParsePointName(pointName); !ok {
		log.Warn().
			Int64("sessionId", sessionID).
			Str("point", pointName).
			Msg("unrecognized measurement point, stored as sent")
	}

	candidate := model.Measurement{
		PointName:   pointName,
		VPTVoltage:  params.VPTVoltage,
		Temperature: params.Temperature,
		SpO2:        params.SpO2,
	}
	if rangeErrs := candidate.Validate(); len(rangeErrs) > 0 {
		log.Warn().
			Int64("sessionId", sessionID).
			Str("point", candidate.PointName).
			Strs("rangeErrors", rangeErrs).
			Msg("measurement outside sensor ranges, stored as invalid")
	}

	measurement, err := repo.Create(ctx, model.CreateMeasurementParams{
		SessionID:   sessionID,
		PointName:   candidate.PointName,
		VPTVoltage:  params.VPTVoltage,
		Temperature: params.Temperature,
		SpO2:        params.SpO2,
		Notes:       params.Notes,
		IsValid:     candidate.IsValid,
	})
	if err != nil {
		return nil, fmt.Errorf("create measurement: %w", err)
	}
	return measurement, nil
}

func (s *MeasurementService) ListForSession(ctx context.Context, userID, sessionID int64) ([]model.Measurement, error) {
	session, err := s.sessionRepo.FindByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, errors.NotFound("Session")
	}

	measurements, err := s.measurementRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return measurements, nil
}

func (s *MeasurementService) Delete(ctx context.Context, userID, measurementID int64) error {
	measurement, err := s.measurementRepo.FindByID(ctx, measurementID)
	if err != nil {
		return fmt.Errorf("find measurement: %w", err)
	}
	if measurement == nil {
		return errors.NotFound("Measurement")
	}

	session, err := s.sessionRepo.FindByIDForUser(ctx, measurement.SessionID, userID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return errors.NotFound("Measurement")
	}

	if err := s.measurementRepo.Delete(ctx, measurementID); err != nil {
		return fmt.Errorf("delete measurement: %w", err)
	}
	return nil
}
