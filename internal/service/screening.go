package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/montanaflynn/stats"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

// Mean VPT thresholds for plantar pressure classification, in volts.
const (
	pressureLowBelow  = 3.0
	pressureHighAbove = 7.0
)

type ScreeningService struct {
	db              *database.DB
	sessionRepo     repository.SessionRepository
	measurementRepo repository.MeasurementRepository
}

func NewScreeningService(
	db *database.DB,
	sessionRepo repository.SessionRepository,
	measurementRepo repository.MeasurementRepository,
) *ScreeningService {
	return &ScreeningService{
		db:              db,
		sessionRepo:     sessionRepo,
		measurementRepo: measurementRepo,
	}
}

type CreateScreeningParams struct {
	SessionName    string
	Protocol       *string
	Notes          *string
	ExpectedPoints []string
}

func (s *ScreeningService) Create(ctx context.Context, userID int64, params CreateScreeningParams) (*model.ScreeningSession, error) {
	if params.SessionName == "" {
		return nil, errors.MissingRequired("session_name")
	}

	expected := params.ExpectedPoints
	if len(expected) == 0 && params.Protocol != nil {
		expected = model.ProtocolPoints(*params.Protocol)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		UserID:         userID,
		SessionName:    params.SessionName,
		Protocol:       params.Protocol,
		Notes:          params.Notes,
		ExpectedPoints: expected,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *ScreeningService) Get(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error) {
	session, err := s.sessionRepo.FindByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, errors.NotFound("Session")
	}
	return session, nil
}

func (s *ScreeningService) List(ctx context.Context, userID int64, limit, offset int) ([]model.ScreeningSession, int, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	total, err := s.sessionRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *ScreeningService) Pause(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error) {
	return s.transition(ctx, userID, sessionID, model.SessionStatusPaused)
}

func (s *ScreeningService) Resume(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error) {
	return s.transition(ctx, userID, sessionID, model.SessionStatusActive)
}

func (s *ScreeningService) Cancel(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error) {
	return s.transition(ctx, userID, sessionID, model.SessionStatusCancelled)
}

// Complete marks a session completed, stamps completed_at and classifies
// plantar pressure from the session's mean VPT. A valid explicit override
// takes precedence over the computed classification.
func (s *ScreeningService) Complete(ctx context.Context, userID, sessionID int64, override *model.PlantarPressureStatus) (*model.ScreeningSession, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !canTransition(session.Status, model.SessionStatusCompleted) {
		return nil, errors.InvalidTransition(string(session.Status), string(model.SessionStatusCompleted))
	}

	pressure := override
	if pressure == nil || !pressure.Valid() {
		measurements, err := s.measurementRepo.FindBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load measurements: %w", err)
		}
		computed := ClassifyPlantarPressure(measurements)
		pressure = &computed
	}

	updated, err := s.sessionRepo.Complete(ctx, sessionID, time.Now().UTC(), *pressure)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	return updated, nil
}

func (s *ScreeningService) transition(ctx context.Context, userID, sessionID int64, to model.SessionStatus) (*model.ScreeningSession, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !canTransition(session.Status, to) {
		return nil, errors.InvalidTransition(string(session.Status), string(to))
	}

	updated, err := s.sessionRepo.UpdateStatus(ctx, sessionID, to)
	if err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}
	return updated, nil
}

// canTransition encodes the session lifecycle. Terminal states never leave;
// pause only applies to active sessions and resume only to paused ones.
func canTransition(from, to model.SessionStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case model.SessionStatusPaused:
		return from == model.SessionStatusActive
	case model.SessionStatusActive:
		return from == model.SessionStatusPaused
	case model.SessionStatusCompleted, model.SessionStatusCancelled:
		return true
	}
	return false
}

// Delete removes a session together with its measurements.
func (s *ScreeningService) Delete(ctx context.Context, userID, sessionID int64) error {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.measurementRepo.WithTx(tx).DeleteBySession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete measurements: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// Duplicate creates a fresh active copy of a session and re-records its
// measurement values with new server timestamps.
func (s *ScreeningService) Duplicate(ctx context.Context, userID, sessionID int64) (*model.ScreeningSession, error) {
	source, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	measurements, err := s.measurementRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}

	var copied *model.ScreeningSession
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessionTx := s.sessionRepo.WithTx(tx)
		measurementTx := s.measurementRepo.WithTx(tx)

		copied, err = sessionTx.Create(ctx, model.CreateSessionParams{
			UserID:         userID,
			SessionName:    source.SessionName + " (Copy)",
			Protocol:       source.Protocol,
			Notes:          source.Notes,
			ExpectedPoints: source.ExpectedPoints,
		})
		if err != nil {
			return fmt.Errorf("create session copy: %w", err)
		}

		for _, m := range measurements {
			if _, err := measurementTx.Create(ctx, model.CreateMeasurementParams{
				SessionID:   copied.ID,
				PointName:   m.PointName,
				VPTVoltage:  m.VPTVoltage,
				Temperature: m.Temperature,
				SpO2:        m.SpO2,
				Notes:       m.Notes,
				IsValid:     m.IsValid,
			}); err != nil {
				return fmt.Errorf("copy measurement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// Progress reports how many of the session's expected points have at least
// one measurement. Sessions without expected points count as fully measured
// once anything is recorded.
func (s *ScreeningService) Progress(ctx context.Context, userID, sessionID int64) (*model.SessionProgress, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	measurements, err := s.measurementRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	progress := ComputeProgress(session.ExpectedPoints, measurements)
	return &progress, nil
}

// ComputeProgress counts expected points that have at least one measurement.
// Measurements outside the expected set never count, and duplicates of one
// point count once. Without an expected set, any measurement at all means
// the session is fully measured.
func ComputeProgress(expected []string, measurements []model.Measurement) model.SessionProgress {
	progress := model.SessionProgress{
		ExpectedCount: len(expected),
		MissingPoints: []string{},
	}
	if len(expected) == 0 {
		if len(measurements) > 0 {
			progress.Percent = 100
		}
		return progress
	}

	measured := make(map[string]bool, len(measurements))
	for _, m := range measurements {
		measured[m.PointName] = true
	}

	for _, point := range expected {
		if measured[point] {
			progress.MeasuredCount++
		} else {
			progress.MissingPoints = append(progress.MissingPoints, point)
		}
	}
	progress.Percent = progress.MeasuredCount * 100 / progress.ExpectedCount
	return progress
}

// ClassifyPlantarPressure buckets the mean VPT voltage of a session's
// measurements: below 3V is Low, above 7V is High, otherwise Normal.
// Without any VPT readings the result is Unknown.
func ClassifyPlantarPressure(measurements []model.Measurement) model.PlantarPressureStatus {
	voltages := make([]float64, 0, len(measurements))
	for _, m := range measurements {
		if m.VPTVoltage != nil {
			voltages = append(voltages, *m.VPTVoltage)
		}
	}
	if len(voltages) == 0 {
		return model.PlantarPressureUnknown
	}

	mean, err := stats.Mean(voltages)
	if err != nil {
		return model.PlantarPressureUnknown
	}
	switch {
	case mean < pressureLowBelow:
		return model.PlantarPressureLow
	case mean > pressureHighAbove:
		return model.PlantarPressureHigh
	default:
		return model.PlantarPressureNormal
	}
}
