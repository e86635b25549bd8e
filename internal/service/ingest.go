package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

// IngestService is the device-facing write path. It resolves or creates the
// target session and records the reading in one transaction, so two devices
// streaming for the same user land in the same session instead of racing
// into two.
type IngestService struct {
	db              *database.DB
	userRepo        repository.UserRepository
	sessionRepo     repository.SessionRepository
	measurementRepo repository.MeasurementRepository
}

func NewIngestService(
	db *database.DB,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	measurementRepo repository.MeasurementRepository,
) *IngestService {
	return &IngestService{
		db:              db,
		userRepo:        userRepo,
		sessionRepo:     sessionRepo,
		measurementRepo: measurementRepo,
	}
}

type IngestParams struct {
	UserID    int64
	SessionID *int64
	RecordParams
}

// Ingest records a reading for the given user. With an explicit session id
// the session must exist and belong to the user; without one the user's open
// session is reused, or a new session is created.
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*model.Measurement, *model.ScreeningSession, error) {
	var (
		measurement *model.Measurement
		session     *model.ScreeningSession
	)
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		userTx := s.userRepo.WithTx(tx)
		sessionTx := s.sessionRepo.WithTx(tx)
		measurementTx := s.measurementRepo.WithTx(tx)

		// Lock the user row so concurrent device writes for the same user
		// serialize on session resolution.
		found, err := userTx.LockForUpdate(ctx, params.UserID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if !found {
			return errors.InvalidInput("user_id", "unknown user")
		}

		if params.SessionID != nil {
			session, err = sessionTx.FindByIDForUser(ctx, *params.SessionID, params.UserID)
			if err != nil {
				return fmt.Errorf("find session: %w", err)
			}
			if session == nil {
				return errors.InvalidInput("session_id", "unknown session for user")
			}
		} else {
			session, err = resolveOpenSession(ctx, sessionTx, params.UserID, "Session")
			if err != nil {
				return err
			}
		}

		measurement, err = recordMeasurement(ctx, measurementTx, session.ID, params.RecordParams)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return measurement, session, nil
}

type UsernameIngestParams struct {
	Username    string
	PointName   string
	VPTVoltage  float64
	Temperature float64
	SpO2        int
}

// IngestByUsername is the legacy gateway path: all three sensor fields are
// required and the target user is addressed by username. An unknown username
// is a not-found error rather than invalid input.
func (s *IngestService) IngestByUsername(ctx context.Context, params UsernameIngestParams) (*model.Measurement, *model.ScreeningSession, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(params.Username)))
	if err != nil {
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, nil, errors.NotFound("User")
	}

	var (
		measurement *model.Measurement
		session     *model.ScreeningSession
	)
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.userRepo.WithTx(tx).LockForUpdate(ctx, user.ID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		session, err = resolveOpenSession(ctx, s.sessionRepo.WithTx(tx), user.ID, "Auto Session")
		if err != nil {
			return err
		}

		measurement, err = recordMeasurement(ctx, s.measurementRepo.WithTx(tx), session.ID, RecordParams{
			PointName:   params.PointName,
			VPTVoltage:  &params.VPTVoltage,
			Temperature: &params.Temperature,
			SpO2:        &params.SpO2,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return measurement, session, nil
}

// resolveOpenSession returns the user's open session, creating an active one
// named after the current time when none exists. Callers must hold the user
// row lock.
func resolveOpenSession(ctx context.Context, sessions repository.SessionRepository, userID int64, namePrefix string) (*model.ScreeningSession, error) {
	session, err := sessions.FindOpenForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session, err = sessions.Create(ctx, model.CreateSessionParams{
		UserID:      userID,
		SessionName: namePrefix + " " + time.Now().UTC().Format("2006-01-02 15:04"),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// CompleteSession lets a device close a session it has been streaming into.
// Sessions are addressed by id alone; the device key, not the login session,
// is the authority on this path.
func (s *IngestService) CompleteSession(ctx context.Context, sessionID int64, override *model.PlantarPressureStatus) (*model.ScreeningSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, errors.NotFound("Session")
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

// SessionsForUser lists a user's sessions for the device API, newest first.
func (s *IngestService) SessionsForUser(ctx context.Context, userID int64) ([]model.ScreeningSession, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, errors.NotFound("User")
	}

	sessions, err := s.sessionRepo.ListByUser(ctx, userID, 200, 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
