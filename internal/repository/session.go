package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id int64) (*model.ScreeningSession, error)
	FindByIDForUser(ctx context.Context, id, userID int64) (*model.ScreeningSession, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ScreeningSession, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	// FindOpenForUpdate returns the user's most recently created session with
	// no completion timestamp, locking the row. Call within a transaction.
	FindOpenForUpdate(ctx context.Context, userID int64) (*model.ScreeningSession, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.ScreeningSession, error)
	UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) (*model.ScreeningSession, error)
	Complete(ctx context.Context, id int64, completedAt time.Time, pressure model.PlantarPressureStatus) (*model.ScreeningSession, error)
	Delete(ctx context.Context, id int64) error
	// PauseStale pauses active sessions with no activity since the cutoff.
	PauseStale(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id int64) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM screening_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByIDForUser(ctx context.Context, id, userID int64) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM screening_sessions WHERE id = $1 AND user_id = $2
	`, id, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ScreeningSession, error) {
	var sessions []model.ScreeningSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM screening_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM screening_sessions WHERE user_id = $1
	`, userID)
	return count, err
}

func (r *sessionRepo) FindOpenForUpdate(ctx context.Context, userID int64) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM screening_sessions
		WHERE user_id = $1 AND completed_at IS NULL AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO screening_sessions (user_id, session_name, protocol, notes, expected_points, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		RETURNING *
	`, params.UserID, params.SessionName, params.Protocol, params.Notes,
		pq.StringArray(params.ExpectedPoints))
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE screening_sessions SET status = $2 WHERE id = $1
		RETURNING *
	`, id, status)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Complete(ctx context.Context, id int64, completedAt time.Time, pressure model.PlantarPressureStatus) (*model.ScreeningSession, error) {
	var session model.ScreeningSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE screening_sessions SET
			status = 'completed',
			completed_at = $2,
			plantar_pressure_status = $3
		WHERE id = $1
		RETURNING *
	`, id, completedAt, pressure)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) PauseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE screening_sessions s SET status = 'paused'
		WHERE s.status = 'active'
		  AND s.created_at < $1
		  AND NOT EXISTS (
		      SELECT 1 FROM measurements m
		      WHERE m.session_id = s.id AND m.timestamp >= $1
		  )
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM screening_sessions WHERE id = $1
	`, id)
	return err
}
