package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/model"
)

type MeasurementRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Measurement, error)
	FindBySession(ctx context.Context, sessionID int64) ([]model.Measurement, error)
	FindByUserSince(ctx context.Context, userID int64, from, to time.Time) ([]model.Measurement, error)
	FindByUserSinceForPoint(ctx context.Context, userID int64, from, to time.Time, pointName string) ([]model.Measurement, error)
	// LatestVPTByPoint returns, per point name, the most recent measurement
	// with a populated VPT reading across all of the user's sessions.
	LatestVPTByPoint(ctx context.Context, userID int64) ([]model.Measurement, error)
	// LatestVitalsByPoint returns, per point name, the most recent
	// measurement carrying both temperature and SpO2.
	LatestVitalsByPoint(ctx context.Context, userID int64) ([]model.Measurement, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Create(ctx context.Context, params model.CreateMeasurementParams) (*model.Measurement, error)
	Delete(ctx context.Context, id int64) error
	DeleteBySession(ctx context.Context, sessionID int64) (int64, error)
	WithTx(tx *sqlx.Tx) MeasurementRepository
}

type measurementRepo struct {
	db database.DBTX
}

func NewMeasurementRepository(db *sqlx.DB) MeasurementRepository {
	return &measurementRepo{db: db}
}

func (r *measurementRepo) WithTx(tx *sqlx.Tx) MeasurementRepository {
	return &measurementRepo{db: tx}
}

func (r *measurementRepo) FindByID(ctx context.Context, id int64) (*model.Measurement, error) {
	var m model.Measurement
	err := r.db.GetContext(ctx, &m, `
		SELECT * FROM measurements WHERE id = $1
	`, id)
	return HandleNotFound(&m, err)
}

func (r *measurementRepo) FindBySession(ctx context.Context, sessionID int64) ([]model.Measurement, error) {
	var measurements []model.Measurement
	err := r.db.SelectContext(ctx, &measurements, `
		SELECT * FROM measurements
		WHERE session_id = $1
		ORDER BY timestamp ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return measurements, nil
}

func (r *measurementRepo) FindByUserSince(ctx context.Context, userID int64, from, to time.Time) ([]model.Measurement, error) {
	var measurements []model.Measurement
	err := r.db.SelectContext(ctx, &measurements, `
		SELECT m.* FROM measurements m
		JOIN screening_sessions s ON s.id = m.session_id
		WHERE s.user_id = $1 AND m.timestamp >= $2 AND m.timestamp <= $3
		ORDER BY m.timestamp ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	return measurements, nil
}

func (r *measurementRepo) FindByUserSinceForPoint(ctx context.Context, userID int64, from, to time.Time, pointName string) ([]model.Measurement, error) {
	var measurements []model.Measurement
	err := r.db.SelectContext(ctx, &measurements, `
		SELECT m.* FROM measurements m
		JOIN screening_sessions s ON s.id = m.session_id
		WHERE s.user_id = $1 AND m.timestamp >= $2 AND m.timestamp <= $3 AND m.point_name = $4
		ORDER BY m.timestamp ASC
	`, userID, from, to, pointName)
	if err != nil {
		return nil, err
	}
	return measurements, nil
}

func (r *measurementRepo) LatestVPTByPoint(ctx context.Context, userID int64) ([]model.Measurement, error) {
	var measurements []model.Measurement
	err := r.db.SelectContext(ctx, &measurements, `
		SELECT DISTINCT ON (m.point_name) m.* FROM measurements m
		JOIN screening_sessions s ON s.id = m.session_id
		WHERE s.user_id = $1 AND m.vpt_voltage IS NOT NULL
		ORDER BY m.point_name, m.timestamp DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return measurements, nil
}

func (r *measurementRepo) LatestVitalsByPoint(ctx context.Context, userID int64) ([]model.Measurement, error) {
	var measurements []model.Measurement
	err := r.db.SelectContext(ctx, &measurements, `
		SELECT DISTINCT ON (m.point_name) m.* FROM measurements m
		JOIN screening_sessions s ON s.id = m.session_id
		WHERE s.user_id = $1 AND m.temperature IS NOT NULL AND m.spo2 IS NOT NULL
		ORDER BY m.point_name, m.timestamp DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return measurements, nil
}

func (r *measurementRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM measurements m
		JOIN screening_sessions s ON s.id = m.session_id
		WHERE s.user_id = $1
	`, userID)
	return count, err
}

func (r *measurementRepo) Create(ctx context.Context, params model.CreateMeasurementParams) (*model.Measurement, error) {
	var m model.Measurement
	err := r.db.GetContext(ctx, &m, `
		INSERT INTO measurements (session_id, point_name, vpt_voltage, temperature, spo2, notes, is_valid, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING *
	`, params.SessionID, params.PointName, params.VPTVoltage, params.Temperature,
		params.SpO2, params.Notes, params.IsValid)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *measurementRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM measurements WHERE id = $1
	`, id)
	return err
}

func (r *measurementRepo) DeleteBySession(ctx context.Context, sessionID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM measurements WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
