package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id int64, params model.UpdateProfileParams) (*model.User, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockUserRepo) LockForUpdate(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockLoginSessionRepo struct {
	mock.Mock
}

func (m *mockLoginSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.LoginSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoginSession), args.Error(1)
}

func (m *mockLoginSessionRepo) Create(ctx context.Context, params model.CreateLoginSessionParams) (*model.LoginSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoginSession), args.Error(1)
}

func (m *mockLoginSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockLoginSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockLoginSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id int64) (*model.ScreeningSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) FindByIDForUser(ctx context.Context, id, userID int64) (*model.ScreeningSession, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ScreeningSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) FindOpenForUpdate(ctx context.Context, userID int64) (*model.ScreeningSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.ScreeningSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id int64, status model.SessionStatus) (*model.ScreeningSession, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) Complete(ctx context.Context, id int64, completedAt time.Time, pressure model.PlantarPressureStatus) (*model.ScreeningSession, error) {
	args := m.Called(ctx, id, completedAt, pressure)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScreeningSession), args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) PauseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockMeasurementRepo struct {
	mock.Mock
}

func (m *mockMeasurementRepo) WithTx(tx *sqlx.Tx) repository.MeasurementRepository {
	return m
}

func (m *mockMeasurementRepo) FindByID(ctx context.Context, id int64) (*model.Measurement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) FindBySession(ctx context.Context, sessionID int64) ([]model.Measurement, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) FindByUserSince(ctx context.Context, userID int64, from, to time.Time) ([]model.Measurement, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) FindByUserSinceForPoint(ctx context.Context, userID int64, from, to time.Time, pointName string) ([]model.Measurement, error) {
	args := m.Called(ctx, userID, from, to, pointName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) LatestVPTByPoint(ctx context.Context, userID int64) ([]model.Measurement, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) LatestVitalsByPoint(ctx context.Context, userID int64) ([]model.Measurement, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockMeasurementRepo) Create(ctx context.Context, params model.CreateMeasurementParams) (*model.Measurement, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Measurement), args.Error(1)
}

func (m *mockMeasurementRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockMeasurementRepo) DeleteBySession(ctx context.Context, sessionID int64) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type mockAPIKeyRepo struct {
	mock.Mock
}

func (m *mockAPIKeyRepo) FindActiveByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	args := m.Called(ctx, keyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) RecordUsage(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}
