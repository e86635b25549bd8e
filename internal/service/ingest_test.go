package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
)

func TestResolveOpenSession(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses the open session", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		open := &model.ScreeningSession{ID: 4, UserID: 10, Status: model.SessionStatusActive}
		sessions.On("FindOpenForUpdate", ctx, int64(10)).Return(open, nil)

		session, err := resolveOpenSession(ctx, sessions, 10, "Session")
		assert.NoError(t, err)
		assert.Equal(t, int64(4), session.ID)
		sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("creates a session when none is open", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		sessions.On("FindOpenForUpdate", ctx, int64(10)).Return(nil, nil)
		sessions.On("Create", ctx, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.UserID == 10 && len(p.SessionName) > len("Auto Session ")
		})).Return(&model.ScreeningSession{ID: 5, UserID: 10}, nil)

		session, err := resolveOpenSession(ctx, sessions, 10, "Auto Session")
		assert.NoError(t, err)
		assert.Equal(t, int64(5), session.ID)
		sessions.AssertExpectations(t)
	})
}

func TestIngestServiceCompleteSession(t *testing.T) {
	ctx := context.Background()

	t.Run("completes with computed classification", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		measurements := new(mockMeasurementRepo)
		svc := NewIngestService(nil, new(mockUserRepo), sessions, measurements)

		active := &model.ScreeningSession{ID: 4, Status: model.SessionStatusActive}
		completed := &model.ScreeningSession{ID: 4, Status: model.SessionStatusCompleted, PlantarPressureStatus: model.PlantarPressureLow}
		sessions.On("FindByID", ctx, int64(4)).Return(active, nil)
		measurements.On("FindBySession", ctx, int64(4)).Return(vptMeasurements(1.0, 2.0), nil)
		sessions.On("Complete", ctx, int64(4), mock.Anything, model.PlantarPressureLow).Return(completed, nil)

		result, err := svc.CompleteSession(ctx, 4, nil)
		assert.NoError(t, err)
		assert.Equal(t, model.PlantarPressureLow, result.PlantarPressureStatus)
	})

	t.Run("override skips classification", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		measurements := new(mockMeasurementRepo)
		svc := NewIngestService(nil, new(mockUserRepo), sessions, measurements)

		active := &model.ScreeningSession{ID: 4, Status: model.SessionStatusActive}
		completed := &model.ScreeningSession{ID: 4, Status: model.SessionStatusCompleted, PlantarPressureStatus: model.PlantarPressureHigh}
		sessions.On("FindByID", ctx, int64(4)).Return(active, nil)
		sessions.On("Complete", ctx, int64(4), mock.Anything, model.PlantarPressureHigh).Return(completed, nil)

		override := model.PlantarPressureHigh
		_, err := svc.CompleteSession(ctx, 4, &override)
		assert.NoError(t, err)
		measurements.AssertNotCalled(t, "FindBySession", mock.Anything, mock.Anything)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		svc := NewIngestService(nil, new(mockUserRepo), sessions, new(mockMeasurementRepo))

		sessions.On("FindByID", ctx, int64(99)).Return(nil, nil)

		_, err := svc.CompleteSession(ctx, 99, nil)
		assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
	})

	t.Run("completed session cannot complete again", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		svc := NewIngestService(nil, new(mockUserRepo), sessions, new(mockMeasurementRepo))

		done := &model.ScreeningSession{ID: 4, Status: model.SessionStatusCompleted}
		sessions.On("FindByID", ctx, int64(4)).Return(done, nil)

		_, err := svc.CompleteSession(ctx, 4, nil)
		assert.Equal(t, errors.ErrCodeInvalidTransition, errors.GetCode(err))
	})
}
