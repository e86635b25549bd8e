package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
)

func TestRecordMeasurement(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an unrecognized point name as sent", func(t *testing.T) {
		measurements := new(mockMeasurementRepo)
		measurements.On("Create", ctx, mock.MatchedBy(func(p model.CreateMeasurementParams) bool {
			return p.SessionID == 3 && p.PointName == "Forehead" && p.IsValid
		})).Return(&model.Measurement{ID: 1, SessionID: 3, PointName: "Forehead"}, nil)

		m, err := recordMeasurement(ctx, measurements, 3, RecordParams{
			PointName:  "Forehead",
			VPTVoltage: fptr(4.5),
		})
		assert.NoError(t, err)
		assert.Equal(t, "Forehead", m.PointName)
		measurements.AssertExpectations(t)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		measurements := new(mockMeasurementRepo)
		measurements.On("Create", ctx, mock.MatchedBy(func(p model.CreateMeasurementParams) bool {
			return p.PointName == "Right Heel"
		})).Return(&model.Measurement{ID: 2, SessionID: 3, PointName: "Right Heel"}, nil)

		_, err := recordMeasurement(ctx, measurements, 3, RecordParams{PointName: "  Right Heel  "})
		assert.NoError(t, err)
		measurements.AssertExpectations(t)
	})

	t.Run("rejects an empty point name", func(t *testing.T) {
		measurements := new(mockMeasurementRepo)

		_, err := recordMeasurement(ctx, measurements, 3, RecordParams{PointName: "   "})
		assert.Error(t, err)
		assert.Equal(t, errors.ErrCodeMissingRequired, errors.GetCode(err))
		measurements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("out-of-range reading persists flagged invalid", func(t *testing.T) {
		measurements := new(mockMeasurementRepo)
		measurements.On("Create", ctx, mock.MatchedBy(func(p model.CreateMeasurementParams) bool {
			return p.PointName == "Right Heel" && !p.IsValid
		})).Return(&model.Measurement{ID: 3, SessionID: 3, PointName: "Right Heel", IsValid: false}, nil)

		m, err := recordMeasurement(ctx, measurements, 3, RecordParams{
			PointName:  "Right Heel",
			VPTVoltage: fptr(99.0),
		})
		assert.NoError(t, err)
		assert.False(t, m.IsValid)
		measurements.AssertExpectations(t)
	})
}
