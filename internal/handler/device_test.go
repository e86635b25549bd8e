package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexFloatUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected float64
		wantErr  bool
	}{
		{"json number", `{"v": 5.5}`, 5.5, false},
		{"integer number", `{"v": 5}`, 5.0, false},
		{"numeric string", `{"v": "31.2"}`, 31.2, false},
		{"integer string", `{"v": "31"}`, 31.0, false},
		{"non-numeric string", `{"v": "abc"}`, 0, true},
		{"empty string", `{"v": ""}`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var dst struct {
				V *FlexFloat `json:"v"`
			}
			err := json.Unmarshal([]byte(tc.payload), &dst)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, float64(*dst.V))
		})
	}

	t.Run("null leaves pointer nil", func(t *testing.T) {
		var dst struct {
			V *FlexFloat `json:"v"`
		}
		assert.NoError(t, json.Unmarshal([]byte(`{"v": null}`), &dst))
		assert.Nil(t, dst.V)
	})

	t.Run("absent field leaves pointer nil", func(t *testing.T) {
		var dst struct {
			V *FlexFloat `json:"v"`
		}
		assert.NoError(t, json.Unmarshal([]byte(`{}`), &dst))
		assert.Nil(t, dst.V)
	})
}

func TestFlexIntUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected int
		wantErr  bool
	}{
		{"json number", `{"v": 98}`, 98, false},
		{"fractional number truncates", `{"v": 98.7}`, 98, false},
		{"numeric string", `{"v": "97"}`, 97, false},
		{"non-numeric string", `{"v": "abc"}`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var dst struct {
				V *FlexInt `json:"v"`
			}
			err := json.Unmarshal([]byte(tc.payload), &dst)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, int(*dst.V))
		})
	}
}

func TestReceiveDataValidation(t *testing.T) {
	h := NewDeviceHandler(nil)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/data", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ReceiveData(rec, req)
		return rec
	}

	t.Run("empty body is bad request", func(t *testing.T) {
		rec := post("")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user_id is bad request", func(t *testing.T) {
		rec := post(`{"toe": "Right Heel", "vpt": 5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "user_id")
	})

	t.Run("missing toe is bad request", func(t *testing.T) {
		rec := post(`{"user_id": 1, "vpt": 5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "toe")
	})

	t.Run("non-numeric spo2 is bad request", func(t *testing.T) {
		rec := post(`{"user_id": 1, "toe": "Right Heel", "spo2": "abc"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "numeric")
	})
}

func TestReceiveSensorDataValidation(t *testing.T) {
	h := NewDeviceHandler(nil)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/data-json-send", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ReceiveSensorData(rec, req)
		return rec
	}

	t.Run("all sensor fields required", func(t *testing.T) {
		rec := post(`{"username": "nurse", "toe": "Right Heel", "vpt": 5, "temp": 36.5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "spo2")
	})

	t.Run("username required", func(t *testing.T) {
		rec := post(`{"toe": "Right Heel", "vpt": 5, "temp": 36.5, "spo2": 98}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "username")
	})
}

func TestCompleteSessionValidation(t *testing.T) {
	h := NewDeviceHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/session/complete", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.CompleteSession(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_id")
}
