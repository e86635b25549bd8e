package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/liwanag/screening-server/internal/model"
)

type mockKeyVerifier struct {
	mock.Mock
}

func (m *mockKeyVerifier) Verify(ctx context.Context, key string) (*model.APIKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func TestDeviceAuthMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetAPIKey(r.Context())
		assert.NotNil(t, key)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("accepts key from header", func(t *testing.T) {
		verifier := new(mockKeyVerifier)
		verifier.On("Verify", mock.Anything, "valid-key").Return(&model.APIKey{ID: 1, KeyName: "device-1"}, nil)

		m := NewDeviceAuthMiddleware(verifier)
		req := httptest.NewRequest(http.MethodPost, "/api/data", nil)
		req.Header.Set("X-API-Key", "valid-key")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts key from query param", func(t *testing.T) {
		verifier := new(mockKeyVerifier)
		verifier.On("Verify", mock.Anything, "valid-key").Return(&model.APIKey{ID: 1}, nil)

		m := NewDeviceAuthMiddleware(verifier)
		req := httptest.NewRequest(http.MethodPost, "/api/data?api_key=valid-key", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("header takes precedence over query param", func(t *testing.T) {
		verifier := new(mockKeyVerifier)
		verifier.On("Verify", mock.Anything, "header-key").Return(&model.APIKey{ID: 1}, nil)

		m := NewDeviceAuthMiddleware(verifier)
		req := httptest.NewRequest(http.MethodPost, "/api/data?api_key=query-key", nil)
		req.Header.Set("X-API-Key", "header-key")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		verifier.AssertCalled(t, "Verify", mock.Anything, "header-key")
	})

	t.Run("missing key is unauthorized", func(t *testing.T) {
		m := NewDeviceAuthMiddleware(new(mockKeyVerifier))
		req := httptest.NewRequest(http.MethodPost, "/api/data", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "API key required")
	})

	t.Run("unknown key is unauthorized", func(t *testing.T) {
		verifier := new(mockKeyVerifier)
		verifier.On("Verify", mock.Anything, "bogus").Return(nil, nil)

		m := NewDeviceAuthMiddleware(verifier)
		req := httptest.NewRequest(http.MethodPost, "/api/data", nil)
		req.Header.Set("X-API-Key", "bogus")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid API key")
	})

	t.Run("verifier error is internal", func(t *testing.T) {
		verifier := new(mockKeyVerifier)
		verifier.On("Verify", mock.Anything, "any").Return(nil, assert.AnError)

		m := NewDeviceAuthMiddleware(verifier)
		req := httptest.NewRequest(http.MethodPost, "/api/data", nil)
		req.Header.Set("X-API-Key", "any")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
