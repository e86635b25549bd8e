package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/audit"
	"github.com/liwanag/screening-server/internal/model"
)

const APIKeyContextKey contextKey = "apiKey"

func GetAPIKey(ctx context.Context) *model.APIKey {
	if key, ok := ctx.Value(APIKeyContextKey).(*model.APIKey); ok {
		return key
	}
	return nil
}

// KeyVerifier checks a plaintext device key. A nil key with nil error means
// the key is unknown or revoked.
type KeyVerifier interface {
	Verify(ctx context.Context, key string) (*model.APIKey, error)
}

type DeviceAuthMiddleware struct {
	verifier KeyVerifier
}

func NewDeviceAuthMiddleware(verifier KeyVerifier) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{verifier: verifier}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "API key required",
			})
			return
		}

		apiKey, err := m.verifier.Verify(r.Context(), key)
		if err != nil {
			log.Error().Err(err).Msg("device auth middleware: verification error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if apiKey == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAPIKeyFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid API key",
			})
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyContextKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}
