package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
)

const (
	SessionCookieName = "liwanag_session"
	SessionMaxAge     = 24 * time.Hour
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// SessionValidator resolves a plaintext cookie token to its user.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.User, error)
}

type SessionMiddleware struct {
	validator SessionValidator
}

func NewSessionMiddleware(validator SessionValidator) *SessionMiddleware {
	return &SessionMiddleware{validator: validator}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Authentication required",
			})
			return
		}

		user, err := m.validator.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeSessionExpired {
				ClearSessionCookie(w)
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Session expired",
				})
				return
			}
			log.Error().Err(err).Msg("session middleware: validation error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Session validation failed",
			})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
