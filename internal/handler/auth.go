package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/audit"
	apperrors "github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/middleware"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/service"
)

type AuthHandler struct {
	accounts     *service.AccountService
	session      *middleware.SessionMiddleware
	loginLimiter *middleware.LoginRateLimiter
	sessionTTL   time.Duration
	rememberTTL  time.Duration
	isProduction bool
}

func NewAuthHandler(
	accounts *service.AccountService,
	session *middleware.SessionMiddleware,
	loginLimiter *middleware.LoginRateLimiter,
	sessionTTL, rememberTTL time.Duration,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		session:      session,
		loginLimiter: loginLimiter,
		sessionTTL:   sessionTTL,
		rememberTTL:  rememberTTL,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginLimiter.Handler).Post("/register", h.Register)
	r.With(h.loginLimiter.Handler).Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.session.Handler)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Put("/profile", h.UpdateProfile)
		r.Post("/change-password", h.ChangePassword)
	})

	return r
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username       string  `json:"username"`
		Password       string  `json:"password"`
		FirstName      string  `json:"firstName"`
		Surname        string  `json:"surname"`
		MiddleInitial  *string `json:"middleInitial"`
		HospitalName   string  `json:"hospitalName"`
		HospitalRoomNo string  `json:"hospitalRoomNo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterParams{
		Username:       req.Username,
		Password:       req.Password,
		FirstName:      req.FirstName,
		Surname:        req.Surname,
		MiddleInitial:  req.MiddleInitial,
		HospitalName:   req.HospitalName,
		HospitalRoomNo: req.HospitalRoomNo,
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("register failed")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventRegister, UserID: user.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"user": formatUser(user)})
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req.Username, req.Password, req.Remember)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventLoginFailure,
				Details: map[string]interface{}{"username": req.Username},
			})
		} else {
			log.Error().Err(err).Msg("login failed")
		}
		writeError(w, err)
		return
	}

	ttl := h.sessionTTL
	if req.Remember {
		ttl = h.rememberTTL
	}
	middleware.SetSessionCookie(w, token, ttl, h.isProduction)

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, UserID: user.ID})
	writeJSON(w, http.StatusOK, map[string]any{"user": formatUser(user)})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.accounts.Logout(r.Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("logout failed")
		}
	}
	middleware.ClearSessionCookie(w)

	if user != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, UserID: user.ID})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": formatUser(user)})
}

// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		FirstName      string  `json:"firstName"`
		Surname        string  `json:"surname"`
		MiddleInitial  *string `json:"middleInitial"`
		HospitalName   string  `json:"hospitalName"`
		HospitalRoomNo string  `json:"hospitalRoomNo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), user.ID, model.UpdateProfileParams{
		FirstName:      req.FirstName,
		Surname:        req.Surname,
		MiddleInitial:  req.MiddleInitial,
		HospitalName:   req.HospitalName,
		HospitalRoomNo: req.HospitalRoomNo,
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("profile update failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": formatUser(updated)})
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("password change failed")
		}
		writeError(w, err)
		return
	}

	// Every login session was revoked, this one included.
	middleware.ClearSessionCookie(w)

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPasswordChange, UserID: user.ID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
