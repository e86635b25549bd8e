package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
	"github.com/liwanag/screening-server/internal/util"
)

type AccountService struct {
	userRepo      repository.UserRepository
	loginRepo     repository.LoginSessionRepository
	sessionSecret string
	sessionTTL    time.Duration
	rememberTTL   time.Duration
}

func NewAccountService(
	userRepo repository.UserRepository,
	loginRepo repository.LoginSessionRepository,
	sessionSecret string,
	sessionTTL, rememberTTL time.Duration,
) *AccountService {
	return &AccountService{
		userRepo:      userRepo,
		loginRepo:     loginRepo,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
		rememberTTL:   rememberTTL,
	}
}

type RegisterParams struct {
	Username       string
	Password       string
	FirstName      string
	Surname        string
	MiddleInitial  *string
	HospitalName   string
	HospitalRoomNo string
}

func (s *AccountService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	username := strings.ToLower(strings.TrimSpace(params.Username))
	if !util.IsValidUsername(username) {
		return nil, errors.ValidationError("username must be 3-80 characters: lowercase letters, digits, dot, dash, underscore")
	}
	if len(params.Password) < 8 {
		return nil, errors.ValidationError("password must be at least 8 characters")
	}
	if params.FirstName == "" || params.Surname == "" {
		return nil, errors.MissingRequired("first_name, surname")
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, errors.AlreadyExists("Username")
	}

	hash, err := util.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{
		Username:       username,
		PasswordHash:   hash,
		FirstName:      params.FirstName,
		Surname:        params.Surname,
		MiddleInitial:  params.MiddleInitial,
		HospitalName:   params.HospitalName,
		HospitalRoomNo: params.HospitalRoomNo,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and opens a login session. The returned token is
// the plaintext cookie value; only its HMAC is stored.
func (s *AccountService) Login(ctx context.Context, username, password string, remember bool) (*model.User, string, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive || !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", errors.Unauthorized("Invalid username or password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}
	_, err = s.loginRepo.Create(ctx, model.CreateLoginSessionParams{
		UserID:    user.ID,
		TokenHash: util.HmacSHA256(token, s.sessionSecret),
		ExpiresAt: time.Now().UTC().Add(ttl),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create login session: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, "", fmt.Errorf("update last login: %w", err)
	}

	return user, token, nil
}

func (s *AccountService) Logout(ctx context.Context, token string) error {
	return s.loginRepo.DeleteByTokenHash(ctx, util.HmacSHA256(token, s.sessionSecret))
}

// ValidateSession resolves a cookie token to its user. Expired or unknown
// tokens yield ErrCodeSessionExpired.
func (s *AccountService) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	session, err := s.loginRepo.FindByTokenHash(ctx, util.HmacSHA256(token, s.sessionSecret))
	if err != nil {
		return nil, fmt.Errorf("find login session: %w", err)
	}
	if session == nil {
		return nil, errors.SessionExpired()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, errors.SessionExpired()
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, params model.UpdateProfileParams) (*model.User, error) {
	if params.FirstName == "" || params.Surname == "" {
		return nil, errors.MissingRequired("first_name, surname")
	}
	user, err := s.userRepo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if user == nil {
		return nil, errors.NotFound("User")
	}
	return user, nil
}

// ChangePassword rotates the password hash and revokes every other login
// session for the user.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return errors.NotFound("User")
	}
	if !util.CheckPasswordHash(current, user.PasswordHash) {
		return errors.Unauthorized("Current password is incorrect")
	}
	if len(next) < 8 {
		return errors.ValidationError("password must be at least 8 characters")
	}

	hash, err := util.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.loginRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke login sessions: %w", err)
	}
	return nil
}
