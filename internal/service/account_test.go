package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/liwanag/screening-server/internal/errors"
	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/util"
)

const testSecret = "test-session-secret-for-unit-tests-only"

func newTestAccountService(users *mockUserRepo, logins *mockLoginSessionRepo) *AccountService {
	return NewAccountService(users, logins, testSecret, 24*time.Hour, 168*time.Hour)
}

func TestAccountServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with normalized username", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		users.On("FindByUsername", ctx, "nurse.reyes").Return(nil, nil)
		users.On("Create", ctx, mock.MatchedBy(func(p model.CreateUserParams) bool {
			return p.Username == "nurse.reyes" && p.PasswordHash != "secure-password" && p.PasswordHash != ""
		})).Return(&model.User{ID: 1, Username: "nurse.reyes"}, nil)

		user, err := svc.Register(ctx, RegisterParams{
			Username:       "  Nurse.Reyes  ",
			Password:       "secure-password",
			FirstName:      "Ana",
			Surname:        "Reyes",
			HospitalName:   "PGH",
			HospitalRoomNo: "204",
		})
		assert.NoError(t, err)
		assert.Equal(t, "nurse.reyes", user.Username)
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		users.On("FindByUsername", ctx, "taken").Return(&model.User{ID: 2, Username: "taken"}, nil)

		_, err := svc.Register(ctx, RegisterParams{
			Username:  "taken",
			Password:  "secure-password",
			FirstName: "Ana",
			Surname:   "Reyes",
		})
		assert.Equal(t, errors.ErrCodeAlreadyExists, errors.GetCode(err))
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		svc := newTestAccountService(new(mockUserRepo), new(mockLoginSessionRepo))

		_, err := svc.Register(ctx, RegisterParams{Username: "ab", Password: "secure-password", FirstName: "A", Surname: "B"})
		assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc := newTestAccountService(new(mockUserRepo), new(mockLoginSessionRepo))

		_, err := svc.Register(ctx, RegisterParams{Username: "nurse", Password: "short", FirstName: "A", Surname: "B"})
		assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
	})
}

func TestAccountServiceLogin(t *testing.T) {
	ctx := context.Background()

	hash, err := util.HashPassword("secure-password")
	assert.NoError(t, err)
	activeUser := &model.User{ID: 1, Username: "nurse", PasswordHash: hash, IsActive: true}

	t.Run("issues session token on valid credentials", func(t *testing.T) {
		users := new(mockUserRepo)
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(users, logins)

		users.On("FindByUsername", ctx, "nurse").Return(activeUser, nil)
		logins.On("Create", ctx, mock.MatchedBy(func(p model.CreateLoginSessionParams) bool {
			return p.UserID == 1 && p.TokenHash != ""
		})).Return(&model.LoginSession{ID: 1, UserID: 1}, nil)
		users.On("UpdateLastLogin", ctx, int64(1), mock.Anything).Return(nil)

		user, token, err := svc.Login(ctx, "Nurse", "secure-password", false)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("remember extends session lifetime", func(t *testing.T) {
		users := new(mockUserRepo)
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(users, logins)

		users.On("FindByUsername", ctx, "nurse").Return(activeUser, nil)
		logins.On("Create", ctx, mock.MatchedBy(func(p model.CreateLoginSessionParams) bool {
			return time.Until(p.ExpiresAt) > 100*time.Hour
		})).Return(&model.LoginSession{ID: 1, UserID: 1}, nil)
		users.On("UpdateLastLogin", ctx, int64(1), mock.Anything).Return(nil)

		_, _, err := svc.Login(ctx, "nurse", "secure-password", true)
		assert.NoError(t, err)
		logins.AssertExpectations(t)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		users.On("FindByUsername", ctx, "nurse").Return(activeUser, nil)

		_, _, err := svc.Login(ctx, "nurse", "wrong", false)
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.GetCode(err))
	})

	t.Run("unknown user is unauthorized", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		users.On("FindByUsername", ctx, "ghost").Return(nil, nil)

		_, _, err := svc.Login(ctx, "ghost", "secure-password", false)
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.GetCode(err))
	})

	t.Run("inactive user is unauthorized", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		inactive := &model.User{ID: 1, Username: "nurse", PasswordHash: hash, IsActive: false}
		users.On("FindByUsername", ctx, "nurse").Return(inactive, nil)

		_, _, err := svc.Login(ctx, "nurse", "secure-password", false)
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.GetCode(err))
	})
}

func TestAccountServiceValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves token to user", func(t *testing.T) {
		users := new(mockUserRepo)
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(users, logins)

		token := "plaintext-token"
		logins.On("FindByTokenHash", ctx, util.HmacSHA256(token, testSecret)).
			Return(&model.LoginSession{ID: 1, UserID: 7}, nil)
		users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, IsActive: true}, nil)

		user, err := svc.ValidateSession(ctx, token)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
	})

	t.Run("unknown token is expired", func(t *testing.T) {
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(new(mockUserRepo), logins)

		logins.On("FindByTokenHash", ctx, mock.Anything).Return(nil, nil)

		_, err := svc.ValidateSession(ctx, "stale")
		assert.Equal(t, errors.ErrCodeSessionExpired, errors.GetCode(err))
	})

	t.Run("deactivated user is expired", func(t *testing.T) {
		users := new(mockUserRepo)
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(users, logins)

		logins.On("FindByTokenHash", ctx, mock.Anything).Return(&model.LoginSession{ID: 1, UserID: 7}, nil)
		users.On("FindByID", ctx, int64(7)).Return(&model.User{ID: 7, IsActive: false}, nil)

		_, err := svc.ValidateSession(ctx, "token")
		assert.Equal(t, errors.ErrCodeSessionExpired, errors.GetCode(err))
	})
}

func TestAccountServiceChangePassword(t *testing.T) {
	ctx := context.Background()

	hash, err := util.HashPassword("old-password")
	assert.NoError(t, err)

	t.Run("rotates hash and revokes sessions", func(t *testing.T) {
		users := new(mockUserRepo)
		logins := new(mockLoginSessionRepo)
		svc := newTestAccountService(users, logins)

		users.On("FindByID", ctx, int64(1)).Return(&model.User{ID: 1, PasswordHash: hash}, nil)
		users.On("UpdatePassword", ctx, int64(1), mock.Anything).Return(nil)
		logins.On("DeleteByUserID", ctx, int64(1)).Return(nil)

		err := svc.ChangePassword(ctx, 1, "old-password", "new-password")
		assert.NoError(t, err)
		logins.AssertExpectations(t)
	})

	t.Run("wrong current password is unauthorized", func(t *testing.T) {
		users := new(mockUserRepo)
		svc := newTestAccountService(users, new(mockLoginSessionRepo))

		users.On("FindByID", ctx, int64(1)).Return(&model.User{ID: 1, PasswordHash: hash}, nil)

		err := svc.ChangePassword(ctx, 1, "wrong", "new-password")
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.GetCode(err))
	})
}
