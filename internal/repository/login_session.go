package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/model"
)

type LoginSessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.LoginSession, error)
	Create(ctx context.Context, params model.CreateLoginSessionParams) (*model.LoginSession, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type loginSessionRepo struct {
	db database.DBTX
}

func NewLoginSessionRepository(db *sqlx.DB) LoginSessionRepository {
	return &loginSessionRepo{db: db}
}

func (r *loginSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.LoginSession, error) {
	var session model.LoginSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM login_sessions
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *loginSessionRepo) Create(ctx context.Context, params model.CreateLoginSessionParams) (*model.LoginSession, error) {
	var session model.LoginSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO login_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.UserID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *loginSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM login_sessions WHERE token_hash = $1
	`, tokenHash)
	return err
}

func (r *loginSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM login_sessions WHERE user_id = $1
	`, userID)
	return err
}

func (r *loginSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM login_sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
