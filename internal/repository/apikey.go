package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/liwanag/screening-server/internal/database"
	"github.com/liwanag/screening-server/internal/model"
)

type APIKeyRepository interface {
	FindActiveByHash(ctx context.Context, keyHash string) (*model.APIKey, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error)
	// RecordUsage bumps the usage counter and last-used timestamp. Called on
	// every successful verification to get call-frequency telemetry for free.
	RecordUsage(ctx context.Context, id int64, at time.Time) error
}

type apiKeyRepo struct {
	db database.DBTX
}

func NewAPIKeyRepository(db *sqlx.DB) APIKeyRepository {
	return &apiKeyRepo{db: db}
}

func (r *apiKeyRepo) FindActiveByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.GetContext(ctx, &key, `
		SELECT * FROM api_keys WHERE key_hash = $1 AND is_active = TRUE
	`, keyHash)
	return HandleNotFound(&key, err)
}

func (r *apiKeyRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM api_keys
	`)
	return count, err
}

func (r *apiKeyRepo) Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.GetContext(ctx, &key, `
		INSERT INTO api_keys (key_name, key_hash)
		VALUES ($1, $2)
		RETURNING *
	`, params.KeyName, params.KeyHash)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepo) RecordUsage(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET
			usage_count = usage_count + 1,
			last_used = $2
		WHERE id = $1
	`, id, at)
	return err
}
