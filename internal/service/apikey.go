package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
	"github.com/liwanag/screening-server/internal/util"
)

type APIKeyService struct {
	keyRepo repository.APIKeyRepository
}

func NewAPIKeyService(keyRepo repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{keyRepo: keyRepo}
}

// Verify checks a plaintext device key against the stored hashes. A nil
// result with nil error means the key is unknown or inactive. Every
// successful verification bumps the key's usage counter and last-used
// timestamp.
func (s *APIKeyService) Verify(ctx context.Context, key string) (*model.APIKey, error) {
	apiKey, err := s.keyRepo.FindActiveByHash(ctx, util.HashKey(key))
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	if apiKey == nil {
		return nil, nil
	}

	if err := s.keyRepo.RecordUsage(ctx, apiKey.ID, time.Now().UTC()); err != nil {
		// Telemetry only; the request itself is already authorized.
		log.Warn().Err(err).Int64("keyId", apiKey.ID).Msg("failed to record api key usage")
	}

	return apiKey, nil
}

// Bootstrap ensures at least one device key exists. An empty key table with
// no configured plaintext is a startup error; a default key is never minted.
func (s *APIKeyService) Bootstrap(ctx context.Context, plaintext string) error {
	count, err := s.keyRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count api keys: %w", err)
	}
	if count > 0 {
		return nil
	}

	if plaintext == "" {
		return fmt.Errorf("no api keys provisioned and DEVICE_API_KEY is not set")
	}

	keyName := "device-" + uuid.NewString()[:8]
	key, err := s.keyRepo.Create(ctx, model.CreateAPIKeyParams{
		KeyName: keyName,
		KeyHash: util.HashKey(plaintext),
	})
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	log.Info().
		Str("keyName", key.KeyName).
		Str("key", util.MaskKey(plaintext)).
		Msg("default device api key created")
	return nil
}
