package model

import (
	"time"
)

// APIKey is a device credential. Only the SHA-256 hash of the secret is
// stored; the plaintext is shown once at provisioning time.
type APIKey struct {
	ID         int64      `db:"id" json:"id"`
	KeyName    string     `db:"key_name" json:"keyName"`
	KeyHash    string     `db:"key_hash" json:"-"`
	IsActive   bool       `db:"is_active" json:"isActive"`
	UsageCount int64      `db:"usage_count" json:"usageCount"`
	LastUsed   *time.Time `db:"last_used" json:"lastUsed,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

type CreateAPIKeyParams struct {
	KeyName string
	KeyHash string
}
