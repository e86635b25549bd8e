package database

import (
	"context"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               BIGSERIAL PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	password_hash    TEXT NOT NULL,
	first_name       TEXT NOT NULL,
	surname          TEXT NOT NULL,
	middle_initial   TEXT,
	hospital_name    TEXT NOT NULL,
	hospital_room_no TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login       TIMESTAMPTZ,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS login_sessions (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token_hash TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS screening_sessions (
	id                      BIGSERIAL PRIMARY KEY,
	user_id                 BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	session_name            TEXT NOT NULL,
	protocol                TEXT,
	status                  TEXT NOT NULL DEFAULT 'active',
	plantar_pressure_status TEXT NOT NULL DEFAULT 'Unknown',
	notes                   TEXT,
	expected_points         TEXT[],
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at            TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_screening_sessions_user
	ON screening_sessions(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS measurements (
	id          BIGSERIAL PRIMARY KEY,
	session_id  BIGINT NOT NULL REFERENCES screening_sessions(id) ON DELETE CASCADE,
	point_name  TEXT NOT NULL,
	vpt_voltage DOUBLE PRECISION,
	temperature DOUBLE PRECISION,
	spo2        INTEGER,
	timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	notes       TEXT,
	is_valid    BOOLEAN NOT NULL DEFAULT TRUE,
	retry_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_measurements_session
	ON measurements(session_id, timestamp);

CREATE TABLE IF NOT EXISTS api_keys (
	id          BIGSERIAL PRIMARY KEY,
	key_name    TEXT NOT NULL,
	key_hash    TEXT NOT NULL UNIQUE,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	usage_count BIGINT NOT NULL DEFAULT 0,
	last_used   TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates all tables and indexes if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
