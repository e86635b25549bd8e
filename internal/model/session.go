package model

import (
	"time"

	"github.com/lib/pq"
)

// ScreeningSession groups the measurements of one screening encounter.
type ScreeningSession struct {
	ID                    int64                 `db:"id" json:"id"`
	UserID                int64                 `db:"user_id" json:"userId"`
	SessionName           string                `db:"session_name" json:"sessionName"`
	Protocol              *string               `db:"protocol" json:"protocol,omitempty"`
	Status                SessionStatus         `db:"status" json:"status"`
	PlantarPressureStatus PlantarPressureStatus `db:"plantar_pressure_status" json:"plantarPressureStatus"`
	Notes                 *string               `db:"notes" json:"notes,omitempty"`
	ExpectedPoints        pq.StringArray        `db:"expected_points" json:"expectedPoints,omitempty"`
	CreatedAt             time.Time             `db:"created_at" json:"createdAt"`
	CompletedAt           *time.Time            `db:"completed_at" json:"completedAt,omitempty"`
}

// Open reports whether the session can still accept measurements.
// Invariant: CompletedAt is set iff Status == completed.
func (s *ScreeningSession) Open() bool {
	return s.CompletedAt == nil && !s.Status.Terminal()
}

type CreateSessionParams struct {
	UserID         int64
	SessionName    string
	Protocol       *string
	Notes          *string
	ExpectedPoints []string
}

// SessionProgress is derived from a session's expected point set and the
// distinct points actually measured.
type SessionProgress struct {
	Percent       int      `json:"percent"`
	MeasuredCount int      `json:"measuredCount"`
	ExpectedCount int      `json:"expectedCount"`
	MissingPoints []string `json:"missingPoints"`
}
