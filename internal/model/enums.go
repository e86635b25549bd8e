package model

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

type PlantarPressureStatus string

const (
	PlantarPressureLow     PlantarPressureStatus = "Low"
	PlantarPressureNormal  PlantarPressureStatus = "Normal"
	PlantarPressureHigh    PlantarPressureStatus = "High"
	PlantarPressureUnknown PlantarPressureStatus = "Unknown"
)

func (p PlantarPressureStatus) Valid() bool {
	switch p {
	case PlantarPressureLow, PlantarPressureNormal, PlantarPressureHigh, PlantarPressureUnknown:
		return true
	}
	return false
}
