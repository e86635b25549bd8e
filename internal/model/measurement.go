package model

import (
	"fmt"
	"time"
)

// Sensor range bounds. Readings outside these bounds are flagged, not
// rejected: device data is never dropped for a sensor glitch.
const (
	VPTMinVolts = 0.0
	VPTMaxVolts = 50.0
	TempMinC    = 25.0
	TempMaxC    = 45.0
	SpO2Min     = 70
	SpO2Max     = 100
)

type Measurement struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   int64     `db:"session_id" json:"sessionId"`
	PointName   string    `db:"point_name" json:"pointName"`
	VPTVoltage  *float64  `db:"vpt_voltage" json:"vptVoltage,omitempty"`
	Temperature *float64  `db:"temperature" json:"temperature,omitempty"`
	SpO2        *int      `db:"spo2" json:"spo2,omitempty"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	IsValid     bool      `db:"is_valid" json:"isValid"`
	RetryCount  int       `db:"retry_count" json:"retryCount"`
}

// RangeErrors returns one message per populated field outside its sensor
// range. An empty result means the measurement is within range.
func (m *Measurement) RangeErrors() []string {
	var errs []string
	if m.VPTVoltage != nil && (*m.VPTVoltage < VPTMinVolts || *m.VPTVoltage > VPTMaxVolts) {
		errs = append(errs, fmt.Sprintf("VPT voltage must be between %g-%gV", VPTMinVolts, VPTMaxVolts))
	}
	if m.Temperature != nil && (*m.Temperature < TempMinC || *m.Temperature > TempMaxC) {
		errs = append(errs, fmt.Sprintf("temperature must be between %g-%g°C", TempMinC, TempMaxC))
	}
	if m.SpO2 != nil && (*m.SpO2 < SpO2Min || *m.SpO2 > SpO2Max) {
		errs = append(errs, fmt.Sprintf("SpO2 must be between %d-%d%%", SpO2Min, SpO2Max))
	}
	return errs
}

// Validate recomputes the advisory validity flag from the range checks.
func (m *Measurement) Validate() []string {
	errs := m.RangeErrors()
	m.IsValid = len(errs) == 0
	return errs
}

// QualityScore derives a 0-100 score from completeness of the three sensor
// fields plus a validity bonus. Never stored; recomputed on read.
func (m *Measurement) QualityScore() float64 {
	populated := 0
	if m.VPTVoltage != nil {
		populated++
	}
	if m.Temperature != nil {
		populated++
	}
	if m.SpO2 != nil {
		populated++
	}

	completeness := float64(populated) / 3.0 * 100
	bonus := 10.0
	if !m.IsValid {
		bonus = -20.0
	}

	score := completeness + bonus
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

type CreateMeasurementParams struct {
	SessionID   int64
	PointName   string
	VPTVoltage  *float64
	Temperature *float64
	SpO2        *int
	Notes       *string
	IsValid     bool
}
