package service

import (
	"context"
	"fmt"

	"github.com/liwanag/screening-server/internal/model"
)

// Snapshot slot keys as the dashboard widgets expect them. These predate the
// canonical slot identifiers and use ordinal metatarsal names.
var snapshotSlotKeys = map[model.PointSlot]string{
	model.SlotHeel:    "heel",
	model.SlotInstep:  "instep",
	model.SlotFifthMT: "5th_mt",
	model.SlotThirdMT: "3rd_mt",
	model.SlotFirstMT: "1st_mt",
	model.SlotBigToe:  "big_toe",
}

const snapshotTimeFormat = "03:04 PM"

type VPTReading struct {
	Value  float64 `json:"value"`
	Status string  `json:"status"`
	Time   string  `json:"time"`
}

// CurrentVPTReadings returns the latest VPT reading per point for both feet,
// classified against per-slot voltage thresholds. Points without a reading
// report "No Data".
func (s *ChartService) CurrentVPTReadings(ctx context.Context, userID int64) (map[model.Foot]map[string]VPTReading, error) {
	latest, err := s.measurementRepo.LatestVPTByPoint(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest vpt readings: %w", err)
	}

	byPoint := make(map[model.FootPoint]model.Measurement, len(latest))
	for _, m := range latest {
		if point, ok := model.ParsePointName(m.PointName); ok {
			byPoint[point] = m
		}
	}

	readings := map[model.Foot]map[string]VPTReading{
		model.FootRight: {},
		model.FootLeft:  {},
	}
	for _, point := range model.AllPoints() {
		key := snapshotSlotKeys[point.Slot]
		m, ok := byPoint[point]
		if !ok || m.VPTVoltage == nil {
			readings[point.Foot][key] = VPTReading{Value: 0, Status: "No Data", Time: "--"}
			continue
		}
		readings[point.Foot][key] = VPTReading{
			Value:  *m.VPTVoltage,
			Status: ClassifyVPT(point.Slot, *m.VPTVoltage),
			Time:   m.Timestamp.Format(snapshotTimeFormat),
		}
	}
	return readings, nil
}

// ClassifyVPT labels a VPT voltage for one slot. The 5th and 1st metatarsal
// points tolerate up to 10V before flagging; every other point 5V. Up to
// 1.5x the threshold is Elevated, beyond that High.
func ClassifyVPT(slot model.PointSlot, voltage float64) string {
	threshold := 5.0
	if slot == model.SlotFifthMT || slot == model.SlotFirstMT {
		threshold = 10.0
	}
	switch {
	case voltage <= threshold:
		return "Normal"
	case voltage <= threshold*1.5:
		return "Elevated"
	default:
		return "High"
	}
}

type VitalsReading struct {
	Temperature float64 `json:"temperature"`
	SpO2        int     `json:"spo2"`
	Status      string  `json:"status"`
	Time        string  `json:"time"`
}

// CurrentVitalsReadings returns the latest reading per point that carries
// both temperature and SpO2, with a combined normality status.
func (s *ChartService) CurrentVitalsReadings(ctx context.Context, userID int64) (map[model.Foot]map[string]VitalsReading, error) {
	latest, err := s.measurementRepo.LatestVitalsByPoint(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest vitals readings: %w", err)
	}

	byPoint := make(map[model.FootPoint]model.Measurement, len(latest))
	for _, m := range latest {
		if point, ok := model.ParsePointName(m.PointName); ok {
			byPoint[point] = m
		}
	}

	readings := map[model.Foot]map[string]VitalsReading{
		model.FootRight: {},
		model.FootLeft:  {},
	}
	for _, point := range model.AllPoints() {
		key := snapshotSlotKeys[point.Slot]
		m, ok := byPoint[point]
		if !ok || m.Temperature == nil || m.SpO2 == nil {
			readings[point.Foot][key] = VitalsReading{Status: "No Data", Time: "--"}
			continue
		}
		readings[point.Foot][key] = VitalsReading{
			Temperature: *m.Temperature,
			SpO2:        *m.SpO2,
			Status:      ClassifyVitals(*m.Temperature, *m.SpO2),
			Time:        m.Timestamp.Format(snapshotTimeFormat),
		}
	}
	return readings, nil
}

// ClassifyVitals combines temperature and SpO2 normality into one label.
// Normal temperature is 36.0-37.5°C, normal SpO2 95-100%.
func ClassifyVitals(temperature float64, spo2 int) string {
	tempNormal := temperature >= 36.0 && temperature <= 37.5
	spo2Normal := spo2 >= 95 && spo2 <= 100

	switch {
	case tempNormal && spo2Normal:
		return "Normal"
	case !tempNormal && spo2Normal:
		return "Temp Abnormal"
	case tempNormal && !spo2Normal:
		return "SpO2 Abnormal"
	default:
		return "Both Abnormal"
	}
}
