package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/liwanag/screening-server/internal/model"
	"github.com/liwanag/screening-server/internal/repository"
)

type ChartService struct {
	sessionRepo     repository.SessionRepository
	measurementRepo repository.MeasurementRepository
}

func NewChartService(sessionRepo repository.SessionRepository, measurementRepo repository.MeasurementRepository) *ChartService {
	return &ChartService{sessionRepo: sessionRepo, measurementRepo: measurementRepo}
}

type DashboardSummary struct {
	TotalSessions     int                      `json:"totalSessions"`
	TotalMeasurements int                      `json:"totalMeasurements"`
	RecentSessions    []model.ScreeningSession `json:"recentSessions"`
}

// Summary aggregates the headline dashboard numbers plus the five most
// recent sessions.
func (s *ChartService) Summary(ctx context.Context, userID int64) (*DashboardSummary, error) {
	totalSessions, err := s.sessionRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	totalMeasurements, err := s.measurementRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count measurements: %w", err)
	}
	recent, err := s.sessionRepo.ListByUser(ctx, userID, 5, 0)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	return &DashboardSummary{
		TotalSessions:     totalSessions,
		TotalMeasurements: totalMeasurements,
		RecentSessions:    recent,
	}, nil
}

// FootSeries holds per-slot VPT series aligned with Labels. Buckets where a
// point has no reading carry nil so chart lines break instead of dropping
// to zero.
type FootSeries struct {
	Labels  []string   `json:"labels"`
	Heel    []*float64 `json:"heel"`
	Instep  []*float64 `json:"instep"`
	FifthMT []*float64 `json:"fifth_mt"`
	ThirdMT []*float64 `json:"third_mt"`
	FirstMT []*float64 `json:"first_mt"`
	BigToe  []*float64 `json:"big_toe"`
}

func (s *FootSeries) append(label string, values map[model.PointSlot]float64) {
	s.Labels = append(s.Labels, label)
	s.Heel = append(s.Heel, slotValue(values, model.SlotHeel))
	s.Instep = append(s.Instep, slotValue(values, model.SlotInstep))
	s.FifthMT = append(s.FifthMT, slotValue(values, model.SlotFifthMT))
	s.ThirdMT = append(s.ThirdMT, slotValue(values, model.SlotThirdMT))
	s.FirstMT = append(s.FirstMT, slotValue(values, model.SlotFirstMT))
	s.BigToe = append(s.BigToe, slotValue(values, model.SlotBigToe))
}

func slotValue(values map[model.PointSlot]float64, slot model.PointSlot) *float64 {
	if v, ok := values[slot]; ok {
		return &v
	}
	return nil
}

type VitalsSeries struct {
	Labels      []string   `json:"labels"`
	Temperature []*float64 `json:"temperature"`
	SpO2        []*float64 `json:"spo2"`
}

type ChartData struct {
	RightFoot FootSeries   `json:"rightFoot"`
	LeftFoot  FootSeries   `json:"leftFoot"`
	Vitals    VitalsSeries `json:"vitals"`
}

// ChartData aggregates the user's measurements from the last N days into
// time-bucketed series for the dashboard charts.
func (s *ChartService) ChartData(ctx context.Context, userID int64, days int) (*ChartData, error) {
	now := time.Now().UTC()
	measurements, err := s.measurementRepo.FindByUserSince(ctx, userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	return BuildChartData(measurements, now), nil
}

type chartBucket struct {
	first time.Time
	vpt   map[model.Foot]map[model.PointSlot]float64
	temps []float64
	spo2s []float64
}

// BuildChartData buckets measurements by formatted timestamp. When the
// newest measurement is under 24 hours old labels carry the time of day,
// otherwise readings collapse into daily buckets. Within a bucket the last
// VPT reading per point wins and vitals are averaged. Measurements whose
// point name does not parse contribute to no series.
func BuildChartData(measurements []model.Measurement, now time.Time) *ChartData {
	data := &ChartData{
		RightFoot: emptyFootSeries(),
		LeftFoot:  emptyFootSeries(),
		Vitals: VitalsSeries{
			Labels:      []string{},
			Temperature: []*float64{},
			SpO2:        []*float64{},
		},
	}

	format := "01/02"
	if len(measurements) > 0 {
		latest := measurements[0].Timestamp
		for _, m := range measurements[1:] {
			if m.Timestamp.After(latest) {
				latest = m.Timestamp
			}
		}
		if now.Sub(latest) < 24*time.Hour {
			format = "01/02 15:04"
		}
	}

	buckets := make(map[string]*chartBucket)
	for _, m := range measurements {
		point, ok := model.ParsePointName(m.PointName)
		if !ok {
			continue
		}

		label := m.Timestamp.Format(format)
		bucket, exists := buckets[label]
		if !exists {
			bucket = &chartBucket{
				first: m.Timestamp,
				vpt: map[model.Foot]map[model.PointSlot]float64{
					model.FootRight: {},
					model.FootLeft:  {},
				},
			}
			buckets[label] = bucket
		}

		if m.VPTVoltage != nil {
			bucket.vpt[point.Foot][point.Slot] = *m.VPTVoltage
		}
		if m.Temperature != nil {
			bucket.temps = append(bucket.temps, *m.Temperature)
		}
		if m.SpO2 != nil {
			bucket.spo2s = append(bucket.spo2s, float64(*m.SpO2))
		}
	}

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return buckets[labels[i]].first.Before(buckets[labels[j]].first)
	})

	for _, label := range labels {
		bucket := buckets[label]
		data.RightFoot.append(label, bucket.vpt[model.FootRight])
		data.LeftFoot.append(label, bucket.vpt[model.FootLeft])
		data.Vitals.Labels = append(data.Vitals.Labels, label)
		data.Vitals.Temperature = append(data.Vitals.Temperature, meanOrNil(bucket.temps))
		data.Vitals.SpO2 = append(data.Vitals.SpO2, meanOrNil(bucket.spo2s))
	}

	return data
}

func emptyFootSeries() FootSeries {
	return FootSeries{
		Labels:  []string{},
		Heel:    []*float64{},
		Instep:  []*float64{},
		FifthMT: []*float64{},
		ThirdMT: []*float64{},
		FirstMT: []*float64{},
		BigToe:  []*float64{},
	}
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return nil
	}
	return &mean
}

// TimelineSeries is the raw per-point measurement history, unbucketed.
type TimelineSeries struct {
	Timestamps []string   `json:"timestamps"`
	VPTValues  []*float64 `json:"vpt_values"`
	TempValues []*float64 `json:"temp_values"`
	SpO2Values []*int     `json:"spo2_values"`
}

// Timeline returns every measurement in the window grouped by point name,
// optionally restricted to a single point, in chronological order.
func (s *ChartService) Timeline(ctx context.Context, userID int64, days int, pointName string) (map[string]*TimelineSeries, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)

	var (
		measurements []model.Measurement
		err          error
	)
	if pointName != "" {
		measurements, err = s.measurementRepo.FindByUserSinceForPoint(ctx, userID, from, now, pointName)
	} else {
		measurements, err = s.measurementRepo.FindByUserSince(ctx, userID, from, now)
	}
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}

	timeline := make(map[string]*TimelineSeries)
	for _, m := range measurements {
		series, ok := timeline[m.PointName]
		if !ok {
			series = &TimelineSeries{
				Timestamps: []string{},
				VPTValues:  []*float64{},
				TempValues: []*float64{},
				SpO2Values: []*int{},
			}
			timeline[m.PointName] = series
		}
		series.Timestamps = append(series.Timestamps, m.Timestamp.Format("01/02 15:04"))
		series.VPTValues = append(series.VPTValues, m.VPTVoltage)
		series.TempValues = append(series.TempValues, m.Temperature)
		series.SpO2Values = append(series.SpO2Values, m.SpO2)
	}
	return timeline, nil
}
