package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/isdelr/sitepulse/internal/models"
	"github.com/isdelr/sitepulse/internal/telemetry"
)

// PerformanceMonitor is the name of the performance monitor.
const PerformanceMonitor = "performance"

const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
	RatingUnrated          = "unrated"
)

type threshold struct {
	good, poor float64
}

var vitalThresholds = map[string]threshold{
	"LCP":                 {2500, 4000},
	"FCP":                 {1800, 3000},
	"FID":                 {100, 300},
	"INP":                 {200, 500},
	"CLS":                 {0.1, 0.25},
	"TTFB":                {800, 1800},
	"host_cpu_percent":    {70, 90},
	"host_memory_percent": {80, 95},
}

// PerformanceService groups measurements by metric name and rating.
type PerformanceService struct {
	*telemetry.Aggregator
}

// NewPerformanceService creates a new PerformanceService.
func NewPerformanceService(opts ...telemetry.Option) *PerformanceService {
	return &PerformanceService{Aggregator: telemetry.New(PerformanceMonitor, classifyVital, opts...)}
}

// RecordMetric records one measurement.
func (s *PerformanceService) RecordMetric(name string, value float64, ctx telemetry.Context) telemetry.Event {
	return s.Record(telemetry.CategoryMetric, models.WebVital{Name: name, Value: value}, ctx)
}

// Ingest records a measurement posted by the performance widget.
func (s *PerformanceService) Ingest(req models.RecordRequest) (telemetry.Event, error) {
	v, err := decodePayload[models.WebVital](req.Payload)
	if err != nil {
		return telemetry.Event{}, fmt.Errorf("invalid measurement: %w", err)
	}
	return s.Record(telemetry.CategoryMetric, v, req.Context), nil
}

// Metrics derives per metric summaries from the kept measurements.
func (s *PerformanceService) Metrics() models.PerformanceMetrics {
	snap := s.Snapshot()
	m := models.PerformanceMetrics{
		Ratings:      snap.ByLevel,
		Measurements: snap.Total,
	}
	m.Metrics = telemetry.Derive("performance.metrics", map[string]models.MetricSummary{}, func() map[string]models.MetricSummary {
		values := make(map[string][]float64)
		ratings := make(map[string]map[string]int)
		// Recent is newest first; walk it backwards so values stay in arrival order.
		recent := s.Recent(0)
		for i := len(recent) - 1; i >= 0; i-- {
			v, ok := recent[i].Payload.(models.WebVital)
			if !ok || !finite(v.Value) {
				continue
			}
			name := canonicalMetric(v.Name)
			values[name] = append(values[name], v.Value)
			if ratings[name] == nil {
				ratings[name] = make(map[string]int)
			}
			ratings[name][recent[i].Level]++
		}
		out := make(map[string]models.MetricSummary, len(values))
		for name, vs := range values {
			p75 := percentile(vs, 0.75)
			out[name] = models.MetricSummary{
				Count:   len(vs),
				Average: mean(vs),
				P75:     p75,
				Latest:  vs[len(vs)-1],
				Rating:  rate(name, p75),
				Ratings: ratings[name],
			}
		}
		return out
	})
	return m
}

// View returns the monitor specific figures.
func (s *PerformanceService) View() any { return s.Metrics() }

func classifyVital(_ telemetry.Category, payload any) telemetry.Descriptor {
	v, ok := payload.(models.WebVital)
	if !ok {
		return telemetry.Descriptor{}
	}
	name := canonicalMetric(v.Name)
	rating := rate(name, v.Value)
	return telemetry.Descriptor{
		Fields: []string{name, rating},
		Level:  rating,
		Label:  name + " " + rating,
		Attrs:  map[string]string{"metric": name},
	}
}

// canonicalMetric upper-cases web vital names and leaves custom metrics alone.
func canonicalMetric(name string) string {
	name = strings.TrimSpace(name)
	if _, ok := vitalThresholds[strings.ToUpper(name)]; ok {
		return strings.ToUpper(name)
	}
	return name
}

func rate(name string, value float64) string {
	t, ok := vitalThresholds[name]
	if !ok || !finite(value) {
		return RatingUnrated
	}
	switch {
	case value <= t.good:
		return RatingGood
	case value <= t.poor:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// percentile uses the nearest-rank method.
func percentile(vs []float64, p float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
