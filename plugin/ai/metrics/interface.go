// Package metrics aggregates routing and prediction-accuracy counters in hourly buckets.
package metrics

import (
	"context"
	"time"
)

// Recorder is the write side consumed by the assistant and the predictive engine.
type Recorder interface {
	// RecordRoute records how a chat message was answered.
	RecordRoute(ctx context.Context, intent string, local bool, latency time.Duration)

	// RecordPredictionOutcome records accuracy feedback for one prediction.
	RecordPredictionOutcome(ctx context.Context, kind string, accurate bool)
}

// MetricsService adds the read side.
type MetricsService interface {
	Recorder

	// GetStats returns aggregated statistics for the given time range.
	GetStats(ctx context.Context, timeRange TimeRange) (*Stats, error)
}

// TimeRange represents a time range for querying metrics. Zero bounds are open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r TimeRange) contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Stats is the aggregated view.
type Stats struct {
	RouteCount  int64                    `json:"routeCount"`
	LocalCount  int64                    `json:"localCount"`
	LatencyP50  time.Duration            `json:"latencyP50"`
	LatencyP95  time.Duration            `json:"latencyP95"`
	Routes      map[string]*RouteStat    `json:"routes"`
	Predictions map[string]*AccuracyStat `json:"predictions"`
}

// LocalRate is the share of messages answered without the LLM.
func (s *Stats) LocalRate() float64 {
	if s.RouteCount == 0 {
		return 0
	}
	return float64(s.LocalCount) / float64(s.RouteCount)
}

// RouteStat is per-intent routing.
type RouteStat struct {
	Count      int64         `json:"count"`
	LocalCount int64         `json:"localCount"`
	AvgLatency time.Duration `json:"avgLatency"`
}

// AccuracyStat is per-kind prediction feedback.
type AccuracyStat struct {
	Total    int64   `json:"total"`
	Accurate int64   `json:"accurate"`
	Rate     float64 `json:"rate"`
}

func newStats() *Stats {
	return &Stats{
		Routes:      map[string]*RouteStat{},
		Predictions: map[string]*AccuracyStat{},
	}
}
