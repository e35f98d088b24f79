package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/store"
)

// ErrMetricsNotConfigured is returned when metrics persistence is not configured.
var ErrMetricsNotConfigured = errors.New("metrics persistence not configured")

// Service implements MetricsService with optional persistence.
type Service struct {
	aggregator *Aggregator
	persister  *Persister
}

// NewService creates a new metrics service.
// If store is nil, metrics are only aggregated in memory.
func NewService(s *store.Store, cfg PersisterConfig, clock aitime.Clock) *Service {
	svc := &Service{
		aggregator: NewAggregator(clock),
	}

	if s != nil {
		svc.persister = NewPersister(s, svc.aggregator, cfg, clock)
	} else {
		slog.Warn("metrics service initialized without store (persistence disabled)")
	}

	return svc
}

// Start begins periodic persistence when a store is configured.
func (s *Service) Start(ctx context.Context) {
	if s.persister != nil {
		s.persister.Start(ctx)
	}
}

// Close stops the metrics service and flushes remaining data.
func (s *Service) Close() {
	if s.persister != nil {
		s.persister.Close()
	}
}

// RecordRoute records how a chat message was answered.
func (s *Service) RecordRoute(_ context.Context, intent string, local bool, latency time.Duration) {
	s.aggregator.RecordRoute(intent, local, latency)
}

// RecordPredictionOutcome records accuracy feedback.
func (s *Service) RecordPredictionOutcome(_ context.Context, kind string, accurate bool) {
	s.aggregator.RecordPredictionOutcome(kind, accurate)
}

// GetStats merges in-memory and persisted statistics for the given time range.
func (s *Service) GetStats(ctx context.Context, timeRange TimeRange) (*Stats, error) {
	stats := s.aggregator.GetCurrentStats(timeRange)

	if s.persister == nil {
		return stats, nil
	}

	snapshots, err := s.persister.Load(ctx)
	if err != nil {
		// Log error but return in-memory stats
		slog.Warn("failed to query persisted metrics", "error", err)
		return stats, nil
	}

	latencySums := map[string]int64{}
	for intent, rs := range stats.Routes {
		latencySums[intent] = int64(rs.AvgLatency/time.Millisecond) * rs.Count
	}
	for _, snap := range snapshots {
		if !timeRange.contains(snap.HourBucket) {
			continue
		}
		switch snap.Kind {
		case snapshotRoute:
			stats.RouteCount += snap.Count
			stats.LocalCount += snap.Positive
			rs, ok := stats.Routes[snap.Name]
			if !ok {
				rs = &RouteStat{}
				stats.Routes[snap.Name] = rs
			}
			rs.Count += snap.Count
			rs.LocalCount += snap.Positive
			latencySums[snap.Name] += snap.LatencySumMs
		case snapshotPrediction:
			addAccuracy(stats, snap.Name, snap.Count, snap.Positive)
		}
	}
	for intent, rs := range stats.Routes {
		if rs.Count > 0 {
			rs.AvgLatency = time.Duration(latencySums[intent]/rs.Count) * time.Millisecond
		}
	}

	return stats, nil
}

// Flush forces an immediate flush of completed buckets.
func (s *Service) Flush(ctx context.Context) error {
	if s.persister == nil {
		return ErrMetricsNotConfigured
	}
	return s.persister.Flush(ctx)
}

// HasPersistence returns true if metrics persistence is enabled.
func (s *Service) HasPersistence() bool {
	return s.persister != nil
}

var _ MetricsService = (*Service)(nil)
