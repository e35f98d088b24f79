package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db/memory"
)

var base = time.Date(2026, 10, 16, 21, 10, 0, 0, time.UTC)

func TestAggregator_RecordRoute(t *testing.T) {
	clock := aitime.NewFakeClock(base)
	agg := NewAggregator(clock)

	agg.RecordRoute("venue_search", true, 10*time.Millisecond)
	agg.RecordRoute("venue_search", false, 30*time.Millisecond)
	agg.RecordRoute("general_chat", false, 200*time.Millisecond)

	stats := agg.GetCurrentStats(TimeRange{})
	assert.Equal(t, int64(3), stats.RouteCount)
	assert.Equal(t, int64(1), stats.LocalCount)
	assert.InDelta(t, 1.0/3, stats.LocalRate(), 0.001)

	vs := stats.Routes["venue_search"]
	require.NotNil(t, vs)
	assert.Equal(t, int64(2), vs.Count)
	assert.Equal(t, int64(1), vs.LocalCount)
	assert.Equal(t, 20*time.Millisecond, vs.AvgLatency)
}

func TestAggregator_PredictionOutcome(t *testing.T) {
	agg := NewAggregator(aitime.NewFakeClock(base))

	agg.RecordPredictionOutcome("venue_recommendation", true)
	agg.RecordPredictionOutcome("venue_recommendation", false)
	agg.RecordPredictionOutcome("venue_recommendation", true)
	agg.RecordPredictionOutcome("timing_suggestion", false)

	stats := agg.GetCurrentStats(TimeRange{})
	rec := stats.Predictions["venue_recommendation"]
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.Total)
	assert.Equal(t, int64(2), rec.Accurate)
	assert.InDelta(t, 0.666, rec.Rate, 0.01)
	assert.Equal(t, 0.0, stats.Predictions["timing_suggestion"].Rate)
}

func TestAggregator_Percentiles(t *testing.T) {
	agg := NewAggregator(aitime.NewFakeClock(base))

	for i := 1; i <= 100; i++ {
		agg.RecordRoute("venue_search", true, time.Duration(i)*time.Millisecond)
	}

	stats := agg.GetCurrentStats(TimeRange{})
	assert.InDelta(t, 50, stats.LatencyP50.Milliseconds(), 5)
	assert.InDelta(t, 95, stats.LatencyP95.Milliseconds(), 5)
}

func TestAggregator_FlushOnlyCompletedHours(t *testing.T) {
	clock := aitime.NewFakeClock(base)
	agg := NewAggregator(clock)

	agg.RecordRoute("venue_search", true, 5*time.Millisecond)
	agg.RecordPredictionOutcome("venue_recommendation", true)

	assert.Empty(t, agg.Flush(truncateToHour(clock.Now())))

	clock.Advance(time.Hour)
	agg.RecordRoute("venue_search", false, 5*time.Millisecond)

	snaps := agg.Flush(truncateToHour(clock.Now()))
	require.Len(t, snaps, 2)
	assert.Equal(t, snapshotPrediction, snaps[0].Kind)
	assert.Equal(t, snapshotRoute, snaps[1].Kind)
	assert.Equal(t, int64(1), snaps[1].Positive)

	// The current hour stays in memory.
	stats := agg.GetCurrentStats(TimeRange{})
	assert.Equal(t, int64(1), stats.RouteCount)
	assert.Equal(t, int64(0), stats.LocalCount)
}

func TestService_PersistAndMerge(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(base)
	st := store.New(memory.NewDB(), &profile.Profile{})
	svc := NewService(st, DefaultPersisterConfig(), clock)
	require.True(t, svc.HasPersistence())

	svc.RecordRoute(ctx, "venue_search", true, 10*time.Millisecond)
	svc.RecordPredictionOutcome(ctx, "venue_recommendation", true)

	clock.Advance(time.Hour)
	require.NoError(t, svc.Flush(ctx))

	svc.RecordRoute(ctx, "venue_search", false, 30*time.Millisecond)
	svc.RecordPredictionOutcome(ctx, "venue_recommendation", false)

	stats, err := svc.GetStats(ctx, TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RouteCount)
	assert.Equal(t, int64(1), stats.LocalCount)
	assert.Equal(t, 20*time.Millisecond, stats.Routes["venue_search"].AvgLatency)
	assert.Equal(t, int64(2), stats.Predictions["venue_recommendation"].Total)
	assert.InDelta(t, 0.5, stats.Predictions["venue_recommendation"].Rate, 0.001)

	t.Run("TimeRange", func(t *testing.T) {
		stats, err := svc.GetStats(ctx, TimeRange{Start: truncateToHour(clock.Now())})
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.RouteCount)
	})

	t.Run("Retention", func(t *testing.T) {
		clock.Advance(31 * 24 * time.Hour)
		require.NoError(t, svc.Flush(ctx))
		snaps, err := svc.persister.Load(ctx)
		require.NoError(t, err)
		for _, s := range snaps {
			assert.False(t, s.HourBucket.Before(clock.Now().Add(-30*24*time.Hour)))
		}
	})
}

func TestService_MemoryOnly(t *testing.T) {
	svc := NewService(nil, PersisterConfig{}, aitime.NewFakeClock(base))
	assert.False(t, svc.HasPersistence())
	assert.ErrorIs(t, svc.Flush(context.Background()), ErrMetricsNotConfigured)

	svc.RecordRoute(context.Background(), "general_chat", false, time.Millisecond)
	stats, err := svc.GetStats(context.Background(), TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RouteCount)
	svc.Close()
}
