package social

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/stream"
)

var fridayNight = time.Date(2026, 10, 16, 22, 0, 0, 0, time.UTC)

// fixedDistance returns the configured distance per friend; unknown friends are far away.
func fixedDistance(d map[string]float64) DistanceFunc {
	return func(a FriendActivity) (float64, bool) {
		if m, ok := d[a.FriendID]; ok {
			return m, true
		}
		return 5000, true
	}
}

func newTestIntelligence(t *testing.T, distances map[string]float64) (*Intelligence, *aitime.FakeClock) {
	t.Helper()
	clock := aitime.NewFakeClock(fridayNight)
	s := NewIntelligence(DefaultConfig()).
		WithClock(clock).
		WithDistance(fixedDistance(distances))
	return s, clock
}

func checkIn(friendID, venueID string) FriendActivity {
	return FriendActivity{FriendID: friendID, FriendName: "Friend " + friendID, ActivityType: ActivityCheckIn, VenueID: venueID, VenueName: "Venue " + venueID}
}

func TestProximityThresholds(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestIntelligence(t, map[string]float64{"near": 450, "close": 50, "far": 600})

	s.TrackFriendActivity(ctx, checkIn("near", "v1"))
	s.TrackFriendActivity(ctx, checkIn("close", "v1"))
	s.TrackFriendActivity(ctx, checkIn("far", "v1"))

	alerts := s.GetProximityAlerts()
	require.Len(t, alerts, 2)
	byFriend := map[string]ProximityAlert{}
	for _, a := range alerts {
		byFriend[a.FriendID] = a
	}

	require.Contains(t, byFriend, "near")
	assert.False(t, byFriend["near"].IsUrgent)
	assert.InDelta(t, 450, byFriend["near"].Distance, 0.001)
	assert.Equal(t, "Friend near is 450m away at Venue v1", byFriend["near"].Message)

	require.Contains(t, byFriend, "close")
	assert.True(t, byFriend["close"].IsUrgent)

	assert.NotContains(t, byFriend, "far")
	assert.Equal(t, 2, s.NearbyFriendCount())
}

func TestProximityAlerts_CappedAndWindowed(t *testing.T) {
	ctx := context.Background()
	distances := map[string]float64{}
	for i := range 25 {
		distances[fmt.Sprintf("f%d", i)] = 200
	}
	s, clock := newTestIntelligence(t, distances)

	for i := range 25 {
		s.TrackFriendActivity(ctx, checkIn(fmt.Sprintf("f%d", i), "v1"))
	}
	alerts := s.GetProximityAlerts()
	require.Len(t, alerts, MaxAlerts)
	assert.Equal(t, "f24", alerts[0].FriendID, "most recent first")

	clock.Advance(31 * time.Minute)
	assert.Empty(t, s.GetProximityAlerts())
	assert.Zero(t, s.NearbyFriendCount())
}

func TestActivityHistory_Bounded(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestIntelligence(t, nil)

	old := checkIn("f1", "v1")
	old.Timestamp = fridayNight.Add(-25 * time.Hour)
	s.TrackFriendActivity(ctx, old)
	assert.Empty(t, s.GetActivities("f1"), "activities outside 24h are not kept")

	for range 60 {
		clock.Advance(time.Second)
		s.TrackFriendActivity(ctx, checkIn("f1", "v1"))
	}
	history := s.GetActivities("f1")
	require.Len(t, history, MaxActivitiesPerFriend)
	assert.Equal(t, clock.Now(), history[0].Timestamp)

	t.Run("AgedOutBeforeTick", func(t *testing.T) {
		clock.Advance(25 * time.Hour)
		assert.Empty(t, s.GetActivities("f1"))
	})

	s.Tick(ctx)
	assert.Empty(t, s.GetActivities("f1"))
}

func TestTrackFriendActivity_Invalid(t *testing.T) {
	ctx := context.Background()
	reporter := errlog.NewMockReporter()
	s, _ := newTestIntelligence(t, nil)
	s.WithReporter(reporter)

	_, ok := s.TrackFriendActivity(ctx, FriendActivity{ActivityType: ActivityCheckIn})
	assert.False(t, ok)
	_, ok = s.TrackFriendActivity(ctx, FriendActivity{FriendID: "f1", ActivityType: "teleported"})
	assert.False(t, ok)
	assert.Equal(t, 2, reporter.Count(errlog.TypeValidation))
}

func TestRelevanceScore(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(fridayNight)
	tracker := eventlog.NewTracker(nil, nil).WithClock(clock)
	s := NewIntelligence(DefaultConfig()).WithClock(clock).WithDistance(fixedDistance(nil)).WithEventLog(tracker)

	plain, ok := s.TrackFriendActivity(ctx, checkIn("f1", "v1"))
	require.True(t, ok)
	assert.InDelta(t, 0.6, plain.RelevanceScore, 0.001)

	located := checkIn("f2", "v1")
	located.Location = &eventlog.Location{Lat: 40.7, Lng: -73.9}
	got, _ := s.TrackFriendActivity(ctx, located)
	assert.InDelta(t, 0.7, got.RelevanceScore, 0.001)

	tracker.TrackVenueInteraction(ctx, "v2", "bar", "visit", nil)
	visited, _ := s.TrackFriendActivity(ctx, checkIn("f3", "v2"))
	assert.InDelta(t, 0.8, visited.RelevanceScore, 0.001)

	stale := FriendActivity{FriendID: "f4", ActivityType: ActivityHeadingTo, Timestamp: fridayNight.Add(-2 * time.Hour)}
	got, _ = s.TrackFriendActivity(ctx, stale)
	assert.InDelta(t, 0.5, got.RelevanceScore, 0.001)
}

func TestSocialTrend_Participants(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(fridayNight)
	tracker := eventlog.NewTracker(nil, nil).WithClock(clock)
	s := NewIntelligence(DefaultConfig()).WithClock(clock).WithDistance(fixedDistance(nil)).WithEventLog(tracker)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))
	trend, ok := s.GetTrend("x")
	require.True(t, ok)
	assert.Equal(t, "venue_x_popularity", trend.ID)
	assert.InDelta(t, 0.3, trend.Strength, 0.001)
	assert.Equal(t, MomentumRising, trend.Momentum)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))
	trend, _ = s.GetTrend("x")
	assert.InDelta(t, 0.3, trend.Strength, 0.001, "repeat participant does not add strength")

	s.TrackFriendActivity(ctx, checkIn("f2", "x"))
	trend, _ = s.GetTrend("x")
	assert.Equal(t, []string{"f1", "f2"}, trend.Participants)
	assert.InDelta(t, 0.4, trend.Strength, 0.001)

	for i := 3; i <= 12; i++ {
		s.TrackFriendActivity(ctx, checkIn(fmt.Sprintf("f%d", i), "x"))
	}
	trend, _ = s.GetTrend("x")
	assert.InDelta(t, 1.0, trend.Strength, 0.001, "strength is capped")

	follows := tracker.EventsByType(eventlog.TypeTrendFollow, 0)
	assert.Len(t, follows, 13)
	assert.Equal(t, "venue_x_popularity", follows[0].String("trendId"))
}

func TestSocialTrend_MomentumDecay(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestIntelligence(t, nil)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))

	clock.Advance(35 * time.Minute)
	s.Tick(ctx)
	trend, ok := s.GetTrend("x")
	require.True(t, ok)
	assert.Equal(t, MomentumStable, trend.Momentum)
	assert.InDelta(t, 0.3, trend.Strength, 0.001)

	clock.Advance(35 * time.Minute)
	s.Tick(ctx)
	trend, ok = s.GetTrend("x")
	require.True(t, ok)
	assert.Equal(t, MomentumDeclining, trend.Momentum)
	assert.InDelta(t, 0.3-TrendDecayStep, trend.Strength, 0.001)

	clock.Advance(30 * time.Minute)
	s.Tick(ctx)
	trend, ok = s.GetTrend("x")
	require.True(t, ok)
	assert.InDelta(t, 0.1, trend.Strength, 0.001)

	clock.Advance(30 * time.Minute)
	s.Tick(ctx)
	_, ok = s.GetTrend("x")
	assert.False(t, ok, "trend below the floor is deleted")
}

func TestSocialTrend_NewParticipantRevives(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestIntelligence(t, nil)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))
	clock.Advance(35 * time.Minute)
	s.Tick(ctx)

	s.TrackFriendActivity(ctx, checkIn("f2", "x"))
	trend, _ := s.GetTrend("x")
	assert.Equal(t, MomentumRising, trend.Momentum)
}

func TestGroupMovements(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestIntelligence(t, nil)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))
	s.Tick(ctx)
	assert.Empty(t, s.GetGroupMovements(), "one friend is not a group")
	assert.False(t, s.HasGroupActivity())

	s.TrackFriendActivity(ctx, checkIn("f2", "x"))
	s.TrackFriendActivity(ctx, checkIn("f3", "x"))
	s.TrackFriendActivity(ctx, checkIn("f4", "y"))
	s.Tick(ctx)

	movements := s.GetGroupMovements()
	require.Len(t, movements, 1)
	assert.Equal(t, "x", movements[0].VenueID)
	assert.Equal(t, []string{"f1", "f2", "f3"}, movements[0].FriendIDs)
	assert.InDelta(t, 0.8, movements[0].Confidence, 0.001)
	assert.True(t, s.HasGroupActivity())

	clock.Advance(31 * time.Minute)
	s.Tick(ctx)
	assert.Empty(t, s.GetGroupMovements(), "movements past their arrival are purged")
}

func TestGroupConfidence(t *testing.T) {
	assert.InDelta(t, 0.7, GroupConfidence(2), 0.001)
	assert.InDelta(t, 0.9, GroupConfidence(4), 0.001)
	assert.InDelta(t, 0.9, GroupConfidence(10), 0.001)
}

func TestGetFriendsAtVenue(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestIntelligence(t, nil)

	s.TrackFriendActivity(ctx, checkIn("f1", "x"))
	s.TrackFriendActivity(ctx, checkIn("f2", "x"))
	clock.Advance(time.Minute)
	s.TrackFriendActivity(ctx, FriendActivity{FriendID: "f2", ActivityType: ActivityLeftVenue, VenueID: "x"})
	s.TrackFriendActivity(ctx, checkIn("f3", "y"))

	at := s.GetFriendsAtVenue("x")
	require.Len(t, at, 1)
	assert.Equal(t, "f1", at[0].FriendID)
}

func TestTrackFriendActivity_Publishes(t *testing.T) {
	ctx := context.Background()
	bus := stream.NewManager()
	var topics []string
	bus.Subscribe(stream.TopicAll, func(_ context.Context, m stream.Message) { topics = append(topics, m.Topic) })

	s, _ := newTestIntelligence(t, map[string]float64{"f1": 80})
	s.WithPublisher(bus)
	s.TrackFriendActivity(ctx, checkIn("f1", "x"))

	assert.Equal(t, []string{stream.TopicFriendActivity, stream.TopicProximityAlert}, topics)
}

func TestHaversine(t *testing.T) {
	a := eventlog.Location{Lat: 40.7128, Lng: -74.0060}
	assert.InDelta(t, 0, Haversine(a, a), 0.001)
	b := eventlog.Location{Lat: 40.7128 + 0.001, Lng: -74.0060}
	assert.InDelta(t, 111.2, Haversine(a, b), 0.5)
}

func TestStartStop(t *testing.T) {
	s, _ := newTestIntelligence(t, nil)
	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
