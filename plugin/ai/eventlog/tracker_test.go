package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db/memory"
)

// friday 20:00 UTC
var testStart = time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T, cfg *Config) (*Tracker, *store.Store, *aitime.FakeClock, *errlog.MockReporter) {
	t.Helper()
	st := store.New(memory.NewDB(), nil)
	clock := aitime.NewFakeClock(testStart)
	reporter := errlog.NewMockReporter()
	tr := NewTracker(st, cfg).WithClock(clock).WithReporter(reporter)
	return tr, st, clock, reporter
}

func TestTracker_Track(t *testing.T) {
	ctx := context.Background()
	tr, _, _, reporter := newTestTracker(t, nil)

	e := tr.TrackVenueInteraction(ctx, "v1", "bars", "check_in", map[string]any{"area": "downtown"})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "local", e.UserID)
	assert.Equal(t, TypeVenueInteraction, e.Type)
	assert.Equal(t, SourceUserAction, e.Source)
	assert.Equal(t, aitime.Evening, e.Context.TimeOfDay)
	assert.Equal(t, "friday", e.Context.DayOfWeek)
	assert.Equal(t, "bars", e.String("venueType"))
	assert.Equal(t, "downtown", e.String("area"))
	assert.Empty(t, reporter.Calls)

	decoded, err := Decode[VenueInteraction](e)
	require.NoError(t, err)
	assert.Equal(t, "check_in", decoded.Action)
}

func TestTracker_InvalidPayloadStillRecorded(t *testing.T) {
	ctx := context.Background()
	tr, _, _, reporter := newTestTracker(t, nil)

	tr.Track(ctx, TypeFriendResponse, map[string]any{"response": "perhaps"}, SourceUserAction)
	tr.Track(ctx, EventType("custom_event"), map[string]any{"anything": 1}, SourceSystem)

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 1, reporter.Count(errlog.TypeValidation))
}

func TestTracker_PatternConfidenceMonotonic(t *testing.T) {
	ctx := context.Background()
	tr, _, clock, _ := newTestTracker(t, nil)

	key := "venue_interaction:evening"
	previous := 0.0
	for i := 1; i <= 12; i++ {
		tr.TrackVenueInteraction(ctx, "v1", "bars", "view", nil)
		clock.Advance(time.Minute)

		p, ok := tr.Pattern(key)
		require.True(t, ok)
		assert.Equal(t, i, p.Frequency)
		assert.GreaterOrEqual(t, p.Confidence, previous)
		assert.LessOrEqual(t, p.Confidence, 1.0)
		previous = p.Confidence
	}
	assert.Equal(t, 1.0, previous)

	first, ok := tr.Pattern("venue_interaction:friday")
	require.True(t, ok)
	assert.Equal(t, 12, first.Frequency)
	_, ok = tr.Pattern("venue_interaction:evening:friday")
	assert.True(t, ok)
}

func TestTracker_NewPatternStartsAtInitialConfidence(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, nil)
	tr.TrackFriendResponse(context.Background(), "f1", "accepted", "")

	p, ok := tr.Pattern("friend_response:evening")
	require.True(t, ok)
	assert.Equal(t, 1, p.Frequency)
	assert.Equal(t, InitialConfidence, p.Confidence)
	assert.Len(t, tr.Patterns(), 3)
}

func TestTracker_CapacityDropsOldest(t *testing.T) {
	ctx := context.Background()
	tr, _, clock, _ := newTestTracker(t, &Config{MaxEvents: 5})

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, tr.TrackVenueInteraction(ctx, "v1", "bars", "view", nil).ID)
		clock.Advance(time.Second)
	}
	events := tr.Events()
	require.Len(t, events, 5)
	assert.Equal(t, ids[3], events[0].ID)
	assert.Equal(t, ids[7], events[4].ID)

	// Patterns keep counting beyond the cap.
	p, _ := tr.Pattern("venue_interaction:evening")
	assert.Equal(t, 8, p.Frequency)
}

func TestTracker_Queries(t *testing.T) {
	ctx := context.Background()
	tr, _, clock, _ := newTestTracker(t, nil)

	old := tr.TrackVenueInteraction(ctx, "v1", "bars", "view", nil)
	clock.Advance(3 * time.Hour)
	tr.TrackFriendResponse(ctx, "f1", "accepted", "")
	recent := tr.TrackVenueInteraction(ctx, "v2", "clubs", "like", nil)

	byType := tr.EventsByType(TypeVenueInteraction, 0)
	require.Len(t, byType, 2)
	assert.Equal(t, recent.ID, byType[0].ID)
	assert.Equal(t, old.ID, byType[1].ID)

	limited := tr.EventsByType(TypeVenueInteraction, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, recent.ID, limited[0].ID)

	assert.Len(t, tr.EventsInWindow(time.Hour), 2)
	assert.Len(t, tr.EventsInWindow(4*time.Hour), 3)
}

func TestTracker_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	tr, st, clock, _ := newTestTracker(t, nil)

	tr.TrackVenueInteraction(ctx, "v1", "bars", "check_in", nil)
	tr.TrackVenueInteraction(ctx, "v1", "bars", "check_in", nil)

	restored := NewTracker(st, nil).WithClock(clock)
	require.NoError(t, restored.Load(ctx))

	events := restored.Events()
	require.Len(t, events, 2)
	assert.True(t, events[0].Timestamp.Equal(testStart))
	p, ok := restored.Pattern("venue_interaction:evening")
	require.True(t, ok)
	assert.Equal(t, 2, p.Frequency)
	assert.InDelta(t, InitialConfidence+ConfidenceStep, p.Confidence, 1e-9)

	// Patterns continue from the restored state.
	restored.TrackVenueInteraction(ctx, "v1", "bars", "check_in", nil)
	p, _ = restored.Pattern("venue_interaction:evening")
	assert.Equal(t, 3, p.Frequency)
}

func TestTracker_CleanupAndClear(t *testing.T) {
	ctx := context.Background()
	tr, st, clock, _ := newTestTracker(t, nil)

	tr.TrackVenueInteraction(ctx, "v1", "bars", "view", nil)
	clock.Advance(31 * 24 * time.Hour)
	tr.TrackVenueInteraction(ctx, "v2", "bars", "view", nil)

	assert.Equal(t, 1, tr.Cleanup(ctx))
	assert.Equal(t, 1, tr.Len())
	assert.NotEmpty(t, tr.Patterns())

	require.NoError(t, tr.Clear(ctx))
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Patterns())
	_, err := st.Get(ctx, store.KeyUserEvents)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTracker_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	reporter := errlog.NewMockReporter()
	tiny := store.New(memory.NewDB(), &profile.Profile{StorageQuotaBytes: 16})
	tr := NewTracker(tiny, nil).WithReporter(reporter)

	tr.TrackVenueInteraction(ctx, "v1", "bars", "view", nil)

	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, reporter.Count(errlog.TypeDataProcessing))
}

type situationStub struct{ friends int }

func (s situationStub) Situation(context.Context) Situation {
	return Situation{FriendsNearby: &s.friends, Weather: "clear"}
}

func TestTracker_SituationAndPublish(t *testing.T) {
	ctx := context.Background()
	bus := stream.NewManager()
	var published int
	bus.Subscribe(stream.TopicEventTracked, func(context.Context, stream.Message) { published++ })

	tr, _, _, _ := newTestTracker(t, nil)
	tr.WithSituation(situationStub{friends: 2}).WithPublisher(bus)

	e := tr.TrackSuggestionInteraction(ctx, "s1", "accepted", nil)
	require.NotNil(t, e.Context.FriendsNearby)
	assert.Equal(t, 2, *e.Context.FriendsNearby)
	assert.Equal(t, "clear", e.Context.Weather)
	assert.Equal(t, 1, published)
}
