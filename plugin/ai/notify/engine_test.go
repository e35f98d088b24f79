package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/plugin/ai/aitime"
	novactx "github.com/hrygo/nova/plugin/ai/context"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/prediction"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/stream"
)

type fakeContext struct{ lc *novactx.LocalContext }

func (f *fakeContext) GetLocalContext(context.Context) *novactx.LocalContext { return f.lc }

type fakePredictions struct{ preds []prediction.VenuePrediction }

func (f *fakePredictions) GetCachedPredictions() []prediction.VenuePrediction { return f.preds }

type fakeProximity struct{ alerts []social.ProximityAlert }

func (f *fakeProximity) GetProximityAlerts() []social.ProximityAlert { return f.alerts }

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 14, hour, minute, 0, 0, time.UTC)
}

func friendsNearby(n int) *fakeContext {
	return &fakeContext{lc: &novactx.LocalContext{Social: novactx.SocialSnapshot{FriendsNearby: n}}}
}

func uncapped() Config {
	cfg := DefaultConfig()
	cfg.MaxPerHour = 0
	return cfg
}

func allTriggersInput() (*fakeContext, *fakePredictions, *fakeProximity) {
	ctxSrc := &fakeContext{lc: &novactx.LocalContext{Social: novactx.SocialSnapshot{FriendsNearby: 1, GroupActivity: true}}}
	preds := &fakePredictions{preds: []prediction.VenuePrediction{
		{ID: "p1", VenueID: "a", VenueName: "Alpha", Kind: prediction.KindVenueRecommendation, Prediction: prediction.OutcomeGettingBusier, Confidence: 0.8, Message: "Alpha is filling up.", ActionLabel: "Go now"},
		{ID: "p2", VenueID: "b", Kind: prediction.KindTimingSuggestion, Prediction: prediction.OutcomeOptimalTime, Confidence: 0.7, Message: "Now is a good time to head out.", ActionLabel: "Get directions"},
	}}
	prox := &fakeProximity{alerts: []social.ProximityAlert{
		{FriendID: "f1", FriendName: "Sam", Distance: 420},
		{FriendID: "f2", FriendName: "Kai", VenueName: "Alpha", Distance: 80, IsUrgent: true},
	}}
	return ctxSrc, preds, prox
}

func TestEngine_QuietHoursSuppression(t *testing.T) {
	clock := aitime.NewFakeClock(at(2, 0))
	e := NewEngine(friendsNearby(3), uncapped()).WithClock(clock)

	assert.True(t, e.InQuietHours(clock.Now()))
	assert.Empty(t, e.CheckForNotifications(context.Background()))
	assert.Empty(t, e.GetPendingNotifications())

	clock.Set(at(14, 0))
	got := e.CheckForNotifications(context.Background())
	require.NotEmpty(t, got)
	assert.Equal(t, TypeFriendProximity, got[0].Type)

	t.Run("WrapAround", func(t *testing.T) {
		for hour, quiet := range map[int]bool{22: false, 23: true, 0: true, 6: true, 7: false} {
			assert.Equal(t, quiet, e.InQuietHours(at(hour, 30)), "hour %d", hour)
		}
	})

	t.Run("CustomWindow", func(t *testing.T) {
		e.SetQuietHours(QuietHours{Start: 13, End: 15})
		assert.True(t, e.InQuietHours(at(14, 0)))
		e.SetQuietHours(QuietHours{})
		assert.False(t, e.InQuietHours(at(2, 0)))
	})
}

func TestEngine_Cooldown(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(14, 0))
	e := NewEngine(friendsNearby(2), uncapped()).WithClock(clock)

	first := e.CheckForNotifications(ctx)
	require.Len(t, first, 1)

	clock.Advance(10 * time.Minute)
	assert.Empty(t, e.CheckForNotifications(ctx))
	assert.Len(t, e.GetPendingNotifications(), 1)

	clock.Advance(36 * time.Minute)
	second := e.CheckForNotifications(ctx)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestEngine_CheckAllTriggers(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(19, 0))
	tracker := eventlog.NewTracker(nil, nil).WithClock(clock)
	ctxSrc, preds, prox := allTriggersInput()

	e := NewEngine(ctxSrc, uncapped()).
		WithPredictions(preds).
		WithProximity(prox).
		WithRecorder(tracker).
		WithClock(clock)

	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 4)

	byType := map[Type]Notification{}
	for _, n := range created {
		byType[n.Type] = n
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, clock.Now(), n.CreatedAt)
	}

	friend := byType[TypeFriendProximity]
	assert.Equal(t, PriorityUrgent, friend.Priority)
	assert.Equal(t, "Kai is 80 m away at Alpha.", friend.Message)
	assert.Equal(t, clock.Now().Add(30*time.Minute), friend.ExpiresAt)

	assert.Equal(t, clock.Now().Add(time.Hour), byType[TypeOptimalTiming].ExpiresAt)
	assert.Equal(t, "Try Alpha", byType[TypeVenueSuggestion].Title)
	assert.Equal(t, clock.Now().Add(3*time.Hour), byType[TypeVenueSuggestion].ExpiresAt)
	assert.Equal(t, clock.Now().Add(2*time.Hour), byType[TypeSocialOpportunity].ExpiresAt)

	pending := e.GetPendingNotifications()
	require.Len(t, pending, 4)
	assert.Equal(t, PriorityUrgent, pending[0].Priority)
	assert.Equal(t, PriorityHigh, pending[1].Priority)
	assert.Equal(t, PriorityMedium, pending[2].Priority)
	assert.Equal(t, PriorityMedium, pending[3].Priority)

	assert.Len(t, tracker.EventsByType(eventlog.TypeNotificationGenerated, 0), 4)
}

func TestEngine_ExpiredArePurged(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(19, 0))
	ctxSrc, preds, prox := allTriggersInput()
	e := NewEngine(ctxSrc, uncapped()).WithPredictions(preds).WithProximity(prox).WithClock(clock)

	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 4)
	var friendID string
	for _, n := range created {
		if n.Type == TypeFriendProximity {
			friendID = n.ID
		}
	}

	clock.Advance(31 * time.Minute)
	assert.Len(t, e.GetPendingNotifications(), 3)

	prox.alerts = nil
	ctxSrc.lc.Social.FriendsNearby = 0
	e.CheckForNotifications(ctx)
	_, ok := e.Get(friendID)
	assert.False(t, ok)
}

func TestEngine_HourlyCap(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(19, 0))
	ctxSrc, preds, prox := allTriggersInput()

	cfg := DefaultConfig()
	cfg.MaxPerHour = 2
	e := NewEngine(ctxSrc, cfg).WithPredictions(preds).WithProximity(prox).WithClock(clock)

	assert.Len(t, e.CheckForNotifications(ctx), 2)

	// Triggers cut off by the cap fire as tokens refill.
	clock.Advance(10 * time.Minute)
	assert.Empty(t, e.CheckForNotifications(ctx))
	clock.Advance(25 * time.Minute)
	assert.Len(t, e.CheckForNotifications(ctx), 1)

	t.Run("ZeroDisablesCap", func(t *testing.T) {
		e.SetMaxPerHour(0)
		assert.Len(t, e.CheckForNotifications(ctx), 1)
	})
}

func TestEngine_EnableToggles(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(19, 0))
	ctxSrc, preds, prox := allTriggersInput()

	cfg := uncapped()
	cfg.DisabledTypes = []Type{TypeVenueSuggestion}
	e := NewEngine(ctxSrc, cfg).WithPredictions(preds).WithProximity(prox).WithClock(clock)

	e.SetEnabled(false)
	assert.Empty(t, e.CheckForNotifications(ctx))

	e.SetEnabled(true)
	e.SetTypeEnabled(TypeSocialOpportunity, false)
	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 2)
	for _, n := range created {
		assert.NotEqual(t, TypeVenueSuggestion, n.Type)
		assert.NotEqual(t, TypeSocialOpportunity, n.Type)
	}

	e.SetTypeEnabled(TypeVenueSuggestion, true)
	created = e.CheckForNotifications(ctx)
	require.Len(t, created, 1)
	assert.Equal(t, TypeVenueSuggestion, created[0].Type)
}

func TestEngine_TimingNeedsEveningOrHabit(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(15, 0))
	_, preds, _ := allTriggersInput()
	ctxSrc := &fakeContext{lc: &novactx.LocalContext{Preferences: habit.NewUserPreferences()}}

	e := NewEngine(ctxSrc, uncapped()).WithPredictions(preds).WithClock(clock)
	e.SetTypeEnabled(TypeVenueSuggestion, false)
	assert.Empty(t, e.CheckForNotifications(ctx))

	ctxSrc.lc.Preferences.TimePreferences["afternoon"] = 4
	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 1)
	assert.Equal(t, TypeOptimalTiming, created[0].Type)
}

func TestEngine_ShownAndAction(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(14, 0))
	tracker := eventlog.NewTracker(nil, nil).WithClock(clock)
	e := NewEngine(friendsNearby(1), uncapped()).WithRecorder(tracker).WithClock(clock)

	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 1)
	id := created[0].ID

	assert.True(t, e.MarkShown(ctx, id))
	assert.Empty(t, e.GetPendingNotifications())
	n, ok := e.Get(id)
	require.True(t, ok)
	assert.True(t, n.Shown)
	require.NotNil(t, n.ShownAt)

	assert.True(t, e.TrackAction(ctx, id, "accepted"))
	assert.False(t, e.MarkShown(ctx, "missing"))
	assert.False(t, e.TrackAction(ctx, "missing", "accepted"))

	shown := tracker.EventsByType(eventlog.TypeNotificationShown, 0)
	require.Len(t, shown, 1)
	assert.Equal(t, id, shown[0].String("notificationId"))
	actions := tracker.EventsByType(eventlog.TypeNotificationAction, 0)
	require.Len(t, actions, 1)
	assert.Equal(t, "accepted", actions[0].String("action"))
}

func TestEngine_DropsInvalidNotification(t *testing.T) {
	reporter := errlog.NewMockReporter()
	clock := aitime.NewFakeClock(at(14, 0))
	e := NewEngine(nil, uncapped()).
		WithTriggers([]Trigger{{
			Name:      "blank",
			Type:      TypeVenueSuggestion,
			Cooldown:  time.Hour,
			Expiry:    time.Hour,
			Priority:  PriorityLow,
			Condition: func(Input) bool { return true },
			Build:     func(Input) Draft { return Draft{} },
		}}).
		WithReporter(reporter).
		WithClock(clock)

	assert.Empty(t, e.CheckForNotifications(context.Background()))
	assert.Equal(t, 1, reporter.Count(errlog.TypeValidation))
	// A dropped notification does not start the cooldown.
	assert.Empty(t, e.CheckForNotifications(context.Background()))
	assert.Equal(t, 2, reporter.Count(errlog.TypeValidation))
}

func TestEngine_InvalidDoesNotSpendCap(t *testing.T) {
	clock := aitime.NewFakeClock(at(14, 0))
	cfg := DefaultConfig()
	cfg.MaxPerHour = 1
	always := func(Input) bool { return true }
	e := NewEngine(nil, cfg).
		WithTriggers([]Trigger{
			{Name: "blank", Type: TypeVenueSuggestion, Cooldown: time.Hour, Expiry: time.Hour, Priority: PriorityLow,
				Condition: always, Build: func(Input) Draft { return Draft{} }},
			{Name: "hello", Type: TypeVenueSuggestion, Cooldown: time.Hour, Expiry: time.Hour, Priority: PriorityLow,
				Condition: always, Build: func(Input) Draft { return Draft{Title: "Hello", Message: "Alpha is open."} }},
		}).
		WithClock(clock)

	created := e.CheckForNotifications(context.Background())
	require.Len(t, created, 1)
	assert.Equal(t, "hello", created[0].Trigger)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	fail int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.fail > 0 {
		b.fail--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func TestDispatcher_Channels(t *testing.T) {
	ctx := context.Background()
	clock := aitime.NewFakeClock(at(14, 0))
	reporter := errlog.NewMockReporter()

	mgr := stream.NewManager()
	var streamed []Notification
	unsubscribe := mgr.Subscribe(stream.TopicNotificationCreated, func(_ context.Context, msg stream.Message) {
		var n Notification
		require.NoError(t, msg.Decode(&n))
		streamed = append(streamed, n)
	})
	defer unsubscribe()

	good := &fakeBot{fail: 1}
	bad := &fakeBot{fail: 10}

	d := NewDispatcher()
	d.Register(NewStreamChannel(mgr))
	d.Register(NewTelegramChannelWithBot(good, 42).WithRetry(3, 0))
	d.Register(NewTelegramChannelWithBot(bad, 43).WithRetry(2, 0))
	assert.Equal(t, []string{"stream", "telegram", "telegram"}, d.Channels())

	e := NewEngine(friendsNearby(2), uncapped()).WithDispatcher(d).WithReporter(reporter).WithClock(clock)
	created := e.CheckForNotifications(ctx)
	require.Len(t, created, 1)

	require.Len(t, streamed, 1)
	assert.Equal(t, created[0].ID, streamed[0].ID)

	require.Len(t, good.sent, 1)
	msg, ok := good.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msg.ParseMode)
	assert.Contains(t, msg.Text, "Friends nearby")

	assert.Empty(t, bad.sent)
	assert.Equal(t, 1, reporter.Count(errlog.TypeNotification))
}

func TestFormatTelegram(t *testing.T) {
	got := FormatTelegram(Notification{
		Priority:    PriorityUrgent,
		Title:       "Kai is nearby",
		Message:     "Kai is 80 m away at Club-9.",
		ActionLabel: "Say hi!",
	})
	assert.Equal(t, "🚨 *Kai is nearby*\n\nKai is 80 m away at Club\\-9\\.\n\n👉 _Say hi\\!_", got)
}

func TestEngine_StartStop(t *testing.T) {
	clock := aitime.NewFakeClock(at(14, 0))
	e := NewEngine(friendsNearby(1), uncapped()).WithClock(clock)

	e.Start(context.Background())
	e.Start(context.Background())
	assert.True(t, e.IsRunning())
	e.Stop()
	e.Stop()
	assert.False(t, e.IsRunning())
	assert.Len(t, e.GetPendingNotifications(), 1)
}
