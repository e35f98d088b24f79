package social

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/loop"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/plugin/ai/timeout"
	"github.com/hrygo/nova/plugin/ai/validator"
)

// Limits and thresholds.
const (
	MaxActivitiesPerFriend = 50
	ActivityWindow         = 24 * time.Hour

	NearbyMeters = 500.0
	UrgentMeters = 100.0
	MaxAlerts    = 20
	AlertWindow  = 30 * time.Minute

	TrendInitialStrength = 0.3
	TrendStep            = 0.1
	TrendDecayStep       = 0.1
	TrendFloor           = 0.1
	TrendStableAfter     = 30 * time.Minute
	TrendDecliningAfter  = 60 * time.Minute
	TrendMaxAge          = 24 * time.Hour

	GroupWindow        = 30 * time.Minute
	MaxGroupConfidence = 0.9
)

var activityWeights = map[ActivityType]float64{
	ActivityHeadingTo:     0.5,
	ActivityCheckIn:       0.4,
	ActivityPlanning:      0.3,
	ActivityLocationShare: 0.3,
	ActivityStatusUpdate:  0.2,
	ActivityLeftVenue:     0.1,
}

// EventLog is the slice of the event store the service reads and writes.
type EventLog interface {
	Track(ctx context.Context, eventType eventlog.EventType, data map[string]any, source eventlog.Source) eventlog.UserEvent
	EventsByType(eventType eventlog.EventType, limit int) []eventlog.UserEvent
}

// Config configures the social service.
type Config struct {
	TickInterval time.Duration // default: 15s
	// Reference is the user's position for proximity checks.
	Reference eventlog.Location
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{TickInterval: timeout.SocialTickInterval}
}

// Intelligence owns friend activity, alerts, trends and group movements.
type Intelligence struct {
	clock     aitime.Clock
	distance  DistanceFunc
	events    EventLog
	pub       stream.Publisher
	validator *validator.Validator
	logger    *slog.Logger
	loop      *loop.Loop

	mu         sync.RWMutex
	activities map[string][]FriendActivity // most recent first
	alerts     []ProximityAlert            // most recent first
	trends     map[string]*SocialTrend
	movements  map[string]GroupMovement // by venue
}

// NewIntelligence creates a stopped service.
func NewIntelligence(cfg Config) *Intelligence {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = timeout.SocialTickInterval
	}
	s := &Intelligence{
		clock:      aitime.SystemClock{},
		distance:   SimulatedDistance(cfg.Reference, nil),
		pub:        stream.NopPublisher{},
		validator:  validator.New(nil),
		logger:     slog.Default().With("component", "social"),
		activities: map[string][]FriendActivity{},
		trends:     map[string]*SocialTrend{},
		movements:  map[string]GroupMovement{},
	}
	s.loop = loop.New("social", cfg.TickInterval, s.Tick)
	return s
}

// WithClock sets the clock.
func (s *Intelligence) WithClock(c aitime.Clock) *Intelligence {
	s.clock = aitime.OrSystem(c)
	return s
}

// WithDistance sets the proximity distance estimator.
func (s *Intelligence) WithDistance(fn DistanceFunc) *Intelligence {
	if fn != nil {
		s.distance = fn
	}
	return s
}

// WithEventLog sets the event store used for prior-visit bonuses and tracked events.
func (s *Intelligence) WithEventLog(l EventLog) *Intelligence {
	s.events = l
	return s
}

// WithPublisher sets the stream receiving friend.activity and friend.proximity messages.
func (s *Intelligence) WithPublisher(p stream.Publisher) *Intelligence {
	s.pub = stream.OrNop(p)
	return s
}

// WithReporter sets the error reporter used for validation failures.
func (s *Intelligence) WithReporter(r errlog.Reporter) *Intelligence {
	s.validator = validator.New(r)
	return s
}

// Start begins the periodic tick. Idempotent.
func (s *Intelligence) Start(ctx context.Context) { s.loop.Start(ctx) }

// Stop halts the periodic tick. Idempotent.
func (s *Intelligence) Stop() { s.loop.Stop() }

// IsRunning reports whether the tick loop is active.
func (s *Intelligence) IsRunning() bool { return s.loop.IsRunning() }

// TrackFriendActivity scores and stores an activity, then runs the proximity
// check and the venue trend update. Invalid activities are reported and dropped.
func (s *Intelligence) TrackFriendActivity(ctx context.Context, a FriendActivity) (FriendActivity, bool) {
	now := s.clock.Now()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	if r := validator.Structured(ctx, s.validator, a, "friend_activity"); !r.OK() {
		return a, false
	}
	a.RelevanceScore = s.relevance(a, now)

	s.mu.Lock()
	list := append([]FriendActivity{a}, s.activities[a.FriendID]...)
	s.activities[a.FriendID] = trimActivities(list, now)
	s.mu.Unlock()

	if err := s.pub.Publish(ctx, stream.TopicFriendActivity, a); err != nil {
		s.logger.Warn("failed to publish friend activity", "friend_id", a.FriendID, "error", err)
	}

	if alert, ok := s.checkProximity(a, now); ok {
		if err := s.pub.Publish(ctx, stream.TopicProximityAlert, alert); err != nil {
			s.logger.Warn("failed to publish proximity alert", "friend_id", a.FriendID, "error", err)
		}
	}

	if a.VenueID != "" && a.ActivityType != ActivityLeftVenue {
		trend := s.updateTrend(a, now)
		if s.events != nil {
			s.events.Track(ctx, eventlog.TypeTrendFollow, eventlog.ToData(eventlog.TrendFollow{
				TrendID: trend.ID,
				VenueID: a.VenueID,
			}, map[string]any{
				"friendId":     a.FriendID,
				"activityType": string(a.ActivityType),
				"participants": len(trend.Participants),
			}), eventlog.SourceSystem)
		}
	}
	return a, true
}

// relevance blends activity-type weight, a prior-visit bonus, recency and location presence.
func (s *Intelligence) relevance(a FriendActivity, now time.Time) float64 {
	score := activityWeights[a.ActivityType]
	if a.VenueID != "" && s.visited(a.VenueID) {
		score += 0.2
	}
	age := now.Sub(a.Timestamp)
	if age < 0 {
		age = 0
	}
	score += 0.2 * math.Max(0, 1-age.Hours())
	if a.Location != nil {
		score += 0.1
	}
	return math.Round(math.Min(1, score)*100) / 100
}

func (s *Intelligence) visited(venueID string) bool {
	if s.events == nil {
		return false
	}
	for _, e := range s.events.EventsByType(eventlog.TypeVenueInteraction, 200) {
		if e.String("venueId") == venueID && e.Source == eventlog.SourceUserAction {
			return true
		}
	}
	return false
}

func (s *Intelligence) checkProximity(a FriendActivity, now time.Time) (ProximityAlert, bool) {
	if a.ActivityType == ActivityLeftVenue {
		return ProximityAlert{}, false
	}
	meters, ok := s.distance(a)
	if !ok || meters >= NearbyMeters {
		return ProximityAlert{}, false
	}

	name := a.FriendName
	if name == "" {
		name = a.FriendID
	}
	msg := fmt.Sprintf("%s is %dm away", name, int(math.Round(meters)))
	if a.VenueName != "" {
		msg += " at " + a.VenueName
	}
	alert := ProximityAlert{
		ID:         uuid.NewString(),
		FriendID:   a.FriendID,
		FriendName: a.FriendName,
		VenueID:    a.VenueID,
		VenueName:  a.VenueName,
		Distance:   meters,
		IsUrgent:   meters < UrgentMeters,
		Message:    msg,
		Timestamp:  now,
	}

	s.mu.Lock()
	s.alerts = append([]ProximityAlert{alert}, s.alerts...)
	if len(s.alerts) > MaxAlerts {
		s.alerts = s.alerts[:MaxAlerts]
	}
	s.mu.Unlock()
	return alert, true
}

func (s *Intelligence) updateTrend(a FriendActivity, now time.Time) SocialTrend {
	key := TrendKey(a.VenueID)

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trends[key]
	if !ok {
		t = &SocialTrend{
			ID:                key,
			VenueID:           a.VenueID,
			VenueName:         a.VenueName,
			Participants:      []string{a.FriendID},
			Strength:          TrendInitialStrength,
			Momentum:          MomentumRising,
			PredictedDuration: 2 * time.Hour,
			CreatedAt:         now,
			LastParticipantAt: now,
		}
		s.trends[key] = t
		return cloneTrend(t)
	}
	if !t.HasParticipant(a.FriendID) {
		t.Participants = append(t.Participants, a.FriendID)
		t.Strength = round2(math.Min(1, t.Strength+TrendStep))
		t.Momentum = MomentumRising
		t.LastParticipantAt = now
		t.PredictedDuration = time.Duration(len(t.Participants)) * time.Hour
	}
	return cloneTrend(t)
}

// TrendKey returns the trend id for a venue.
func TrendKey(venueID string) string {
	return "venue_" + venueID + "_popularity"
}

// Tick detects group movements, decays trends and purges old data.
func (s *Intelligence) Tick(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.detectGroupsLocked(now)
	s.decayTrendsLocked(now)
	s.purgeLocked(now)
}

func (s *Intelligence) detectGroupsLocked(now time.Time) {
	type group struct {
		name    string
		friends []string
	}
	byVenue := map[string]*group{}
	for friendID, list := range s.activities {
		if len(list) == 0 {
			continue
		}
		// Only a friend's latest activity places them.
		latest := list[0]
		if latest.VenueID == "" || latest.ActivityType == ActivityLeftVenue || now.Sub(latest.Timestamp) > GroupWindow {
			continue
		}
		g, ok := byVenue[latest.VenueID]
		if !ok {
			g = &group{name: latest.VenueName}
			byVenue[latest.VenueID] = g
		}
		g.friends = append(g.friends, friendID)
	}

	for venueID, g := range byVenue {
		if len(g.friends) < 2 {
			continue
		}
		sort.Strings(g.friends)
		m := GroupMovement{
			ID:               uuid.NewString(),
			VenueID:          venueID,
			VenueName:        g.name,
			FriendIDs:        g.friends,
			Confidence:       GroupConfidence(len(g.friends)),
			DetectedAt:       now,
			EstimatedArrival: now.Add(20 * time.Minute),
		}
		if prev, ok := s.movements[venueID]; ok {
			m.ID = prev.ID
		}
		s.movements[venueID] = m
	}
}

// GroupConfidence scales with group size and is capped at 0.9.
func GroupConfidence(n int) float64 {
	return round2(math.Min(MaxGroupConfidence, 0.5+0.1*float64(n)))
}

func (s *Intelligence) decayTrendsLocked(now time.Time) {
	for key, t := range s.trends {
		idle := now.Sub(t.LastParticipantAt)
		if t.Momentum == MomentumRising && idle >= TrendStableAfter {
			t.Momentum = MomentumStable
		}
		switch {
		case t.Momentum == MomentumStable && idle >= TrendDecliningAfter:
			t.Momentum = MomentumDeclining
			t.Strength = round2(t.Strength - TrendDecayStep)
			t.LastDecayAt = now
		case t.Momentum == MomentumDeclining && now.Sub(t.LastDecayAt) >= TrendStableAfter:
			t.Strength = round2(t.Strength - TrendDecayStep)
			t.LastDecayAt = now
		}
		if t.Strength < TrendFloor || now.Sub(t.CreatedAt) > TrendMaxAge {
			delete(s.trends, key)
		}
	}
}

func (s *Intelligence) purgeLocked(now time.Time) {
	for id, list := range s.activities {
		list = trimActivities(list, now)
		if len(list) == 0 {
			delete(s.activities, id)
			continue
		}
		s.activities[id] = list
	}
	for venueID, m := range s.movements {
		if now.After(m.EstimatedArrival) {
			delete(s.movements, venueID)
		}
	}
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if now.Sub(a.Timestamp) <= ActivityWindow {
			kept = append(kept, a)
		}
	}
	s.alerts = kept
}

// trimActivities drops entries outside the window and caps the list. list is most recent first.
func trimActivities(list []FriendActivity, now time.Time) []FriendActivity {
	cutoff := now.Add(-ActivityWindow)
	out := list[:0]
	for _, a := range list {
		if a.Timestamp.After(cutoff) {
			out = append(out, a)
		}
	}
	if len(out) > MaxActivitiesPerFriend {
		out = out[:MaxActivitiesPerFriend]
	}
	return out
}

func cloneTrend(t *SocialTrend) SocialTrend {
	c := *t
	c.Participants = append([]string(nil), t.Participants...)
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
