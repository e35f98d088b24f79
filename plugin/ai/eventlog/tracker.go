package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/plugin/ai/validator"
	"github.com/hrygo/nova/store"
)

// SituationProvider supplies location, weather and nearby-friend signals for new events.
type SituationProvider interface {
	Situation(ctx context.Context) Situation
}

// Config configures the Tracker.
type Config struct {
	UserID    string
	MaxEvents int
	// Retention is the age beyond which Cleanup drops events.
	Retention time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() *Config {
	return &Config{
		UserID:    "local",
		MaxEvents: 1000,
		Retention: 30 * 24 * time.Hour,
	}
}

// Tracker is the append-only event log. It owns events and patterns; other
// components only read through it.
type Tracker struct {
	mu        sync.RWMutex
	store     *store.Store
	config    *Config
	clock     aitime.Clock
	reporter  errlog.Reporter
	validator *validator.Validator
	situation SituationProvider
	publisher stream.Publisher
	logger    *slog.Logger

	events   []UserEvent
	analyzer *PatternAnalyzer
}

// NewTracker creates a Tracker persisting to st. A nil store keeps the log in memory.
func NewTracker(st *store.Store, cfg *Config) *Tracker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.UserID == "" {
		cfg.UserID = "local"
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 1000
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &Tracker{
		store:     st,
		config:    cfg,
		clock:     aitime.SystemClock{},
		reporter:  errlog.NopReporter{},
		validator: validator.New(nil),
		publisher: stream.NopPublisher{},
		logger:    slog.Default().With("component", "eventlog"),
		analyzer:  NewPatternAnalyzer(),
	}
}

// WithClock sets the clock used for timestamps and context buckets.
func (t *Tracker) WithClock(c aitime.Clock) *Tracker {
	t.clock = aitime.OrSystem(c)
	return t
}

// WithReporter sets the error reporter.
func (t *Tracker) WithReporter(r errlog.Reporter) *Tracker {
	t.reporter = errlog.OrNop(r)
	return t
}

// WithValidator sets the payload validator.
func (t *Tracker) WithValidator(v *validator.Validator) *Tracker {
	if v != nil {
		t.validator = v
	}
	return t
}

// WithSituation sets the situational signal provider.
func (t *Tracker) WithSituation(p SituationProvider) *Tracker {
	t.situation = p
	return t
}

// WithPublisher sets the stream that receives event.tracked messages.
func (t *Tracker) WithPublisher(p stream.Publisher) *Tracker {
	t.publisher = stream.OrNop(p)
	return t
}

// Load restores the persisted log and patterns.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	var snap snapshot
	found, err := t.store.GetJSON(ctx, store.KeyUserEvents, &snap)
	if err != nil {
		return errors.Wrap(err, "failed to load events")
	}
	if !found {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = snap.Events
	if over := len(t.events) - t.config.MaxEvents; over > 0 {
		t.events = append([]UserEvent(nil), t.events[over:]...)
	}
	patterns := make([]Pattern, 0, len(snap.Patterns))
	for _, entry := range snap.Patterns {
		entry.Pattern.Key = entry.Key
		patterns = append(patterns, entry.Pattern)
	}
	t.analyzer.restore(patterns)
	t.logger.Debug("restored event log", "events", len(t.events), "patterns", len(patterns))
	return nil
}

// Track records an event. Payloads failing their schema are logged and still recorded.
func (t *Tracker) Track(ctx context.Context, eventType EventType, data map[string]any, source Source) UserEvent {
	if data == nil {
		data = map[string]any{}
	}
	t.validate(ctx, eventType, data)

	now := t.clock.Now()
	event := UserEvent{
		ID:        uuid.NewString(),
		UserID:    t.config.UserID,
		Timestamp: now,
		Type:      eventType,
		Context:   t.buildContext(ctx, now),
		Data:      data,
		Source:    source,
	}

	t.mu.Lock()
	t.events = append(t.events, event)
	if over := len(t.events) - t.config.MaxEvents; over > 0 {
		t.events = append([]UserEvent(nil), t.events[over:]...)
	}
	t.analyzer.Update(event)
	t.persistLocked(ctx)
	t.mu.Unlock()

	if err := t.publisher.Publish(ctx, stream.TopicEventTracked, event); err != nil {
		t.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
	return event
}

// TrackPayload records a typed payload. Extra fields are merged without overriding payload fields.
func (t *Tracker) TrackPayload(ctx context.Context, p Payload, source Source, extra map[string]any) UserEvent {
	return t.Track(ctx, p.EventType(), ToData(p, extra), source)
}

// TrackVenueInteraction records a user action on a venue.
func (t *Tracker) TrackVenueInteraction(ctx context.Context, venueID, venueType, action string, extra map[string]any) UserEvent {
	return t.TrackPayload(ctx, VenueInteraction{VenueID: venueID, VenueType: venueType, Action: action}, SourceUserAction, extra)
}

// TrackFriendResponse records how a friend responded to a suggestion.
func (t *Tracker) TrackFriendResponse(ctx context.Context, friendID, response, suggestionID string) UserEvent {
	return t.TrackPayload(ctx, FriendResponse{FriendID: friendID, Response: response, SuggestionID: suggestionID}, SourceUserAction, nil)
}

// TrackSuggestionInteraction records feedback on a suggestion.
func (t *Tracker) TrackSuggestionInteraction(ctx context.Context, suggestionID, feedback string, extra map[string]any) UserEvent {
	return t.TrackPayload(ctx, SuggestionFeedback{SuggestionID: suggestionID, Feedback: feedback}, SourceUserAction, extra)
}

// EventsByType returns events of eventType, most recent first. A non-positive limit returns all.
func (t *Tracker) EventsByType(eventType EventType, limit int) []UserEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []UserEvent
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].Type != eventType {
			continue
		}
		out = append(out, t.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// EventsInWindow returns events no older than window, oldest first.
func (t *Tracker) EventsInWindow(window time.Duration) []UserEvent {
	cutoff := t.clock.Now().Add(-window)
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []UserEvent
	for _, e := range t.events {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Events returns a copy of the full log, oldest first.
func (t *Tracker) Events() []UserEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]UserEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of events held.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Patterns returns every pattern ordered by key.
func (t *Tracker) Patterns() []Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.analyzer.All()
}

// Pattern returns the pattern under key.
func (t *Tracker) Pattern(key string) (Pattern, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.analyzer.Get(key)
}

// Cleanup drops events older than the retention window and returns how many were dropped.
// Patterns are kept.
func (t *Tracker) Cleanup(ctx context.Context) int {
	cutoff := t.clock.Now().Add(-t.config.Retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := make([]UserEvent, 0, len(t.events))
	for _, e := range t.events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	dropped := len(t.events) - len(kept)
	t.events = kept
	if dropped > 0 {
		t.persistLocked(ctx)
		t.logger.Info("cleaned up events", "dropped", dropped, "remaining", len(kept))
	}
	return dropped
}

// Clear drops all events and patterns and deletes the persisted entry.
func (t *Tracker) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	t.analyzer.Reset()
	if t.store == nil {
		return nil
	}
	return errors.Wrap(t.store.Delete(ctx, store.KeyUserEvents), "failed to clear events")
}

func (t *Tracker) buildContext(ctx context.Context, now time.Time) EventContext {
	ec := EventContext{
		TimeOfDay: aitime.TimeOfDayAt(now),
		DayOfWeek: aitime.DayOfWeek(now),
	}
	if t.situation != nil {
		s := t.situation.Situation(ctx)
		ec.Location = s.Location
		ec.Weather = s.Weather
		ec.FriendsNearby = s.FriendsNearby
	}
	return ec
}

func (t *Tracker) validate(ctx context.Context, eventType EventType, data map[string]any) {
	schema := schemaFor(eventType)
	if schema == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err == nil {
		err = json.Unmarshal(raw, schema)
	}
	if err == nil {
		err = t.validator.Struct(schema)
	}
	if err != nil {
		t.reporter.HandleError(ctx, errlog.TypeValidation, "event payload failed schema check",
			map[string]any{"event_type": string(eventType), "error": err.Error()}, false)
	}
}

// persistLocked writes the log and patterns. Failures degrade durability only.
func (t *Tracker) persistLocked(ctx context.Context) {
	if t.store == nil {
		return
	}
	patterns := t.analyzer.All()
	snap := snapshot{Events: t.events, Patterns: make([]patternEntry, len(patterns))}
	for i, p := range patterns {
		snap.Patterns[i] = patternEntry{Key: p.Key, Pattern: p}
	}
	if err := t.store.SetJSON(ctx, store.KeyUserEvents, snap); err != nil {
		t.reporter.HandleError(ctx, errlog.TypeDataProcessing, "failed to persist events",
			map[string]any{"events": len(t.events), "error": err.Error()}, true)
	}
}

// snapshot is the persisted form: {events, patterns: [[key, pattern], ...]}.
type snapshot struct {
	Events   []UserEvent    `json:"events"`
	Patterns []patternEntry `json:"patterns"`
}

type patternEntry struct {
	Key     string
	Pattern Pattern
}

func (e patternEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Key, e.Pattern})
}

func (e *patternEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Errorf("pattern entry has %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Key); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Pattern)
}
