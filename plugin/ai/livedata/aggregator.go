package livedata

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/loop"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/plugin/ai/timeout"
)

// Significant-change thresholds.
const (
	CrowdChangeThreshold = 15
	WaitChangeThreshold  = 10
)

// EventRecorder records events in the event log.
type EventRecorder interface {
	Track(ctx context.Context, eventType eventlog.EventType, data map[string]any, source eventlog.Source) eventlog.UserEvent
}

// Config configures the aggregator.
type Config struct {
	RefreshInterval time.Duration // default: 30s
	Venues          []VenueProfile
}

// DefaultConfig returns the default configuration with the built-in catalog.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: timeout.LiveDataRefreshInterval,
		Venues:          DefaultVenues(),
	}
}

// Aggregator owns the live venue and event maps.
// Per venue: stale -> refreshing -> fresh -> stale.
type Aggregator struct {
	interval time.Duration
	source   Source
	clock    aitime.Clock
	recorder EventRecorder
	pub      stream.Publisher
	reporter errlog.Reporter
	schedule func(func())
	logger   *slog.Logger
	loop     *loop.Loop

	mu         sync.RWMutex
	order      []string
	venues     map[string]VenueProfile
	data       map[string]LiveVenueData
	events     map[string]LiveEventData
	refreshing map[string]bool
}

// NewAggregator creates a stopped aggregator over cfg.Venues.
func NewAggregator(cfg Config) *Aggregator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = timeout.LiveDataRefreshInterval
	}
	a := &Aggregator{
		interval:   cfg.RefreshInterval,
		source:     NewSimulator(nil),
		clock:      aitime.SystemClock{},
		pub:        stream.NopPublisher{},
		reporter:   errlog.NopReporter{},
		schedule:   func(fn func()) { go fn() },
		logger:     slog.Default().With("component", "livedata"),
		venues:     map[string]VenueProfile{},
		data:       map[string]LiveVenueData{},
		events:     map[string]LiveEventData{},
		refreshing: map[string]bool{},
	}
	for _, v := range cfg.Venues {
		a.RegisterVenue(v)
	}
	a.loop = loop.New("livedata", a.interval, func(ctx context.Context) { a.RefreshAll(ctx) })
	return a
}

// WithSource replaces the simulator.
func (a *Aggregator) WithSource(s Source) *Aggregator {
	if s != nil {
		a.source = s
	}
	return a
}

// WithClock sets the clock.
func (a *Aggregator) WithClock(c aitime.Clock) *Aggregator {
	a.clock = aitime.OrSystem(c)
	return a
}

// WithRecorder sets where significant changes are tracked.
func (a *Aggregator) WithRecorder(r EventRecorder) *Aggregator {
	a.recorder = r
	return a
}

// WithPublisher sets the stream receiving venue.update messages.
func (a *Aggregator) WithPublisher(p stream.Publisher) *Aggregator {
	a.pub = stream.OrNop(p)
	return a
}

// WithReporter sets the error reporter.
func (a *Aggregator) WithReporter(r errlog.Reporter) *Aggregator {
	a.reporter = errlog.OrNop(r)
	return a
}

// WithScheduler sets how background refreshes are dispatched. The default runs them on a goroutine.
func (a *Aggregator) WithScheduler(schedule func(func())) *Aggregator {
	if schedule != nil {
		a.schedule = schedule
	}
	return a
}

// RegisterVenue adds or replaces a venue profile.
func (a *Aggregator) RegisterVenue(v VenueProfile) {
	if v.ID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.venues[v.ID]; !ok {
		a.order = append(a.order, v.ID)
	}
	a.venues[v.ID] = v
}

// Venue returns a registered venue profile.
func (a *Aggregator) Venue(id string) (VenueProfile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.venues[id]
	return v, ok
}

// Venues returns registered venues in registration order.
func (a *Aggregator) Venues() []VenueProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]VenueProfile, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.venues[id])
	}
	return out
}

// Start begins periodic refreshes. Idempotent.
func (a *Aggregator) Start(ctx context.Context) {
	a.loop.Start(ctx)
}

// Stop halts periodic refreshes. Idempotent; an in-flight background refresh is not cancelled.
func (a *Aggregator) Stop() {
	a.loop.Stop()
}

// IsRunning reports whether the refresh loop is active.
func (a *Aggregator) IsRunning() bool {
	return a.loop.IsRunning()
}

// IsDataFresh reports whether d is younger than twice the refresh interval.
func (a *Aggregator) IsDataFresh(d LiveVenueData) bool {
	if d.Timestamp.IsZero() {
		return false
	}
	return a.clock.Now().Sub(d.Timestamp) < 2*a.interval
}

// GetVenueData returns the cached snapshot for id, best effort. A stale or
// missing snapshot schedules one background refresh without blocking.
func (a *Aggregator) GetVenueData(ctx context.Context, id string) (LiveVenueData, bool) {
	a.mu.Lock()
	_, known := a.venues[id]
	d, ok := a.data[id]
	needsRefresh := known && (!ok || !a.isFreshLocked(d)) && !a.refreshing[id]
	if needsRefresh {
		a.refreshing[id] = true
	}
	a.mu.Unlock()

	if needsRefresh {
		bg := context.WithoutCancel(ctx)
		a.schedule(func() {
			a.RefreshVenue(bg, id)
		})
	}
	return d, ok
}

// RefreshAll regenerates every venue snapshot and the event list.
func (a *Aggregator) RefreshAll(ctx context.Context) {
	for _, v := range a.Venues() {
		a.RefreshVenue(ctx, v.ID)
	}
	a.refreshEvents()
}

// RefreshVenue regenerates one snapshot and emits a change event when it moved significantly.
func (a *Aggregator) RefreshVenue(ctx context.Context, id string) (LiveVenueData, bool) {
	a.mu.RLock()
	v, ok := a.venues[id]
	a.mu.RUnlock()
	if !ok {
		return LiveVenueData{}, false
	}

	next := a.source.VenueSnapshot(v, a.clock.Now())
	next.VenueID = v.ID
	if next.VenueType == "" {
		next.VenueType = v.Type
	}

	a.mu.Lock()
	prev, hadPrev := a.data[id]
	a.data[id] = next
	delete(a.refreshing, id)
	a.mu.Unlock()

	if hadPrev {
		if reasons := SignificantChange(prev, next); len(reasons) > 0 {
			a.emitChange(ctx, v, Change{VenueID: id, Previous: prev, Current: next, Reasons: reasons})
		}
	}
	return next, true
}

// SignificantChange returns why next differs meaningfully from prev, or nil.
func SignificantChange(prev, next LiveVenueData) []string {
	var reasons []string
	if abs(next.CrowdLevel-prev.CrowdLevel) > CrowdChangeThreshold {
		reasons = append(reasons, "crowd_level")
	}
	if abs(next.WaitTime-prev.WaitTime) > WaitChangeThreshold {
		reasons = append(reasons, "wait_time")
	}
	if next.Pricing.PriceLevel != prev.Pricing.PriceLevel {
		reasons = append(reasons, "price_level")
	}
	return reasons
}

func (a *Aggregator) emitChange(ctx context.Context, v VenueProfile, c Change) {
	a.logger.Debug("significant venue change", "venue_id", v.ID, "reasons", c.Reasons)
	if a.recorder != nil {
		a.recorder.Track(ctx, eventlog.TypeVenueInteraction, eventlog.ToData(eventlog.VenueInteraction{
			VenueID:   v.ID,
			VenueType: v.Type,
			Action:    "live_update",
			VenueName: v.Name,
			Area:      v.Area,
		}, map[string]any{
			"crowdLevel": c.Current.CrowdLevel,
			"waitTime":   c.Current.WaitTime,
			"priceLevel": string(c.Current.Pricing.PriceLevel),
			"reasons":    c.Reasons,
		}), eventlog.SourceSystem)
	}
	if err := a.pub.Publish(ctx, stream.TopicVenueUpdate, c); err != nil {
		a.reporter.HandleError(ctx, errlog.TypeDataProcessing, "failed to publish venue update",
			map[string]any{"venueId": v.ID, "error": err.Error()}, false)
	}
}

func (a *Aggregator) refreshEvents() {
	now := a.clock.Now()
	venues := a.Venues()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range venues {
		for _, e := range a.source.Events(v, now) {
			if e.EventID == "" {
				continue
			}
			if _, exists := a.events[e.EventID]; !exists {
				a.events[e.EventID] = e
			}
		}
	}
	for id, e := range a.events {
		if !now.Before(e.EndTime) {
			delete(a.events, id)
			continue
		}
		e.IsActive = !now.Before(e.StartTime)
		a.events[id] = e
	}
}

// GetLiveVenues returns fresh snapshots in venue registration order.
func (a *Aggregator) GetLiveVenues() []LiveVenueData {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []LiveVenueData
	for _, id := range a.order {
		if d, ok := a.data[id]; ok && a.isFreshLocked(d) {
			out = append(out, d)
		}
	}
	return out
}

// GetActiveEvents returns active, unexpired events, optionally for one venue, by start time.
func (a *Aggregator) GetActiveEvents(venueID string) []LiveEventData {
	now := a.clock.Now()
	a.mu.RLock()
	events := maps.Clone(a.events)
	a.mu.RUnlock()

	var out []LiveEventData
	for _, e := range events {
		if venueID != "" && e.VenueID != venueID {
			continue
		}
		if now.Before(e.StartTime) || !now.Before(e.EndTime) {
			continue
		}
		e.IsActive = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

func (a *Aggregator) isFreshLocked(d LiveVenueData) bool {
	return !d.Timestamp.IsZero() && a.clock.Now().Sub(d.Timestamp) < 2*a.interval
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
