// Package trend computes venue, social and timing trends from the event log at read time.
package trend

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/habit"
)

const (
	// MomentumWindow is the "recent" slice compared against the historical average.
	MomentumWindow = 6 * time.Hour
	// EmergingWindow is the window emerging patterns are counted in.
	EmergingWindow = 24 * time.Hour
	// MaxHistory caps the in-memory trend history.
	MaxHistory = 1000

	emergingMinCount = 3
	emergingFactor   = 2.0
	hotspotCount     = 3
)

// Direction classifies venue momentum.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionPeak    Direction = "peak"
	DirectionStable  Direction = "stable"
)

// VenueTrend is the read-time trend of one venue.
type VenueTrend struct {
	VenueID           string    `json:"venueId"`
	VenueType         string    `json:"venueType,omitempty"`
	Direction         Direction `json:"direction"`
	Momentum          float64   `json:"momentum"` // recent count / historical average per window
	RecentCount       int       `json:"recentCount"`
	HistoricalAverage float64   `json:"historicalAverage"`
	BuzzScore         float64   `json:"buzzScore"`
	PeakHour          int       `json:"peakHour"` // -1 when unknown
}

// SocialMetrics aggregates social behavior.
type SocialMetrics struct {
	AverageGroupSize  float64  `json:"averageGroupSize"`
	ActivityLevel     string   `json:"activityLevel"`
	PlanFormationRate float64  `json:"planFormationRate"`
	Hotspots          []string `json:"hotspots"`
}

// EmergingPattern is an event type and time-of-day combination running hot.
type EmergingPattern struct {
	EventType         eventlog.EventType `json:"eventType"`
	TimeOfDay         aitime.TimeOfDay   `json:"timeOfDay"`
	RecentCount       int                `json:"recentCount"`
	HistoricalAverage float64            `json:"historicalAverage"`
}

// Analysis is the full result of AnalyzeTrends.
type Analysis struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Venues      []VenueTrend      `json:"venues"`
	Social      SocialMetrics     `json:"social"`
	Timing      *habit.TimeHabits `json:"timing"`
	Emerging    []EmergingPattern `json:"emerging"`
}

// HistoryEntry is one recorded venue trend observation.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	VenueID   string    `json:"venueId"`
	Direction Direction `json:"direction"`
	Momentum  float64   `json:"momentum"`
}

// EventSource reads the event log.
type EventSource interface {
	Events() []eventlog.UserEvent
}

// Analyzer computes trends. Its only state is the bounded history buffer.
type Analyzer struct {
	events EventSource
	clock  aitime.Clock
	logger *slog.Logger

	mu      sync.Mutex
	history []HistoryEntry
}

// NewAnalyzer creates an analyzer over events.
func NewAnalyzer(events EventSource) *Analyzer {
	return &Analyzer{
		events: events,
		clock:  aitime.SystemClock{},
		logger: slog.Default().With("component", "trend"),
	}
}

// WithClock sets the clock.
func (a *Analyzer) WithClock(c aitime.Clock) *Analyzer {
	a.clock = aitime.OrSystem(c)
	return a
}

// AnalyzeTrends computes venue, social, timing and emerging trends from the current log.
func (a *Analyzer) AnalyzeTrends(_ context.Context) *Analysis {
	now := a.clock.Now()
	var events []eventlog.UserEvent
	if a.events != nil {
		events = a.events.Events()
	}

	out := &Analysis{
		GeneratedAt: now,
		Venues:      VenueTrends(events, now),
		Social:      Social(events, now),
		Timing:      habit.AnalyzeTimeHabits(events),
		Emerging:    Emerging(events, now),
	}
	a.record(now, out.Venues)

	a.logger.Debug("trends analyzed",
		"events", len(events),
		"venues", len(out.Venues),
		"emerging", len(out.Emerging))
	return out
}

// History returns recorded observations, oldest first.
func (a *Analyzer) History() []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]HistoryEntry(nil), a.history...)
}

func (a *Analyzer) record(now time.Time, venues []VenueTrend) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range venues {
		a.history = append(a.history, HistoryEntry{Timestamp: now, VenueID: v.VenueID, Direction: v.Direction, Momentum: v.Momentum})
	}
	if over := len(a.history) - MaxHistory; over > 0 {
		a.history = append([]HistoryEntry(nil), a.history[over:]...)
	}
}

// VenueTrends groups venue interactions by venue and classifies each one.
// Sorted by buzz score, then venue id.
func VenueTrends(events []eventlog.UserEvent, now time.Time) []VenueTrend {
	type bucket struct {
		venueType  string
		recent     int
		historical int
		buzz       float64
		timestamps []time.Time
	}

	recentStart := now.Add(-MomentumWindow)
	buzzStart := now.Add(-EmergingWindow)
	var oldest time.Time
	buckets := map[string]*bucket{}

	for _, e := range events {
		venueID := e.String("venueId")
		if venueID == "" {
			continue
		}
		if e.Type != eventlog.TypeVenueInteraction && e.Type != eventlog.TypeTrendFollow {
			continue
		}
		b, ok := buckets[venueID]
		if !ok {
			b = &bucket{}
			buckets[venueID] = b
		}
		if e.Type == eventlog.TypeTrendFollow {
			// Friends converging on a venue add buzz, not momentum.
			if !e.Timestamp.Before(buzzStart) {
				b.buzz++
			}
			continue
		}
		if vt := e.String("venueType"); vt != "" {
			b.venueType = vt
		}
		b.timestamps = append(b.timestamps, e.Timestamp)
		if !e.Timestamp.Before(recentStart) {
			b.recent++
		} else {
			b.historical++
			if oldest.IsZero() || e.Timestamp.Before(oldest) {
				oldest = e.Timestamp
			}
		}
		if !e.Timestamp.Before(buzzStart) {
			b.buzz += habit.VenueActionWeight(e.String("action"))
		}
	}

	windows := 1.0
	if !oldest.IsZero() {
		windows = math.Max(1, math.Ceil(recentStart.Sub(oldest).Hours()/MomentumWindow.Hours()))
	}

	out := make([]VenueTrend, 0, len(buckets))
	for id, b := range buckets {
		avg := float64(b.historical) / windows
		momentum := float64(b.recent)
		if avg > 0 {
			momentum = float64(b.recent) / avg
		}
		out = append(out, VenueTrend{
			VenueID:           id,
			VenueType:         b.venueType,
			Direction:         classify(b.recent, avg),
			Momentum:          round2(momentum),
			RecentCount:       b.recent,
			HistoricalAverage: round2(avg),
			BuzzScore:         round2(b.buzz),
			PeakHour:          habit.PeakHour(b.timestamps),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BuzzScore != out[j].BuzzScore {
			return out[i].BuzzScore > out[j].BuzzScore
		}
		return out[i].VenueID < out[j].VenueID
	})
	return out
}

// classify maps recent activity against the historical average.
// Without history, two or more recent interactions count as rising.
func classify(recent int, avg float64) Direction {
	if avg == 0 {
		if recent >= 2 {
			return DirectionRising
		}
		return DirectionStable
	}
	ratio := float64(recent) / avg
	switch {
	case ratio >= 2:
		return DirectionPeak
	case ratio >= 1.2:
		return DirectionRising
	case ratio < 0.8:
		return DirectionFalling
	default:
		return DirectionStable
	}
}

// Social computes aggregate social metrics over the last 24 hours.
func Social(events []eventlog.UserEvent, now time.Time) SocialMetrics {
	start := now.Add(-EmergingWindow)
	var groupTotal, groupCount float64
	var responses, accepted, recent int
	hot := map[string]int{}

	for _, e := range events {
		if e.Timestamp.Before(start) {
			continue
		}
		recent++
		switch e.Type {
		case eventlog.TypeSuggestionFeedback:
			if size, ok := e.Number("groupSize"); ok && size >= 1 {
				groupTotal += size
				groupCount++
			}
		case eventlog.TypeFriendResponse:
			responses++
			if e.String("response") == "accepted" {
				accepted++
			}
		case eventlog.TypeVenueInteraction, eventlog.TypeTrendFollow:
			if id := e.String("venueId"); id != "" {
				hot[id]++
			}
		}
	}

	m := SocialMetrics{
		ActivityLevel: activityLevel(recent),
		Hotspots:      habit.TopNCounts(hot, hotspotCount),
	}
	if groupCount > 0 {
		m.AverageGroupSize = round2(groupTotal / groupCount)
	}
	if responses > 0 {
		m.PlanFormationRate = round2(float64(accepted) / float64(responses))
	}
	if m.Hotspots == nil {
		m.Hotspots = []string{}
	}
	return m
}

func activityLevel(n int) string {
	switch {
	case n < 5:
		return "low"
	case n < 15:
		return "moderate"
	case n < 30:
		return "high"
	default:
		return "very_high"
	}
}

// Emerging flags event type and time-of-day combinations seen at least three times
// in the last 24 hours and at least twice their historical daily average.
func Emerging(events []eventlog.UserEvent, now time.Time) []EmergingPattern {
	type key struct {
		t   eventlog.EventType
		tod aitime.TimeOfDay
	}
	start := now.Add(-EmergingWindow)
	recent := map[key]int{}
	historical := map[key]int{}
	var oldest time.Time

	for _, e := range events {
		k := key{e.Type, e.Context.TimeOfDay}
		if k.tod == "" {
			k.tod = aitime.TimeOfDayAt(e.Timestamp)
		}
		if !e.Timestamp.Before(start) {
			recent[k]++
			continue
		}
		historical[k]++
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}

	days := 1.0
	if !oldest.IsZero() {
		days = math.Max(1, math.Ceil(start.Sub(oldest).Hours()/24))
	}

	var out []EmergingPattern
	for k, n := range recent {
		avg := float64(historical[k]) / days
		if n < emergingMinCount || float64(n) < emergingFactor*avg {
			continue
		}
		out = append(out, EmergingPattern{EventType: k.t, TimeOfDay: k.tod, RecentCount: n, HistoricalAverage: round2(avg)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecentCount != out[j].RecentCount {
			return out[i].RecentCount > out[j].RecentCount
		}
		if out[i].EventType != out[j].EventType {
			return out[i].EventType < out[j].EventType
		}
		return out[i].TimeOfDay < out[j].TimeOfDay
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
