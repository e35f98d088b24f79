package eventlog

import (
	"math"
	"sort"
	"time"
)

const (
	// InitialConfidence is assigned when a pattern is first seen.
	InitialConfidence = 0.3
	// ConfidenceStep is added per repeat occurrence, saturating at 1.0.
	ConfidenceStep = 0.1
)

// Pattern is a frequency/confidence statistic over an event type and time bucket.
type Pattern struct {
	Key            string         `json:"key"`
	EventType      EventType      `json:"eventType"`
	Frequency      int            `json:"frequency"`
	LastOccurrence time.Time      `json:"lastOccurrence"`
	Confidence     float64        `json:"confidence"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PatternKeys returns the composite keys an event contributes to.
func PatternKeys(e UserEvent) []string {
	t := string(e.Type)
	tod := string(e.Context.TimeOfDay)
	dow := e.Context.DayOfWeek
	return []string{
		t + ":" + tod,
		t + ":" + dow,
		t + ":" + tod + ":" + dow,
	}
}

// PatternAnalyzer maintains patterns incrementally. It is not safe for concurrent use;
// the Tracker serializes access.
type PatternAnalyzer struct {
	patterns map[string]*Pattern
}

// NewPatternAnalyzer creates an empty analyzer.
func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{patterns: make(map[string]*Pattern)}
}

// Update folds one event into its patterns.
func (a *PatternAnalyzer) Update(e UserEvent) {
	for _, key := range PatternKeys(e) {
		p, ok := a.patterns[key]
		if !ok {
			a.patterns[key] = &Pattern{
				Key:            key,
				EventType:      e.Type,
				Frequency:      1,
				LastOccurrence: e.Timestamp,
				Confidence:     InitialConfidence,
				Metadata: map[string]any{
					"timeOfDay": string(e.Context.TimeOfDay),
					"dayOfWeek": e.Context.DayOfWeek,
				},
			}
			continue
		}
		p.Frequency++
		if e.Timestamp.After(p.LastOccurrence) {
			p.LastOccurrence = e.Timestamp
		}
		p.Confidence = math.Min(1.0, p.Confidence+ConfidenceStep)
	}
}

// Get returns a copy of the pattern stored under key.
func (a *PatternAnalyzer) Get(key string) (Pattern, bool) {
	p, ok := a.patterns[key]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// All returns copies of every pattern ordered by key.
func (a *PatternAnalyzer) All() []Pattern {
	out := make([]Pattern, 0, len(a.patterns))
	for _, p := range a.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of patterns.
func (a *PatternAnalyzer) Len() int {
	return len(a.patterns)
}

// Reset drops every pattern.
func (a *PatternAnalyzer) Reset() {
	a.patterns = make(map[string]*Pattern)
}

func (a *PatternAnalyzer) restore(patterns []Pattern) {
	a.Reset()
	for i := range patterns {
		p := patterns[i]
		a.patterns[p.Key] = &p
	}
}
