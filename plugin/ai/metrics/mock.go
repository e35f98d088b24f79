package metrics

import (
	"context"
	"sync"
	"time"
)

// MockRecorder records calls for tests.
type MockRecorder struct {
	mu       sync.Mutex
	Routes   []RouteCall
	Outcomes []OutcomeCall
}

// RouteCall is one RecordRoute call.
type RouteCall struct {
	Intent  string
	Local   bool
	Latency time.Duration
}

// OutcomeCall is one RecordPredictionOutcome call.
type OutcomeCall struct {
	Kind     string
	Accurate bool
}

// NewMockRecorder creates an empty MockRecorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{}
}

// RecordRoute records a route call.
func (m *MockRecorder) RecordRoute(_ context.Context, intent string, local bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Routes = append(m.Routes, RouteCall{Intent: intent, Local: local, Latency: latency})
}

// RecordPredictionOutcome records an outcome call.
func (m *MockRecorder) RecordPredictionOutcome(_ context.Context, kind string, accurate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, OutcomeCall{Kind: kind, Accurate: accurate})
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordRoute(context.Context, string, bool, time.Duration) {}

func (NopRecorder) RecordPredictionOutcome(context.Context, string, bool) {}

// OrNop returns r, or a NopRecorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}

var (
	_ Recorder = (*MockRecorder)(nil)
	_ Recorder = NopRecorder{}
)
