package errlog

import (
	"context"
	"fmt"
	"sync"
)

// MockReporter captures reported errors for tests.
type MockReporter struct {
	mu    sync.Mutex
	Calls []MockCall
}

// MockCall is one captured HandleError invocation.
type MockCall struct {
	Type      ErrorType
	Message   string
	Fields    map[string]any
	Retryable bool
}

// NewMockReporter creates a new MockReporter.
func NewMockReporter() *MockReporter {
	return &MockReporter{}
}

func (m *MockReporter) HandleError(_ context.Context, errType ErrorType, message string, fields map[string]any, retryable bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Type: errType, Message: message, Fields: fields, Retryable: retryable})
	return fmt.Sprintf("mock_%d", len(m.Calls))
}

// Count returns how many errors of errType were reported.
func (m *MockReporter) Count(errType ErrorType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Type == errType {
			n++
		}
	}
	return n
}

// NopReporter discards every report.
type NopReporter struct{}

func (NopReporter) HandleError(context.Context, ErrorType, string, map[string]any, bool) string {
	return ""
}

// OrNop returns r, or a NopReporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}

var (
	_ Reporter = (*MockReporter)(nil)
	_ Reporter = NopReporter{}
)
