package router

import (
	"context"
	"sync"
)

// MockRouterService is a mock implementation of RouterService for testing.
type MockRouterService struct {
	mu sync.Mutex
	// IntentOverrides allows tests to override intent classification results
	IntentOverrides map[string]Intent
	// Confidence is returned with overridden intents.
	Confidence float32
	Err        error
	Calls      []string
}

// NewMockRouterService creates a new MockRouterService.
func NewMockRouterService() *MockRouterService {
	return &MockRouterService{
		IntentOverrides: make(map[string]Intent),
		Confidence:      0.9,
	}
}

// ClassifyIntent returns the override for input, or general chat with zero confidence.
func (m *MockRouterService) ClassifyIntent(_ context.Context, input string) (Intent, float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, input)
	if m.Err != nil {
		return IntentGeneralChat, 0, m.Err
	}
	if intent, ok := m.IntentOverrides[input]; ok {
		return intent, m.Confidence, nil
	}
	return IntentGeneralChat, 0, nil
}

// MockLLMClient is a canned LLMClient.
type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
}

// Complete records the prompt and returns the canned response.
func (m *MockLLMClient) Complete(_ context.Context, prompt string, _ ModelConfig) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

var (
	_ RouterService = (*MockRouterService)(nil)
	_ LLMClient     = (*MockLLMClient)(nil)
)
