package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/router"
)

// scriptedAPI returns one scripted reply per call and records requests.
type scriptedAPI struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []openai.ChatCompletionRequest
}

func (s *scriptedAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	if i >= len(s.replies) {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.replies[i]}}},
	}, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryBase = 0
	return cfg
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		expectErr bool
	}{
		{name: "openai", cfg: &Config{Provider: "openai", APIKey: "k"}},
		{name: "deepseek", cfg: &Config{Provider: "deepseek", APIKey: "k", Model: "deepseek-chat"}},
		{name: "ollama without key", cfg: &Config{Provider: "ollama", Model: "llama3"}},
		{name: "missing key", cfg: &Config{Provider: "openai"}, expectErr: true},
		{name: "unsupported provider", cfg: &Config{Provider: "unsupported", APIKey: "k"}, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.Model())
		})
	}
}

func TestClient_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		api := &scriptedAPI{replies: []string{"  {\"message\":\"hi\"}  "}}
		c := NewClientWithAPI(api, testConfig())

		out, err := c.Chat(ctx, []Message{
			{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
			{Role: openai.ChatMessageRoleUser, Content: "hello"},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"message":"hi"}`, out)

		require.Len(t, api.requests, 1)
		req := api.requests[0]
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 300, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	})

	t.Run("RetriesThenSucceeds", func(t *testing.T) {
		api := &scriptedAPI{
			errs:    []error{errors.New("rate limited"), nil},
			replies: []string{"", "ok"},
		}
		c := NewClientWithAPI(api, testConfig())

		out, err := c.Chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: "hello"}})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Len(t, api.requests, 2)
	})

	t.Run("ExhaustedRetriesReportAICall", func(t *testing.T) {
		boom := errors.New("upstream down")
		api := &scriptedAPI{errs: []error{boom, boom, boom}}
		reporter := errlog.NewMockReporter()
		c := NewClientWithAPI(api, testConfig()).WithReporter(reporter)

		_, err := c.Chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: "hello"}})
		require.Error(t, err)
		assert.True(t, errlog.IsType(err, errlog.TypeAICall))
		assert.ErrorIs(t, err, boom)
		assert.Len(t, api.requests, 3)
		assert.Equal(t, 1, reporter.Count(errlog.TypeAICall))
	})

	t.Run("EmptyChoicesAreRetried", func(t *testing.T) {
		api := &scriptedAPI{}
		cfg := testConfig()
		cfg.MaxRetries = 2
		c := NewClientWithAPI(api, cfg)

		_, err := c.Chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: "hello"}})
		require.Error(t, err)
		assert.Len(t, api.requests, 2)
	})

	t.Run("CanceledContextStops", func(t *testing.T) {
		api := &scriptedAPI{errs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
		c := NewClientWithAPI(api, testConfig())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := c.Chat(cctx, []Message{{Role: openai.ChatMessageRoleUser, Content: "hello"}})
		require.Error(t, err)
		assert.Len(t, api.requests, 1)
	})
}

func TestClient_CompleteOverrides(t *testing.T) {
	api := &scriptedAPI{replies: []string{`{"intent":"venue_search","confidence":0.9}`}}
	c := NewClientWithAPI(api, testConfig())

	out, err := c.Complete(context.Background(), "classify", router.ModelConfig{Model: "small", MaxTokens: 50, Temperature: 0.1})
	require.NoError(t, err)
	assert.Contains(t, out, "venue_search")

	req := api.requests[0]
	assert.Equal(t, "small", req.Model)
	assert.Equal(t, 50, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
	assert.Equal(t, "classify", req.Messages[0].Content)
}
