package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/llm"
	"github.com/hrygo/nova/plugin/ai/metrics"
	"github.com/hrygo/nova/plugin/ai/router"
	"github.com/hrygo/nova/plugin/ai/validator"
)

type fixedClassifier struct {
	intent     router.Intent
	confidence float32
	err        error
}

func (c fixedClassifier) ClassifyIntent(context.Context, string) (router.Intent, float32, error) {
	return c.intent, c.confidence, c.err
}

type fakeContexts struct {
	useLLM bool
	local  *validator.LLMResponse
	prompt string
}

func (f *fakeContexts) ShouldUseLLM(router.Intent, float32) bool { return f.useLLM }

func (f *fakeContexts) GenerateLocalResponse(context.Context, router.Intent, string) *validator.LLMResponse {
	return f.local
}

func (f *fakeContexts) BuildMicroPrompt(_ context.Context, _ router.Intent, message string) string {
	return f.prompt + "Query: " + message
}

type fakeModel struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (m *fakeModel) Chat(_ context.Context, messages []llm.Message) (string, error) {
	m.calls = append(m.calls, messages)
	return m.reply, m.err
}

type fakeSearches struct {
	queries []string
	intents [][]string
}

func (f *fakeSearches) RecordSearch(_ context.Context, query string, intents []string) {
	f.queries = append(f.queries, query)
	f.intents = append(f.intents, intents)
}

const goodReply = `{"message":"Head to Alpha, it's lively.","intent":"venue_search","suggestions":["Show Alpha"],"confidence":0.8}`

type fixture struct {
	svc      *Service
	model    *fakeModel
	contexts *fakeContexts
	searches *fakeSearches
	events   *eventlog.Tracker
	metrics  *metrics.MockRecorder
	reporter *errlog.MockReporter
	clock    *aitime.FakeClock
}

func newFixture(classifier Classifier) *fixture {
	f := &fixture{
		model:    &fakeModel{reply: goodReply},
		contexts: &fakeContexts{useLLM: true, prompt: "Time: evening\n"},
		searches: &fakeSearches{},
		metrics:  metrics.NewMockRecorder(),
		reporter: errlog.NewMockReporter(),
		clock:    aitime.NewFakeClock(time.Date(2026, 10, 14, 21, 0, 0, 0, time.UTC)),
	}
	f.events = eventlog.NewTracker(nil, nil).WithClock(f.clock)
	f.svc = NewService(classifier, f.contexts, f.model, DefaultConfig()).
		WithClock(f.clock).
		WithMemory(f.searches).
		WithRecorder(f.events).
		WithMetrics(f.metrics).
		WithReporter(f.reporter)
	return f
}

func TestService_LocalRoute(t *testing.T) {
	f := newFixture(fixedClassifier{intent: router.IntentVenueSearch, confidence: 0.9})
	f.contexts.useLLM = false
	f.contexts.local = &validator.LLMResponse{Message: "You usually enjoy jazz bars.", Intent: "venue_search"}

	reply := f.svc.Reply(context.Background(), "s1", "find me a bar")

	assert.True(t, reply.Local)
	assert.Equal(t, "You usually enjoy jazz bars.", reply.Response.Message)
	assert.Empty(t, f.model.calls)

	require.Len(t, f.metrics.Routes, 1)
	assert.Equal(t, "venue_search", f.metrics.Routes[0].Intent)
	assert.True(t, f.metrics.Routes[0].Local)

	assert.Equal(t, []string{"find me a bar"}, f.searches.queries)
	assert.Equal(t, []string{"venue_search"}, f.searches.intents[0])

	events := f.events.EventsByType(eventlog.TypeChatInteraction, 0)
	require.Len(t, events, 1)
	assert.Equal(t, "venue_search", events[0].String("intent"))
	assert.Equal(t, true, events[0].Data["local"])
	assert.Equal(t, "s1", events[0].String("sessionId"))
}

func TestService_LocalNilEscalates(t *testing.T) {
	f := newFixture(fixedClassifier{intent: router.IntentTimingQuestion, confidence: 0.9})
	f.contexts.useLLM = false

	reply := f.svc.Reply(context.Background(), "s1", "when should I go out?")

	assert.False(t, reply.Local)
	assert.Len(t, f.model.calls, 1)
	assert.Equal(t, "Head to Alpha, it's lively.", reply.Response.Message)
}

func TestService_LLMRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fixedClassifier{intent: router.IntentSocialCoordination, confidence: 0.8})

	reply := f.svc.Reply(ctx, "s1", "where is everyone?")
	require.False(t, reply.Response.Fallback)
	assert.False(t, reply.Local)
	assert.False(t, reply.Cached)
	assert.Equal(t, []string{"Show Alpha"}, reply.Response.Suggestions)

	require.Len(t, f.model.calls, 1)
	msgs := f.model.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, SystemPrompt, msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "Time: evening\nQuery: where is everyone?", msgs[1].Content)

	require.Len(t, f.metrics.Routes, 1)
	assert.False(t, f.metrics.Routes[0].Local)

	t.Run("HistoryStaysLocal", func(t *testing.T) {
		f.svc.Reply(ctx, "s1", "and after that?")
		require.Len(t, f.model.calls, 2)
		msgs := f.model.calls[1]
		require.Len(t, msgs, 2)
		assert.Equal(t, "Time: evening\nQuery: and after that?", msgs[1].Content)
		assert.Len(t, f.svc.History("s1"), 4)
	})

	t.Run("SessionsAreSeparate", func(t *testing.T) {
		f.svc.Reply(ctx, "s2", "hello there")
		msgs := f.model.calls[len(f.model.calls)-1]
		assert.Len(t, msgs, 2)
		assert.Len(t, f.svc.History("s2"), 2)
	})
}

func TestService_PayloadBounded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fixedClassifier{intent: router.IntentGeneralChat, confidence: 0.5})
	f.contexts.prompt = ""
	long := strings.Repeat("tell me everything about the night ", 10)

	for i := 0; i < 8; i++ {
		f.svc.Reply(ctx, "s1", fmt.Sprintf("%d %s", i, long))
	}

	require.Len(t, f.model.calls, 8)
	for _, msgs := range f.model.calls {
		require.Len(t, msgs, 2)
		assert.Equal(t, SystemPrompt, msgs[0].Content)
		user := 0
		for _, m := range msgs[1:] {
			user += len(m.Content)
		}
		assert.LessOrEqual(t, user, len("Query: ")+len("7 ")+len(long))
	}
}

func TestService_ReplyCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fixedClassifier{intent: router.IntentGeneralChat, confidence: 0.3})

	first := f.svc.Reply(ctx, "s1", "what's up tonight?")
	second := f.svc.Reply(ctx, "s2", "what's up tonight?")
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)
	assert.Len(t, f.model.calls, 1)

	f.clock.Advance(5 * time.Minute)
	third := f.svc.Reply(ctx, "s3", "what's up tonight?")
	assert.False(t, third.Cached)
	assert.Len(t, f.model.calls, 2)
}

func TestService_Fallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("LLMError", func(t *testing.T) {
		f := newFixture(fixedClassifier{intent: router.IntentGeneralChat})
		f.model.err = errors.New("upstream down")

		reply := f.svc.Reply(ctx, "s1", "hi")
		assert.True(t, reply.Response.Fallback)
		assert.Equal(t, validator.FallbackResponse().Message, reply.Response.Message)
	})

	t.Run("InvalidJSONIsReportedAndNotCached", func(t *testing.T) {
		f := newFixture(fixedClassifier{intent: router.IntentGeneralChat})
		f.model.reply = "sure, here you go"

		reply := f.svc.Reply(ctx, "s1", "hi")
		assert.True(t, reply.Response.Fallback)
		assert.Equal(t, 1, f.reporter.Count(errlog.TypeAICall))

		f.svc.Reply(ctx, "s1", "hi")
		assert.Len(t, f.model.calls, 2)
	})

	t.Run("MissingFields", func(t *testing.T) {
		f := newFixture(fixedClassifier{intent: router.IntentGeneralChat})
		f.model.reply = `{"message":"hello"}`

		reply := f.svc.Reply(ctx, "s1", "hi")
		assert.True(t, reply.Response.Fallback)
	})

	t.Run("NoModel", func(t *testing.T) {
		svc := NewService(fixedClassifier{intent: router.IntentGeneralChat}, &fakeContexts{useLLM: true}, nil, Config{})
		reply := svc.Reply(ctx, "s1", "hi")
		assert.True(t, reply.Response.Fallback)
	})

	t.Run("ClassifierErrorStillAnswers", func(t *testing.T) {
		f := newFixture(fixedClassifier{intent: router.IntentGeneralChat, err: errors.New("llm classifier down")})
		reply := f.svc.Reply(ctx, "s1", "hi")
		assert.Equal(t, router.IntentGeneralChat, reply.Intent)
		assert.False(t, reply.Response.Fallback)
	})

	t.Run("BlankMessage", func(t *testing.T) {
		f := newFixture(fixedClassifier{intent: router.IntentVenueSearch, confidence: 1})
		reply := f.svc.Reply(ctx, "s1", "   ")
		assert.True(t, reply.Response.Fallback)
		assert.Empty(t, f.model.calls)
		assert.Empty(t, f.searches.queries)
		assert.Empty(t, f.metrics.Routes)
	})
}

func TestService_HistoryWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fixedClassifier{intent: router.IntentVenueSearch, confidence: 0.9})
	f.contexts.useLLM = false
	f.contexts.local = &validator.LLMResponse{Message: "ok", Intent: "venue_search"}

	for i := 0; i < 8; i++ {
		f.svc.Reply(ctx, "s1", "bars?")
	}
	assert.Len(t, f.svc.History("s1"), 10)

	f.svc.ClearSession("s1")
	assert.Empty(t, f.svc.History("s1"))

	f.svc.Reply(ctx, "s2", "bars?")
	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, f.svc.Prune(30*time.Minute))
}
