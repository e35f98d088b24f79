// Package assistant mediates chat messages: it classifies intent, answers from
// local context when it can, and otherwise asks the LLM with a bounded prompt.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/cache"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/llm"
	"github.com/hrygo/nova/plugin/ai/memory"
	"github.com/hrygo/nova/plugin/ai/metrics"
	"github.com/hrygo/nova/plugin/ai/router"
	"github.com/hrygo/nova/plugin/ai/validator"
)

// SystemPrompt tells the model what shape its reply must take.
const SystemPrompt = `You are Nova, a friendly nightlife companion. Keep answers short and concrete.
Reply with a single JSON object: {"message": string, "intent": string, "suggestions": [up to 4 short strings], "confidence": number between 0 and 1}.`

// Classifier classifies chat input.
type Classifier interface {
	ClassifyIntent(ctx context.Context, input string) (router.Intent, float32, error)
}

// ContextSource decides routing and builds local answers and prompts.
type ContextSource interface {
	ShouldUseLLM(intent router.Intent, confidence float32) bool
	GenerateLocalResponse(ctx context.Context, intent router.Intent, message string) *validator.LLMResponse
	BuildMicroPrompt(ctx context.Context, intent router.Intent, message string) string
}

// ChatModel completes a conversation.
type ChatModel interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// SearchRecorder keeps the search history.
type SearchRecorder interface {
	RecordSearch(ctx context.Context, query string, intents []string)
}

// EventRecorder records chat_interaction events.
type EventRecorder interface {
	TrackPayload(ctx context.Context, p eventlog.Payload, source eventlog.Source, extra map[string]any) eventlog.UserEvent
}

// Config configures the assistant.
type Config struct {
	// HistoryTurns is the conversation window kept per session. The window
	// is served by History and never sent to the model.
	HistoryTurns int
	CacheSize    int
	CacheTTL     time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistoryTurns: 10,
		CacheSize:    256,
		CacheTTL:     5 * time.Minute,
	}
}

// Reply is the answer to one chat message.
type Reply struct {
	Response   validator.LLMResponse `json:"response"`
	Intent     router.Intent         `json:"intent"`
	Confidence float32               `json:"confidence"`
	Local      bool                  `json:"local"`
	Cached     bool                  `json:"cached"`
}

// Service answers chat messages.
type Service struct {
	classifier Classifier
	contexts   ContextSource
	model      ChatModel
	searches   SearchRecorder
	events     EventRecorder
	metrics    metrics.Recorder
	validator  *validator.Validator
	history    *memory.ShortTermMemory
	replies    *cache.LRUCache[validator.LLMResponse]
	cfg        Config
	logger     *slog.Logger
}

// NewService creates an assistant. model may be nil, in which case every
// message that needs the LLM gets the fallback reply.
func NewService(classifier Classifier, contexts ContextSource, model ChatModel, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	return &Service{
		classifier: classifier,
		contexts:   contexts,
		model:      model,
		metrics:    metrics.NopRecorder{},
		validator:  validator.New(nil),
		history:    memory.NewShortTermMemory(cfg.HistoryTurns, nil),
		replies:    cache.NewLRUCache[validator.LLMResponse](cfg.CacheSize, cfg.CacheTTL, nil),
		cfg:        cfg,
		logger:     slog.Default().With("component", "assistant"),
	}
}

// WithMemory sets where searches are recorded.
func (s *Service) WithMemory(r SearchRecorder) *Service {
	s.searches = r
	return s
}

// WithRecorder sets where chat_interaction events are recorded.
func (s *Service) WithRecorder(r EventRecorder) *Service {
	s.events = r
	return s
}

// WithMetrics sets the routing metrics recorder.
func (s *Service) WithMetrics(r metrics.Recorder) *Service {
	s.metrics = metrics.OrNop(r)
	return s
}

// WithClock sets the clock used by the conversation window and reply cache.
// Call it before the first Reply.
func (s *Service) WithClock(c aitime.Clock) *Service {
	s.history = memory.NewShortTermMemory(s.cfg.HistoryTurns, c)
	s.replies = cache.NewLRUCache[validator.LLMResponse](s.cfg.CacheSize, s.cfg.CacheTTL, c)
	return s
}

// WithReporter sets where invalid replies are reported.
func (s *Service) WithReporter(r errlog.Reporter) *Service {
	s.validator = validator.New(r)
	return s
}

// Reply answers message within sessionID. It always returns a usable response.
func (s *Service) Reply(ctx context.Context, sessionID, message string) Reply {
	start := time.Now()
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{Response: validator.FallbackResponse(), Intent: router.IntentGeneralChat}
	}

	intent, confidence, err := s.classifier.ClassifyIntent(ctx, message)
	if err != nil {
		s.logger.Warn("intent classification failed", "error", err)
	}
	if s.searches != nil {
		s.searches.RecordSearch(ctx, message, []string{string(intent)})
	}

	reply := Reply{Intent: intent, Confidence: confidence}
	if !s.contexts.ShouldUseLLM(intent, confidence) {
		if local := s.contexts.GenerateLocalResponse(ctx, intent, message); local != nil {
			reply.Response = *local
			reply.Local = true
		}
	}
	if !reply.Local {
		reply.Response, reply.Cached = s.askModel(ctx, intent, message)
	}

	if s.events != nil {
		s.events.TrackPayload(ctx, eventlog.ChatInteraction{
			Intent:     string(intent),
			Message:    clip(message, 500),
			Local:      reply.Local,
			Confidence: float64(confidence),
		}, eventlog.SourceUserAction, map[string]any{"sessionId": sessionID})
	}

	s.history.AddMessage(sessionID, memory.Message{Role: openai.ChatMessageRoleUser, Content: message})
	s.history.AddMessage(sessionID, memory.Message{Role: openai.ChatMessageRoleAssistant, Content: reply.Response.Message})

	latency := time.Since(start)
	s.metrics.RecordRoute(ctx, string(intent), reply.Local, latency)
	s.logger.Debug("chat reply",
		"intent", intent,
		"confidence", confidence,
		"local", reply.Local,
		"cached", reply.Cached,
		"fallback", reply.Response.Fallback,
		"latency_ms", latency.Milliseconds())
	return reply
}

// askModel sends the system prompt and the micro prompt, nothing else, so the
// user-specific payload stays within MaxMicroPromptLen. Identical prompts
// within the cache TTL reuse the earlier validated reply.
func (s *Service) askModel(ctx context.Context, intent router.Intent, message string) (validator.LLMResponse, bool) {
	prompt := s.contexts.BuildMicroPrompt(ctx, intent, message)
	key := string(intent) + "|" + prompt
	if cached, ok := s.replies.Get(key); ok {
		return cached, true
	}
	if s.model == nil {
		return validator.FallbackResponse(), false
	}

	messages := []llm.Message{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	raw, err := s.model.Chat(ctx, messages)
	if err != nil {
		s.logger.Warn("LLM call failed, using fallback", "error", err)
		return validator.FallbackResponse(), false
	}

	resp := s.validator.ValidateLLMResponse(ctx, raw)
	if !resp.Fallback {
		s.replies.Set(key, resp, 0)
	}
	return resp, false
}

// History returns the conversation window of sessionID, oldest first.
func (s *Service) History(sessionID string) []memory.Message {
	return s.history.GetMessages(sessionID, 0)
}

// ClearSession forgets the conversation window of sessionID.
func (s *Service) ClearSession(sessionID string) {
	s.history.ClearSession(sessionID)
}

// Prune drops idle sessions and expired cached replies.
func (s *Service) Prune(maxIdle time.Duration) int {
	s.replies.CleanupExpired()
	return s.history.Prune(maxIdle)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ ChatModel = (*llm.Client)(nil)
