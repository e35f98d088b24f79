// Package llm is the chat-completion client used by the assistant and the intent classifier.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/router"
	"github.com/hrygo/nova/plugin/ai/timeout"
)

// Config holds the chat-completion endpoint configuration.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
	// RetryBase is the first backoff step; later steps double it. Zero retries immediately.
	RetryBase time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   300,
		Temperature: 0.7,
		MaxRetries:  3,
		Timeout:     timeout.LLMTimeout,
		RetryBase:   time.Second,
	}
}

// providerBaseURLs are the OpenAI-compatible endpoints of the supported providers.
var providerBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// ChatCompleter is the part of the OpenAI client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client performs chat completions with retry and a per-attempt timeout.
type Client struct {
	api      ChatCompleter
	config   *Config
	reporter errlog.Reporter
	logger   *slog.Logger
}

// NewClient creates a client for the configured provider.
func NewClient(cfg *Config) (*Client, error) {
	cfg = applyDefaults(cfg)

	defaultURL, ok := providerBaseURLs[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, fmt.Errorf("API key is required for provider %s", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = firstNonEmpty(cfg.BaseURL, defaultURL)

	return NewClientWithAPI(openai.NewClientWithConfig(clientConfig), cfg), nil
}

// NewClientWithAPI creates a client over an existing completion API.
func NewClientWithAPI(api ChatCompleter, cfg *Config) *Client {
	return &Client{
		api:      api,
		config:   applyDefaults(cfg),
		reporter: errlog.NopReporter{},
		logger:   slog.Default().With("component", "llm"),
	}
}

func applyDefaults(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 300
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Timeout == 0 {
		c.Timeout = timeout.LLMTimeout
	}
	if c.RetryBase < 0 {
		c.RetryBase = 0
	}
	return &c
}

// WithReporter sets where exhausted calls are reported.
func (c *Client) WithReporter(r errlog.Reporter) *Client {
	c.reporter = errlog.OrNop(r)
	return c
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.config.Model
}

// Chat performs a chat completion with the configured model settings.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	return c.chat(ctx, messages, router.ModelConfig{})
}

// Complete sends a single user prompt. Zero fields of mc fall back to the client config.
func (c *Client) Complete(ctx context.Context, prompt string, mc router.ModelConfig) (string, error) {
	return c.chat(ctx, []Message{{Role: openai.ChatMessageRoleUser, Content: prompt}}, mc)
}

func (c *Client) chat(ctx context.Context, messages []Message, mc router.ModelConfig) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       firstNonEmpty(mc.Model, c.config.Model),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	if mc.MaxTokens > 0 {
		req.MaxTokens = mc.MaxTokens
	}
	if mc.Temperature > 0 {
		req.Temperature = mc.Temperature
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	start := time.Now()
	var result string
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return fmt.Errorf("blank chat response")
		}
		result = content
		return nil
	})
	if err != nil {
		c.reporter.HandleError(ctx, errlog.TypeAICall, err.Error(), map[string]any{
			"model":    req.Model,
			"provider": c.config.Provider,
		}, true)
		return "", errlog.AICall("failed to complete chat", err)
	}

	c.logger.Debug("chat completion finished",
		"model", req.Model,
		"messages", len(messages),
		"latency_ms", time.Since(start).Milliseconds())
	return result, nil
}

// doWithRetry executes fn with exponential backoff. Each attempt gets its own timeout.
func (c *Client) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < c.config.MaxRetries-1 {
			waitTime := time.Duration(math.Pow(2, float64(attempt))) * c.config.RetryBase
			c.logger.Debug("LLM request failed, retrying",
				"attempt", attempt+1,
				"wait_time", waitTime,
				"error", err)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ router.LLMClient = (*Client)(nil)
