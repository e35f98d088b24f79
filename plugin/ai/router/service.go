package router

import (
	"context"
	"log/slog"
	"time"
)

// Service implements the two-layer RouterService.
// Layer 1: Rule-based matching (0ms)
// Layer 2: LLM classification (~400ms) - fallback for the remainder
type Service struct {
	ruleMatcher   *RuleMatcher
	llmClassifier *LLMClassifier
	logger        *slog.Logger
}

// Config contains the configuration for the router service.
type Config struct {
	// LLMClient is optional; without it unmatched input is general chat.
	LLMClient LLMClient
	Model     string
}

// NewService creates a new router service.
func NewService(cfg Config) *Service {
	s := &Service{
		ruleMatcher: NewRuleMatcher(),
		logger:      slog.Default().With("component", "router"),
	}
	if cfg.LLMClient != nil {
		s.llmClassifier = NewLLMClassifier(cfg.LLMClient, cfg.Model)
	}
	return s
}

// ClassifyIntent classifies user intent from input text.
// Never returns an intent outside AllIntents.
func (s *Service) ClassifyIntent(ctx context.Context, input string) (Intent, float32, error) {
	start := time.Now()

	intent, confidence, matched := s.ruleMatcher.Match(input)
	if matched {
		s.logger.Debug("intent classified by rule matcher",
			"input", truncate(input, 50),
			"intent", intent,
			"confidence", confidence,
			"latency_ms", time.Since(start).Milliseconds())
		return intent, confidence, nil
	}

	if s.llmClassifier != nil {
		result, err := s.llmClassifier.Classify(ctx, input)
		if err != nil {
			s.logger.Warn("LLM classifier error", "error", err)
			return IntentGeneralChat, 0, err
		}
		s.logger.Debug("intent classified by LLM",
			"input", truncate(input, 50),
			"intent", result.Intent,
			"confidence", result.Confidence,
			"reasoning", result.Reasoning,
			"latency_ms", time.Since(start).Milliseconds())
		return result.Intent, result.Confidence, nil
	}

	s.logger.Debug("no intent match found",
		"input", truncate(input, 50),
		"latency_ms", time.Since(start).Milliseconds())
	return IntentGeneralChat, 0, nil
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Ensure Service implements RouterService
var _ RouterService = (*Service)(nil)
