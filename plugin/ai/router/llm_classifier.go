package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/validator"
)

// LLMClient defines the interface for LLM API calls.
type LLMClient interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, prompt string, config ModelConfig) (string, error)
}

// LLMClassifier implements Layer 2 LLM-based intent classification.
// Target: ~400ms latency, only for input the rule matcher could not place.
type LLMClassifier struct {
	client              LLMClient
	model               string
	confidenceThreshold float32
}

// NewLLMClassifier creates a new LLM classifier.
func NewLLMClassifier(client LLMClient, model string) *LLMClassifier {
	return &LLMClassifier{
		client:              client,
		model:               model,
		confidenceThreshold: 0.6,
	}
}

// LLMClassifyResult contains the result of LLM classification.
type LLMClassifyResult struct {
	Intent     Intent
	Confidence float32
	Reasoning  string
}

// ClassificationPrompt is the prompt template for intent classification.
const ClassificationPrompt = `You classify messages sent to a nightlife assistant.

Possible intents:
- venue_search: looking for a bar, club, lounge or other venue
- timing_question: when to go, how busy a place is, wait times
- preference_query: asking about their own tastes or habits
- social_coordination: plans with friends or a group
- event_query: DJs, live music, shows, specials
- general_chat: anything else

Message: %s

Reply with JSON only: {"intent": "...", "confidence": 0.0-1.0, "reasoning": "..."}`

// Classify classifies user intent using LLM.
// This is the fallback layer for ambiguous inputs.
func (c *LLMClassifier) Classify(ctx context.Context, input string) (*LLMClassifyResult, error) {
	if c.client == nil {
		return &LLMClassifyResult{
			Intent:    IntentGeneralChat,
			Reasoning: "LLM client not configured",
		}, nil
	}

	config := ModelConfig{
		Model:       c.model,
		MaxTokens:   128,
		Temperature: 0.1, // Low temperature for classification
	}

	response, err := c.client.Complete(ctx, fmt.Sprintf(ClassificationPrompt, input), config)
	if err != nil {
		return nil, errors.Wrap(err, "LLM classification failed")
	}

	result, err := c.parseResponse(response)
	if err != nil {
		return &LLMClassifyResult{
			Intent:     IntentGeneralChat,
			Confidence: 0.3,
			Reasoning:  "Failed to parse LLM response: " + err.Error(),
		}, nil
	}

	if result.Confidence < c.confidenceThreshold {
		result.Intent = IntentGeneralChat
	}
	return result, nil
}

// llmResponse is the expected JSON structure from LLM.
type llmResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseResponse parses the LLM JSON response, tolerating markdown fences.
func (c *LLMClassifier) parseResponse(response string) (*LLMClassifyResult, error) {
	var resp llmResponse
	if err := json.Unmarshal([]byte(validator.ExtractJSON(response)), &resp); err != nil {
		return nil, err
	}

	return &LLMClassifyResult{
		Intent:     ParseIntent(strings.ToLower(strings.TrimSpace(resp.Intent))),
		Confidence: float32(resp.Confidence),
		Reasoning:  resp.Reasoning,
	}, nil
}
