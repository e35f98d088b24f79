// Package router classifies chat input into nightlife intents.
package router

import "context"

// RouterService defines the intent classification interface.
type RouterService interface {
	// ClassifyIntent classifies user intent from input text.
	// Returns: intent type, confidence (0-1), error
	// Implementation: rule-based first (0ms) -> LLM fallback (~400ms)
	ClassifyIntent(ctx context.Context, input string) (Intent, float32, error)
}

// Intent represents the type of user intent.
type Intent string

const (
	IntentVenueSearch        Intent = "venue_search"
	IntentTimingQuestion     Intent = "timing_question"
	IntentPreferenceQuery    Intent = "preference_query"
	IntentSocialCoordination Intent = "social_coordination"
	IntentEventQuery         Intent = "event_query"
	IntentGeneralChat        Intent = "general_chat"
)

// AllIntents lists every intent the classifier can produce.
var AllIntents = []Intent{
	IntentVenueSearch,
	IntentTimingQuestion,
	IntentPreferenceQuery,
	IntentSocialCoordination,
	IntentEventQuery,
	IntentGeneralChat,
}

// ParseIntent maps a string to a known intent, defaulting to general chat.
func ParseIntent(s string) Intent {
	for _, intent := range AllIntents {
		if string(intent) == s {
			return intent
		}
	}
	return IntentGeneralChat
}

// ModelConfig represents the configuration for a model call.
type ModelConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}
