package validator

import (
	"context"
	"strings"

	"github.com/hrygo/nova/plugin/ai/errlog"
)

// FallbackIntent is the intent substituted when a reply cannot be trusted.
const FallbackIntent = "general_chat"

// LLMResponse is the JSON shape chat replies must take.
type LLMResponse struct {
	Message     string   `json:"message" validate:"required"`
	Intent      string   `json:"intent" validate:"required"`
	Suggestions []string `json:"suggestions,omitempty" validate:"omitempty,max=4,dive,required"`
	Confidence  *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Fallback is set when the reply was substituted.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackResponse returns the canned reply rendered when the AI pipeline fails.
func FallbackResponse() LLMResponse {
	return LLMResponse{
		Message:     "Sorry, I couldn't put that together just now. Ask me about bars, clubs, or what's happening tonight and I'll try again.",
		Intent:      FallbackIntent,
		Suggestions: []string{"What's busy right now?", "Find me a chill bar", "Where are my friends?"},
		Fallback:    true,
	}
}

// ValidateLLMResponse parses and checks a raw chat reply. It never returns an empty value:
// malformed or incomplete replies yield FallbackResponse.
func (v *Validator) ValidateLLMResponse(ctx context.Context, raw string) LLMResponse {
	r := ParseStructured[LLMResponse](ctx, v, raw, "llm_response")
	if !r.OK() {
		return FallbackResponse()
	}
	r.Value.Message = strings.TrimSpace(r.Value.Message)
	if r.Value.Message == "" {
		v.reporter.HandleError(ctx, errlog.TypeAICall, "llm_response: blank message", map[string]any{"source": "llm_response"}, false)
		return FallbackResponse()
	}
	return r.Value
}

func jsonName(tag, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
