package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/router"
	"github.com/hrygo/nova/plugin/ai/validator"
)

// LocalConfidenceThreshold is the confidence an allow-listed intent must exceed to be answered locally.
const LocalConfidenceThreshold = 0.7

var localIntents = map[router.Intent]bool{
	router.IntentVenueSearch:     true,
	router.IntentTimingQuestion:  true,
	router.IntentPreferenceQuery: true,
}

// ShouldUseLLM reports whether intent must be sent to the language model.
func ShouldUseLLM(intent router.Intent, confidence float32) bool {
	return !(localIntents[intent] && confidence > LocalConfidenceThreshold)
}

// ShouldUseLLM is the method form of the package-level ShouldUseLLM.
func (m *Manager) ShouldUseLLM(intent router.Intent, confidence float32) bool {
	return ShouldUseLLM(intent, confidence)
}

// GenerateLocalResponse builds a templated answer from current preferences.
// A nil result means escalate to the LLM; it is not an error.
func (m *Manager) GenerateLocalResponse(ctx context.Context, intent router.Intent, _ string) *validator.LLMResponse {
	if !localIntents[intent] {
		return nil
	}
	lc := m.GetLocalContext(ctx)
	prefs := lc.Preferences
	if prefs == nil {
		return nil
	}

	var msg string
	var suggestions []string
	switch intent {
	case router.IntentVenueSearch:
		venues := habit.Top(prefs.VenueTypes, maxPreferenceTerms)
		if len(venues) == 0 {
			return nil
		}
		msg = fmt.Sprintf("You usually enjoy %s. Want me to look for %s options for this %s?",
			joinHuman(venues), humanTerm(venues[0]), lc.TimeContext)
		for _, v := range venues {
			suggestions = append(suggestions, "Find "+humanTerm(v)+" nearby")
		}
	case router.IntentTimingQuestion:
		slots := habit.Top(prefs.TimePreferences, maxPreferenceTerms)
		if len(slots) == 0 {
			return nil
		}
		msg = fmt.Sprintf("You tend to head out in the %s. It's %s now.", joinHuman(slots), lc.TimeContext)
		suggestions = []string{"What's busy right now?"}
	case router.IntentPreferenceQuery:
		venues := habit.Top(prefs.VenueTypes, maxPreferenceTerms)
		slots := habit.Top(prefs.TimePreferences, 1)
		if len(venues) == 0 && len(slots) == 0 {
			return nil
		}
		var parts []string
		if len(venues) > 0 {
			parts = append(parts, "you like "+joinHuman(venues))
		}
		if len(slots) > 0 {
			parts = append(parts, "you usually go out in the "+humanTerm(slots[0]))
		}
		msg = "From what I've seen, " + strings.Join(parts, " and ") + "."
	}

	confidence := 1.0
	return &validator.LLMResponse{
		Message:     msg,
		Intent:      string(intent),
		Suggestions: suggestions,
		Confidence:  &confidence,
	}
}

func humanTerm(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func joinHuman(terms []string) string {
	h := make([]string, len(terms))
	for i, t := range terms {
		h[i] = humanTerm(t)
	}
	switch len(h) {
	case 0:
		return ""
	case 1:
		return h[0]
	default:
		return strings.Join(h[:len(h)-1], ", ") + " and " + h[len(h)-1]
	}
}
