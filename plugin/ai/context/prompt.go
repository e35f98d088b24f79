package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/router"
)

const (
	// MaxMicroPromptLen is the hard ceiling on BuildMicroPrompt output.
	MaxMicroPromptLen = 480

	maxPreferenceTerms = 3
	maxTermLen         = 24
	maxSearchEchoLen   = 60
	maxQueryLen        = 200
)

// BuildMicroPrompt composes the bounded prompt sent to the LLM for intent.
// Lines: time context, up to three relevant preference terms, nearby friends,
// the last search, and the query itself.
func (m *Manager) BuildMicroPrompt(ctx context.Context, intent router.Intent, userMessage string) string {
	lc := m.GetLocalContext(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", lc.TimeContext)

	if label, terms := relevantTerms(lc, intent); len(terms) > 0 {
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(terms, ", "))
	}
	if lc.Social.FriendsNearby > 0 {
		fmt.Fprintf(&b, "Friends nearby: %d\n", lc.Social.FriendsNearby)
	}
	if lc.LastSearch != "" {
		fmt.Fprintf(&b, "Last search: %s\n", clip(lc.LastSearch, maxSearchEchoLen))
	}
	fmt.Fprintf(&b, "Query: %s", clip(strings.TrimSpace(userMessage), maxQueryLen))

	return clip(b.String(), MaxMicroPromptLen)
}

// relevantTerms picks the preference map that matters for intent.
func relevantTerms(lc *LocalContext, intent router.Intent) (string, []string) {
	prefs := lc.Preferences
	if prefs == nil {
		prefs = habit.NewUserPreferences()
	}

	var label string
	var terms []string
	switch intent {
	case router.IntentTimingQuestion:
		label, terms = "Usually out", habit.Top(prefs.TimePreferences, maxPreferenceTerms)
	case router.IntentSocialCoordination:
		label, terms = "Goes out", habit.Top(prefs.SocialPatterns, maxPreferenceTerms)
	default:
		label, terms = "Likes", habit.Top(prefs.VenueTypes, maxPreferenceTerms)
		if len(terms) == 0 && lc.Inferred != nil {
			terms = lc.Inferred.VenueTypes
		}
	}

	if len(terms) > maxPreferenceTerms {
		terms = terms[:maxPreferenceTerms]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = clip(strings.ReplaceAll(t, "_", " "), maxTermLen)
	}
	return label, out
}

// clip truncates s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
