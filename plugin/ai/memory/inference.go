package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/habit"
)

// MaxSuggestions caps personalized prompt suggestions.
const MaxSuggestions = 4

const topN = 3

// venueKeywords maps a venue bucket to the words that indicate it.
var venueKeywords = map[string][]string{
	"bar":        {"bar", "bars", "pub", "pubs", "drinks", "cocktail", "cocktails", "beer", "wine", "speakeasy"},
	"club":       {"club", "clubs", "dance", "dancing", "dj", "rave", "nightclub"},
	"lounge":     {"lounge", "lounges", "rooftop", "hookah"},
	"live_music": {"live", "band", "concert", "jazz", "gig", "karaoke"},
	"restaurant": {"dinner", "food", "eat", "restaurant", "restaurants", "brunch", "tapas"},
}

// atmosphereKeywords maps an atmosphere bucket to the words that indicate it.
var atmosphereKeywords = map[string][]string{
	"chill":     {"chill", "relaxed", "quiet", "cozy", "low-key", "calm"},
	"energetic": {"party", "lively", "wild", "packed", "energetic", "hype", "crazy"},
	"romantic":  {"date", "romantic", "intimate", "candlelit"},
	"upscale":   {"fancy", "upscale", "classy", "exclusive", "vip", "swanky"},
	"casual":    {"casual", "dive", "cheap", "divey"},
}

// intentPhrases renders a learned day/time intent as a prompt suggestion.
var intentPhrases = map[string]string{
	"venue_search":        "Find me somewhere good for %s",
	"timing_question":     "When should I head out this %s?",
	"social_coordination": "Who's going out this %s?",
	"event_query":         "What events are on this %s?",
	"preference_query":    "What do I usually like on a %s?",
}

var defaultSuggestions = []string{
	"What's busy right now?",
	"Find me a chill bar nearby",
	"Where are my friends tonight?",
	"Any events happening tonight?",
}

// InferredPreferences is derived from a MemoryProfile by keyword matching.
type InferredPreferences struct {
	VenueTypes []string `json:"venueTypes"`
	Atmosphere []string `json:"atmosphere"`
	// Patterns maps "<day>_<timeOfDay>" to the most frequent intent in that bucket.
	Patterns map[string]string `json:"patterns"`
}

// InferPreferencesFromHistory derives top venue and atmosphere buckets and day/time intent patterns.
// The most frequent bucket wins; ties resolve alphabetically.
func InferPreferencesFromHistory(p *MemoryProfile) *InferredPreferences {
	venueCounts := map[string]int{}
	atmosphereCounts := map[string]int{}
	patternIntents := map[string]map[string]int{}

	for _, t := range p.VenuePreferences.Types {
		countMatches(venueKeywords, []string{strings.ToLower(t)}, venueCounts)
	}
	for _, a := range p.VenuePreferences.Atmosphere {
		countMatches(atmosphereKeywords, []string{strings.ToLower(a)}, atmosphereCounts)
	}

	for _, s := range p.BehaviorPatterns.SearchHistory {
		tokens := habit.Tokenize(s.Query)
		countMatches(venueKeywords, tokens, venueCounts)
		countMatches(atmosphereKeywords, tokens, atmosphereCounts)

		key := PatternKey(s.Timestamp)
		for _, intent := range s.Intents {
			if patternIntents[key] == nil {
				patternIntents[key] = map[string]int{}
			}
			patternIntents[key][intent]++
		}
	}

	for _, vi := range p.BehaviorPatterns.VenueInteractions {
		countMatches(venueKeywords, habit.Tokenize(vi.VenueType), venueCounts)
		if vi.Context.Atmosphere != "" {
			countMatches(atmosphereKeywords, habit.Tokenize(vi.Context.Atmosphere), atmosphereCounts)
		}
	}

	patterns := make(map[string]string, len(patternIntents))
	for key, counts := range patternIntents {
		if top := habit.TopNCounts(counts, 1); len(top) == 1 {
			patterns[key] = top[0]
		}
	}

	return &InferredPreferences{
		VenueTypes: habit.TopNCounts(venueCounts, topN),
		Atmosphere: habit.TopNCounts(atmosphereCounts, topN),
		Patterns:   patterns,
	}
}

// PatternKey buckets t as "<day>_<timeOfDay>", e.g. "friday_night".
func PatternKey(t time.Time) string {
	return aitime.DayOfWeek(t) + "_" + string(aitime.TimeOfDayAt(t))
}

func countMatches(table map[string][]string, tokens []string, counts map[string]int) {
	for _, tok := range tokens {
		for bucket, words := range table {
			for _, w := range words {
				if tok == w {
					counts[bucket]++
				}
			}
		}
	}
}

// PersonalizedSuggestions returns up to MaxSuggestions prompt suggestions for now.
func PersonalizedSuggestions(p *MemoryProfile, now time.Time) []string {
	inferred := InferPreferencesFromHistory(p)
	var out []string
	add := func(s string) {
		if len(out) >= MaxSuggestions {
			return
		}
		for _, existing := range out {
			if existing == s {
				return
			}
		}
		out = append(out, s)
	}

	if intent, ok := inferred.Patterns[PatternKey(now)]; ok {
		if phrase, ok := intentPhrases[intent]; ok {
			add(fmt.Sprintf(phrase, aitime.Describe(now)))
		}
	}
	if len(inferred.VenueTypes) > 0 {
		venue := humanize(inferred.VenueTypes[0])
		if len(inferred.Atmosphere) > 0 {
			add(fmt.Sprintf("Find a %s %s nearby", inferred.Atmosphere[0], venue))
		} else {
			add(fmt.Sprintf("Find a %s nearby", venue))
		}
	}
	for _, vt := range inferred.VenueTypes[min(1, len(inferred.VenueTypes)):] {
		add(fmt.Sprintf("What %s spots are busy tonight?", humanize(vt)))
	}
	for _, area := range p.VenuePreferences.FrequentAreas {
		add(fmt.Sprintf("What's happening in %s?", area))
	}
	for _, d := range defaultSuggestions {
		add(d)
	}
	return out
}

// PromptContext renders a compact personalization line, or "" when nothing is known.
func PromptContext(p *MemoryProfile) string {
	inferred := InferPreferencesFromHistory(p)
	var parts []string
	if len(inferred.VenueTypes) > 0 {
		parts = append(parts, "likes "+strings.Join(humanizeAll(inferred.VenueTypes), ", "))
	}
	if len(inferred.Atmosphere) > 0 {
		parts = append(parts, "vibe "+strings.Join(inferred.Atmosphere, ", "))
	}
	if p.VenuePreferences.PriceRange != "" {
		parts = append(parts, "budget "+p.VenuePreferences.PriceRange)
	}
	if len(p.VenuePreferences.FrequentAreas) > 0 {
		areas := p.VenuePreferences.FrequentAreas
		if len(areas) > topN {
			areas = areas[:topN]
		}
		parts = append(parts, "areas "+strings.Join(areas, ", "))
	}
	return strings.Join(parts, "; ")
}

// LastSearch returns the most recent search query, or "".
func LastSearch(p *MemoryProfile) string {
	h := p.BehaviorPatterns.SearchHistory
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1].Query
}

func humanize(bucket string) string {
	return strings.ReplaceAll(bucket, "_", " ")
}

func humanizeAll(buckets []string) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = humanize(b)
	}
	return out
}
