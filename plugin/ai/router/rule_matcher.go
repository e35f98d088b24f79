package router

import (
	"regexp"
	"strings"
)

// RuleMatcher implements Layer 1 rule-based intent matching.
// Target: 0ms latency, handle most requests.
type RuleMatcher struct {
	keywords     map[Intent]map[string]int
	core         map[Intent][]string
	timePatterns []*regexp.Regexp
}

// NewRuleMatcher creates a new rule matcher with predefined keyword weights.
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{
		keywords: map[Intent]map[string]int{
			IntentVenueSearch: {
				// Core keywords (+2)
				"bar": 2, "club": 2, "lounge": 2, "venue": 2, "pub": 2, "rooftop": 2,
				"where should": 2, "place": 2, "spot": 2,
				// Supporting keywords (+1)
				"find": 1, "recommend": 1, "suggest": 1, "good": 1, "nearby": 1, "drinks": 1,
			},
			IntentTimingQuestion: {
				"when": 2, "what time": 3, "busy": 2, "crowded": 2, "wait": 2, "best time": 3,
				"early": 1, "late": 1, "tonight": 1, "now": 1, "open": 1,
			},
			IntentPreferenceQuery: {
				"my favorite": 3, "i like": 2, "i usually": 2, "my usual": 3, "preference": 2,
				"favorite": 1, "usually": 1, "my": 1,
			},
			IntentSocialCoordination: {
				"friends": 2, "friend": 2, "invite": 2, "group": 2, "meet up": 3, "join": 2,
				"with": 1, "together": 1, "crew": 1,
			},
			IntentEventQuery: {
				"event": 2, "dj": 2, "live music": 3, "concert": 2, "show": 2, "happening": 2,
				"lineup": 1, "party": 1, "special": 1,
			},
		},
		core: map[Intent][]string{
			IntentVenueSearch:        {"bar", "club", "lounge", "venue", "pub", "rooftop", "where should", "place", "spot"},
			IntentTimingQuestion:     {"when", "what time", "busy", "crowded", "wait", "best time"},
			IntentPreferenceQuery:    {"my favorite", "i like", "i usually", "my usual", "preference"},
			IntentSocialCoordination: {"friend", "invite", "group", "meet up", "join"},
			IntentEventQuery:         {"event", "dj", "live music", "concert", "show", "happening"},
		},
		timePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{1,2}(:\d{2})?\s?(am|pm)\b`), // 10pm, 10:30 pm
			regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),             // 22:30
		},
	}
}

// Match attempts to classify intent using rule-based matching.
// Returns: intent, confidence, matched (true if rule matched)
func (m *RuleMatcher) Match(input string) (Intent, float32, bool) {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return IntentGeneralChat, 0, false
	}

	best := IntentGeneralChat
	bestScore := 0
	// Iterate in a fixed order so ties resolve deterministically.
	for _, intent := range AllIntents {
		table, ok := m.keywords[intent]
		if !ok {
			continue
		}
		score := m.calculateScore(lower, table)
		if intent == IntentTimingQuestion && m.hasTimePattern(lower) {
			score += 2
		}
		if score > bestScore && m.hasCoreKeyword(lower, intent) {
			best, bestScore = intent, score
		}
	}

	if bestScore < 2 {
		// No match - needs higher layer processing
		return IntentGeneralChat, 0, false
	}
	return best, m.normalizeConfidence(bestScore, 5), true
}

// hasCoreKeyword checks if input contains a core keyword for the given intent.
func (m *RuleMatcher) hasCoreKeyword(input string, intent Intent) bool {
	for _, kw := range m.core[intent] {
		if containsWord(input, kw) {
			return true
		}
	}
	return false
}

// calculateScore calculates the weighted score for a keyword set.
func (m *RuleMatcher) calculateScore(input string, keywords map[string]int) int {
	score := 0
	for keyword, weight := range keywords {
		if containsWord(input, keyword) {
			score += weight
		}
	}
	return score
}

// hasTimePattern checks if input contains time patterns.
func (m *RuleMatcher) hasTimePattern(input string) bool {
	for _, pattern := range m.timePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// normalizeConfidence normalizes score to 0-1 confidence range.
func (m *RuleMatcher) normalizeConfidence(score, maxScore int) float32 {
	if score >= maxScore {
		return 0.95
	}
	return float32(score) / float32(maxScore)
}

// containsWord reports whether kw occurs in input on word boundaries,
// so "bar" does not match "barely".
func containsWord(input, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(input[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if (idx == 0 || !isWordByte(input[idx-1])) && (end == len(input) || !isWordByte(input[end]) || input[end] == 's') {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
