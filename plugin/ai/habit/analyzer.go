package habit

import (
	"sort"
	"strings"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/eventlog"
)

// Venue action weights for venue-type preferences. Unknown actions contribute nothing.
var venueActionWeights = map[string]float64{
	"check_in": 3,
	"visit":    2,
	"save":     1.5,
	"like":     1,
	"view":     0.5,
	"share":    2,
}

// Timing outcome weights. Any other outcome counts as a miss.
var timingOutcomeWeights = map[string]float64{
	"perfect":    2,
	"successful": 1,
}

const timingMissWeight = -0.5

var friendResponseWeights = map[string]float64{
	"accepted": 2,
	"maybe":    0.5,
	"declined": -1,
	"ignored":  -0.5,
}

var groupFeedbackWeights = map[string]float64{
	"accepted":  1,
	"liked":     1,
	"clicked":   0.5,
	"dismissed": -0.5,
	"disliked":  -0.5,
}

// VenueActionWeight returns the weight of a venue action, or 0 when unknown.
func VenueActionWeight(action string) float64 {
	return venueActionWeights[action]
}

// Calculate derives preference maps from the full event list.
// It is deterministic and does not normalize.
func Calculate(events []eventlog.UserEvent) *UserPreferences {
	prefs := NewUserPreferences()
	for _, e := range events {
		switch e.Type {
		case eventlog.TypeVenueInteraction:
			w := venueActionWeights[e.String("action")]
			if w == 0 {
				continue
			}
			if vt := e.String("venueType"); vt != "" {
				prefs.VenueTypes[vt] += w
			}
			if area := e.String("area"); area != "" {
				prefs.LocationPreferences[area] += w / 2
			}
			// Attended venues also mark the time bucket as a good time to go out.
			if a := e.String("action"); a == "check_in" || a == "visit" {
				prefs.TimePreferences[string(e.Context.TimeOfDay)]++
			}

		case eventlog.TypeTimingPreference:
			key := e.String("preferredTime")
			if key == "" {
				key = string(e.Context.TimeOfDay)
			}
			w, ok := timingOutcomeWeights[e.String("outcome")]
			if !ok {
				w = timingMissWeight
			}
			prefs.TimePreferences[key] += w

		case eventlog.TypeFriendResponse:
			if id := e.String("friendId"); id != "" {
				prefs.SocialPatterns[id] += friendResponseWeights[e.String("response")]
			}

		case eventlog.TypeSuggestionFeedback:
			size, ok := e.Number("groupSize")
			if !ok || size < 1 {
				continue
			}
			prefs.SocialPatterns[groupKey(int(size))] += groupFeedbackWeights[e.String("feedback")]

		case eventlog.TypeLocationPattern:
			if area := e.String("area"); area != "" {
				prefs.LocationPreferences[area]++
			}
		}
	}
	return prefs
}

func groupKey(size int) string {
	switch {
	case size <= 1:
		return "solo"
	case size == 2:
		return "pair"
	case size <= 4:
		return "small_group"
	default:
		return "large_group"
	}
}

// AnalyzeTimeHabits derives active hours and preferred slots from venue visits and chats.
func AnalyzeTimeHabits(events []eventlog.UserEvent) *TimeHabits {
	hourCounts := make(map[int]int)
	slotCounts := make(map[string]int)
	weekendCount, weekdayCount := 0, 0

	for _, e := range events {
		if e.Type != eventlog.TypeVenueInteraction && e.Type != eventlog.TypeChatInteraction {
			continue
		}
		hourCounts[e.Timestamp.Hour()]++
		slotCounts[string(aitime.TimeOfDayAt(e.Timestamp))]++
		if aitime.IsWeekend(e.Timestamp) {
			weekendCount++
		} else {
			weekdayCount++
		}
	}

	if len(hourCounts) == 0 {
		return DefaultTimeHabits()
	}

	return &TimeHabits{
		ActiveHours:    topNHours(hourCounts, 4),
		PreferredSlots: topNStrings(slotCounts, 2),
		WeekendPattern: weekendCount >= weekdayCount,
	}
}

// PeakHour returns the most frequent hour among timestamps, or -1 for none.
// Ties resolve to the later hour, which suits nightlife peaks.
func PeakHour(timestamps []time.Time) int {
	counts := make(map[int]int)
	for _, ts := range timestamps {
		counts[ts.Hour()]++
	}
	peak, best := -1, 0
	for hour := 0; hour < 24; hour++ {
		if c := counts[hour]; c > 0 && c >= best {
			peak, best = hour, c
		}
	}
	return peak
}

// Helper functions

func topNHours(hourCounts map[int]int, n int) []int {
	type hourCount struct {
		hour  int
		count int
	}

	var hcs []hourCount
	for hour, count := range hourCounts {
		hcs = append(hcs, hourCount{hour, count})
	}

	sort.Slice(hcs, func(i, j int) bool {
		if hcs[i].count != hcs[j].count {
			return hcs[i].count > hcs[j].count
		}
		return hcs[i].hour < hcs[j].hour
	})

	var result []int
	for i := 0; i < n && i < len(hcs); i++ {
		result = append(result, hcs[i].hour)
	}
	sort.Ints(result)
	return result
}

func topNStrings(counts map[string]int, n int) []string {
	type strCount struct {
		str   string
		count int
	}

	var scs []strCount
	for s, count := range counts {
		scs = append(scs, strCount{s, count})
	}

	sort.Slice(scs, func(i, j int) bool {
		if scs[i].count != scs[j].count {
			return scs[i].count > scs[j].count
		}
		return scs[i].str < scs[j].str
	})

	var result []string
	for i := 0; i < n && i < len(scs); i++ {
		result = append(result, scs[i].str)
	}
	return result
}

// TopNCounts returns the n most frequent keys of counts, ties broken by key.
func TopNCounts(counts map[string]int, n int) []string {
	return topNStrings(counts, n)
}

// Tokenize lowercases input and splits it on whitespace and punctuation.
func Tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'' || r == '-')
	})
}
