// Package habit derives weighted preference maps and time habits from the event log.
package habit

import (
	"sort"
)

// UserPreferences holds accumulated signed weights per bucket.
// Values are rank signals, not probabilities; read them with Top.
type UserPreferences struct {
	VenueTypes          map[string]float64 `json:"venueTypes"`
	TimePreferences     map[string]float64 `json:"timePreferences"`
	SocialPatterns      map[string]float64 `json:"socialPatterns"`
	LocationPreferences map[string]float64 `json:"locationPreferences"`
}

// NewUserPreferences returns empty preference maps.
func NewUserPreferences() *UserPreferences {
	return &UserPreferences{
		VenueTypes:          map[string]float64{},
		TimePreferences:     map[string]float64{},
		SocialPatterns:      map[string]float64{},
		LocationPreferences: map[string]float64{},
	}
}

// IsEmpty reports whether no weights have been accumulated.
func (p *UserPreferences) IsEmpty() bool {
	return p == nil || len(p.VenueTypes)+len(p.TimePreferences)+len(p.SocialPatterns)+len(p.LocationPreferences) == 0
}

// TimeHabits describes when the user tends to go out.
type TimeHabits struct {
	// ActiveHours are the most active hours of the day (0-23)
	ActiveHours []int `json:"activeHours"`
	// PreferredSlots are the most frequent time-of-day buckets
	PreferredSlots []string `json:"preferredSlots"`
	// WeekendPattern indicates the user is mostly active Friday to Sunday
	WeekendPattern bool `json:"weekendPattern"`
}

// DefaultTimeHabits returns defaults for a user with no history.
func DefaultTimeHabits() *TimeHabits {
	return &TimeHabits{
		ActiveHours:    []int{20, 21, 22, 23},
		PreferredSlots: []string{"night", "evening"},
		WeekendPattern: true,
	}
}

// Top returns the n highest-weighted keys, ties broken by key for determinism.
// Keys with non-positive weight are skipped.
func Top(weights map[string]float64, n int) []string {
	type kv struct {
		key string
		w   float64
	}
	var kvs []kv
	for k, w := range weights {
		if w > 0 {
			kvs = append(kvs, kv{k, w})
		}
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].w != kvs[j].w {
			return kvs[i].w > kvs[j].w
		}
		return kvs[i].key < kvs[j].key
	})

	var result []string
	for i := 0; i < n && i < len(kvs); i++ {
		result = append(result, kvs[i].key)
	}
	return result
}
