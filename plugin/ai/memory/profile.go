// Package memory keeps the persisted personalization profile and the per-session conversation window.
package memory

import (
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

const (
	// CurrentVersion is the profile schema version. Profiles with another version are discarded.
	CurrentVersion = 2
	// MaxSearchHistory caps BehaviorPatterns.SearchHistory.
	MaxSearchHistory = 50
	// MaxVenueInteractions caps BehaviorPatterns.VenueInteractions.
	MaxVenueInteractions = 100
	// Expiry is how long a profile stays valid after its last update.
	Expiry = 30 * 24 * time.Hour
)

// MemoryProfile is the persisted personalization profile.
type MemoryProfile struct {
	Version          int              `json:"version"`
	LastUpdated      time.Time        `json:"lastUpdated"`
	VenuePreferences VenuePreferences `json:"venuePreferences"`
	BehaviorPatterns BehaviorPatterns `json:"behaviorPatterns"`
}

// VenuePreferences holds explicit venue preferences.
type VenuePreferences struct {
	Types         []string `json:"types"`
	PriceRange    string   `json:"priceRange,omitempty"`
	Atmosphere    []string `json:"atmosphere"`
	FrequentAreas []string `json:"frequentAreas"`
}

// BehaviorPatterns holds bounded interaction history.
type BehaviorPatterns struct {
	TimePreferences   []string           `json:"timePreferences"`
	SearchHistory     []SearchRecord     `json:"searchHistory"`
	VenueInteractions []VenueInteraction `json:"venueInteractions"`
}

// SearchRecord is one recorded chat search.
type SearchRecord struct {
	Query     string    `json:"query"`
	Intents   []string  `json:"intents"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionContext describes the circumstances of a venue interaction.
type InteractionContext struct {
	TimeOfDay  aitime.TimeOfDay `json:"timeOfDay,omitempty"`
	DayOfWeek  string           `json:"dayOfWeek,omitempty"`
	Atmosphere string           `json:"atmosphere,omitempty"`
	Area       string           `json:"area,omitempty"`
	PriceRange string           `json:"priceRange,omitempty"`
}

// VenueInteraction is one recorded venue interaction.
type VenueInteraction struct {
	VenueType string             `json:"venueType"`
	Context   InteractionContext `json:"context"`
	Timestamp time.Time          `json:"timestamp"`
}

// DefaultProfile returns an empty profile stamped at now.
func DefaultProfile(now time.Time) *MemoryProfile {
	return &MemoryProfile{
		Version:     CurrentVersion,
		LastUpdated: now,
		VenuePreferences: VenuePreferences{
			Types:         []string{},
			Atmosphere:    []string{},
			FrequentAreas: []string{},
		},
		BehaviorPatterns: BehaviorPatterns{
			TimePreferences:   []string{},
			SearchHistory:     []SearchRecord{},
			VenueInteractions: []VenueInteraction{},
		},
	}
}

// IsValid reports whether p can be used at now.
func (p *MemoryProfile) IsValid(now time.Time) bool {
	return p != nil && p.Version == CurrentVersion && now.Sub(p.LastUpdated) <= Expiry
}

// Clone returns a deep copy of p.
func (p *MemoryProfile) Clone() *MemoryProfile {
	c := *p
	c.VenuePreferences.Types = append([]string{}, p.VenuePreferences.Types...)
	c.VenuePreferences.Atmosphere = append([]string{}, p.VenuePreferences.Atmosphere...)
	c.VenuePreferences.FrequentAreas = append([]string{}, p.VenuePreferences.FrequentAreas...)
	c.BehaviorPatterns.TimePreferences = append([]string{}, p.BehaviorPatterns.TimePreferences...)
	c.BehaviorPatterns.SearchHistory = make([]SearchRecord, len(p.BehaviorPatterns.SearchHistory))
	for i, s := range p.BehaviorPatterns.SearchHistory {
		s.Intents = append([]string{}, s.Intents...)
		c.BehaviorPatterns.SearchHistory[i] = s
	}
	c.BehaviorPatterns.VenueInteractions = append([]VenueInteraction{}, p.BehaviorPatterns.VenueInteractions...)
	return &c
}
