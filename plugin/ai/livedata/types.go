// Package livedata keeps per-venue "real-time" snapshots refreshed on a timer,
// with staleness detection and significant-change events.
package livedata

import (
	"time"

	"github.com/hrygo/nova/plugin/ai/eventlog"
)

// PriceLevel is the pricing tier of a venue at a point in time.
type PriceLevel string

const (
	PriceLow     PriceLevel = "low"
	PriceMedium  PriceLevel = "medium"
	PriceHigh    PriceLevel = "high"
	PricePremium PriceLevel = "premium"
)

// VenueProfile is the static description of a tracked venue.
type VenueProfile struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Area       string            `json:"area,omitempty"`
	Location   eventlog.Location `json:"location"`
	Capacity   int               `json:"capacity"`
	BaseCover  float64           `json:"baseCover"`
	Popularity float64           `json:"popularity"` // 0-1
	Tags       []string          `json:"tags,omitempty"`
}

// Capacity is the occupancy of a venue.
type Capacity struct {
	Current    int     `json:"current"`
	Maximum    int     `json:"maximum"`
	Percentage float64 `json:"percentage"`
}

// Pricing is the current door pricing.
type Pricing struct {
	CoverCharge    float64    `json:"coverCharge"`
	DynamicPricing bool       `json:"dynamicPricing"`
	PriceLevel     PriceLevel `json:"priceLevel"`
}

// Atmosphere describes the room.
type Atmosphere struct {
	EnergyLevel int    `json:"energyLevel"` // 0-100
	MusicVolume int    `json:"musicVolume"` // 0-100
	Vibe        string `json:"vibe"`
}

// Availability describes whether and when the user can get in.
type Availability struct {
	HasSpace              bool      `json:"hasSpace"`
	ReservationsAvailable bool      `json:"reservationsAvailable"`
	EstimatedEntry        time.Time `json:"estimatedEntry"`
}

// LiveVenueData is a point-in-time venue snapshot.
type LiveVenueData struct {
	VenueID      string       `json:"venueId"`
	VenueType    string       `json:"venueType"`
	Timestamp    time.Time    `json:"timestamp"`
	CrowdLevel   int          `json:"crowdLevel"` // 0-100
	WaitTime     int          `json:"waitTime"`   // minutes
	Capacity     Capacity     `json:"capacity"`
	Pricing      Pricing      `json:"pricing"`
	Atmosphere   Atmosphere   `json:"atmosphere"`
	Availability Availability `json:"availability"`
}

// EventKind is the closed set of venue happenings.
type EventKind string

const (
	EventDJSet     EventKind = "dj_set"
	EventLiveMusic EventKind = "live_music"
	EventHappyHour EventKind = "happy_hour"
	EventSpecial   EventKind = "special_event"
	EventTheme     EventKind = "theme_night"
)

// LiveEventData is a venue-scoped happening.
type LiveEventData struct {
	EventID     string    `json:"eventId"`
	VenueID     string    `json:"venueId"`
	EventType   EventKind `json:"eventType"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	IsActive    bool      `json:"isActive"`
	Attendance  int       `json:"attendance"`
	Popularity  float64   `json:"popularity"` // 0-1
	Description string    `json:"description"`
}

// Change lists why a refresh counted as significant.
type Change struct {
	VenueID  string        `json:"venueId"`
	Previous LiveVenueData `json:"previous"`
	Current  LiveVenueData `json:"current"`
	Reasons  []string      `json:"reasons"`
}

// DefaultVenues is the built-in venue catalog used when none is configured.
func DefaultVenues() []VenueProfile {
	return []VenueProfile{
		{ID: "the-velvet-room", Name: "The Velvet Room", Type: "lounge", Area: "downtown", Capacity: 120, BaseCover: 10, Popularity: 0.7,
			Location: eventlog.Location{Lat: 40.7218, Lng: -73.9973}, Tags: []string{"cocktails", "upscale"}},
		{ID: "neon-nights", Name: "Neon Nights", Type: "club", Area: "downtown", Capacity: 400, BaseCover: 20, Popularity: 0.85,
			Location: eventlog.Location{Lat: 40.7196, Lng: -73.9877}, Tags: []string{"dj", "dance"}},
		{ID: "hops-and-barley", Name: "Hops & Barley", Type: "bar", Area: "east-village", Capacity: 90, Popularity: 0.6,
			Location: eventlog.Location{Lat: 40.7265, Lng: -73.9815}, Tags: []string{"craft-beer", "casual"}},
		{ID: "blue-note-cellar", Name: "Blue Note Cellar", Type: "live_music", Area: "west-village", Capacity: 150, BaseCover: 15, Popularity: 0.75,
			Location: eventlog.Location{Lat: 40.7308, Lng: -74.0007}, Tags: []string{"jazz"}},
		{ID: "skyline-terrace", Name: "Skyline Terrace", Type: "lounge", Area: "midtown", Capacity: 200, BaseCover: 25, Popularity: 0.8,
			Location: eventlog.Location{Lat: 40.7549, Lng: -73.9840}, Tags: []string{"rooftop", "views"}},
		{ID: "the-dive", Name: "The Dive", Type: "bar", Area: "lower-east-side", Capacity: 60, Popularity: 0.5,
			Location: eventlog.Location{Lat: 40.7183, Lng: -73.9880}, Tags: []string{"dive", "cheap"}},
	}
}
