package livedata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

// Source produces venue snapshots and happenings. The built-in Simulator is a
// stand-in; a real feed can be plugged in behind the same interface.
type Source interface {
	VenueSnapshot(v VenueProfile, now time.Time) LiveVenueData
	Events(v VenueProfile, now time.Time) []LiveEventData
}

// Simulator derives plausible numbers from hour-of-day and day-of-week.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator. A nil rng uses a randomly seeded PCG.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{rng: rng}
}

// hourlyCrowd is the baseline crowd level per hour of day.
var hourlyCrowd = [24]float64{
	75, 65, 45, 20, 5, 0, 0, 0, 0, 0, 0, 5, // 00-11
	10, 10, 10, 10, 15, 25, 35, 45, 55, 65, 75, 80, // 12-23
}

// VenueSnapshot implements Source.
func (s *Simulator) VenueSnapshot(v VenueProfile, now time.Time) LiveVenueData {
	s.mu.Lock()
	jitter := s.rng.Float64()*20 - 10
	s.mu.Unlock()

	crowd := CrowdLevel(v, now, jitter)
	return Derive(v, now, crowd)
}

// Events implements Source. Busy hours occasionally spawn a happening.
func (s *Simulator) Events(v VenueProfile, now time.Time) []LiveEventData {
	s.mu.Lock()
	roll := s.rng.Float64()
	kindIdx := s.rng.IntN(len(eventKinds))
	attendance := s.rng.IntN(max(v.Capacity/2, 1))
	s.mu.Unlock()

	if hourlyCrowd[now.Hour()] < 40 || roll > 0.1 {
		return nil
	}
	kind := eventKinds[kindIdx]
	start := now.Truncate(time.Hour)
	return []LiveEventData{{
		EventID:     fmt.Sprintf("%s-%s-%d", v.ID, kind, start.Unix()),
		VenueID:     v.ID,
		EventType:   kind,
		StartTime:   start,
		EndTime:     start.Add(3 * time.Hour),
		Attendance:  attendance,
		Popularity:  clampFloat(v.Popularity+0.1, 0, 1),
		Description: eventDescriptions[kind],
	}}
}

var eventKinds = []EventKind{EventDJSet, EventLiveMusic, EventHappyHour, EventSpecial, EventTheme}

var eventDescriptions = map[EventKind]string{
	EventDJSet:     "Guest DJ on the decks",
	EventLiveMusic: "Live band tonight",
	EventHappyHour: "Late happy hour specials",
	EventSpecial:   "Special event",
	EventTheme:     "Theme night",
}

// CrowdLevel computes a 0-100 crowd level for v at now, offset by jitter.
func CrowdLevel(v VenueProfile, now time.Time, jitter float64) int {
	base := hourlyCrowd[now.Hour()]
	if aitime.IsWeekend(now) {
		base += 15
	}
	popularity := v.Popularity
	if popularity <= 0 {
		popularity = 0.5
	}
	// Popular venues fill up faster: 0.5 popularity is neutral.
	level := base*(0.5+popularity) + jitter
	return int(math.Round(clampFloat(level, 0, 100)))
}

// Derive fills a snapshot from a crowd level. Wait time, pricing, atmosphere
// and availability are all functions of crowd level and hour.
func Derive(v VenueProfile, now time.Time, crowd int) LiveVenueData {
	crowd = int(clampFloat(float64(crowd), 0, 100))
	maximum := v.Capacity
	if maximum <= 0 {
		maximum = 100
	}

	wait := 0
	if crowd > 60 {
		wait = (crowd - 60) * 3 / 4
	}

	dynamic := crowd > 70
	cover := v.BaseCover
	if dynamic {
		cover = math.Round(cover*1.5*100) / 100
	}

	energy := crowd
	if h := now.Hour(); h >= 22 || h < 2 {
		energy += 10
	}
	energy = int(clampFloat(float64(energy), 0, 100))

	return LiveVenueData{
		VenueID:    v.ID,
		VenueType:  v.Type,
		Timestamp:  now,
		CrowdLevel: crowd,
		WaitTime:   wait,
		Capacity: Capacity{
			Current:    maximum * crowd / 100,
			Maximum:    maximum,
			Percentage: float64(crowd),
		},
		Pricing: Pricing{
			CoverCharge:    cover,
			DynamicPricing: dynamic,
			PriceLevel:     priceLevelFor(cover),
		},
		Atmosphere: Atmosphere{
			EnergyLevel: energy,
			MusicVolume: int(clampFloat(float64(energy)*0.9, 0, 100)),
			Vibe:        vibeFor(crowd),
		},
		Availability: Availability{
			HasSpace:              crowd < 95,
			ReservationsAvailable: crowd < 70,
			EstimatedEntry:        now.Add(time.Duration(wait) * time.Minute),
		},
	}
}

func priceLevelFor(cover float64) PriceLevel {
	switch {
	case cover <= 0:
		return PriceLow
	case cover < 15:
		return PriceMedium
	case cover < 30:
		return PriceHigh
	default:
		return PricePremium
	}
}

func vibeFor(crowd int) string {
	switch {
	case crowd < 30:
		return "chill"
	case crowd < 60:
		return "social"
	case crowd < 85:
		return "lively"
	default:
		return "packed"
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
