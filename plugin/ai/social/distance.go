package social

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hrygo/nova/plugin/ai/eventlog"
)

const earthRadiusMeters = 6371000

// DistanceFunc returns the distance in meters between the user and a friend activity.
// ok is false when no distance can be estimated.
type DistanceFunc func(a FriendActivity) (meters float64, ok bool)

// Haversine returns the great-circle distance in meters.
func Haversine(a, b eventlog.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SimulatedDistance measures from ref when the activity carries a location and
// otherwise draws a random distance up to 2 km.
func SimulatedDistance(ref eventlog.Location, rng *rand.Rand) DistanceFunc {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var mu sync.Mutex
	return func(a FriendActivity) (float64, bool) {
		if a.Location != nil {
			return Haversine(ref, *a.Location), true
		}
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() * 2000, true
	}
}
