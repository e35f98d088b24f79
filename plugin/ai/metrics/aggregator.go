package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

// Aggregator aggregates metrics in memory before persisting them.
type Aggregator struct {
	mu    sync.RWMutex
	clock aitime.Clock

	// key = "hourBucket|intent"
	routes map[string]*routeBucket

	// key = "hourBucket|kind"
	predictions map[string]*predictionBucket
}

type routeBucket struct {
	hourBucket time.Time
	intent     string
	count      int64
	localCount int64
	latencies  []int64 // in milliseconds
}

type predictionBucket struct {
	hourBucket time.Time
	kind       string
	total      int64
	accurate   int64
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(clock aitime.Clock) *Aggregator {
	return &Aggregator{
		clock:       aitime.OrSystem(clock),
		routes:      make(map[string]*routeBucket),
		predictions: make(map[string]*predictionBucket),
	}
}

// RecordRoute records one routed message.
func (a *Aggregator) RecordRoute(intent string, local bool, latency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.clock.Now())
	key := makeKey(hourBucket, intent)

	bucket, exists := a.routes[key]
	if !exists {
		bucket = &routeBucket{
			hourBucket: hourBucket,
			intent:     intent,
			latencies:  make([]int64, 0, 32),
		}
		a.routes[key] = bucket
	}

	bucket.count++
	if local {
		bucket.localCount++
	}
	bucket.latencies = append(bucket.latencies, latency.Milliseconds())
}

// RecordPredictionOutcome records one accuracy report.
func (a *Aggregator) RecordPredictionOutcome(kind string, accurate bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourBucket := truncateToHour(a.clock.Now())
	key := makeKey(hourBucket, kind)

	bucket, exists := a.predictions[key]
	if !exists {
		bucket = &predictionBucket{hourBucket: hourBucket, kind: kind}
		a.predictions[key] = bucket
	}

	bucket.total++
	if accurate {
		bucket.accurate++
	}
}

// Snapshot is one flushed hour bucket.
type Snapshot struct {
	HourBucket   time.Time `json:"hourBucket"`
	Kind         string    `json:"kind"` // "route" or "prediction"
	Name         string    `json:"name"`
	Count        int64     `json:"count"`
	Positive     int64     `json:"positive"` // local routes or accurate predictions
	LatencySumMs int64     `json:"latencySumMs,omitempty"`
	LatencyP50Ms int64     `json:"latencyP50Ms,omitempty"`
	LatencyP95Ms int64     `json:"latencyP95Ms,omitempty"`
}

const (
	snapshotRoute      = "route"
	snapshotPrediction = "prediction"
)

// Flush returns and clears all buckets for hours before beforeHour.
func (a *Aggregator) Flush(beforeHour time.Time) []Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snapshots []Snapshot
	for key, bucket := range a.routes {
		if !bucket.hourBucket.Before(beforeHour) {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			HourBucket:   bucket.hourBucket,
			Kind:         snapshotRoute,
			Name:         bucket.intent,
			Count:        bucket.count,
			Positive:     bucket.localCount,
			LatencySumMs: sumLatencies(bucket.latencies),
			LatencyP50Ms: percentile(bucket.latencies, 50),
			LatencyP95Ms: percentile(bucket.latencies, 95),
		})
		delete(a.routes, key)
	}
	for key, bucket := range a.predictions {
		if !bucket.hourBucket.Before(beforeHour) {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			HourBucket: bucket.hourBucket,
			Kind:       snapshotPrediction,
			Name:       bucket.kind,
			Count:      bucket.total,
			Positive:   bucket.accurate,
		})
		delete(a.predictions, key)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].HourBucket.Equal(snapshots[j].HourBucket) {
			return snapshots[i].HourBucket.Before(snapshots[j].HourBucket)
		}
		if snapshots[i].Kind != snapshots[j].Kind {
			return snapshots[i].Kind < snapshots[j].Kind
		}
		return snapshots[i].Name < snapshots[j].Name
	})
	return snapshots
}

// GetCurrentStats returns aggregated stats from memory.
func (a *Aggregator) GetCurrentStats(timeRange TimeRange) *Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := newStats()
	latencySums := map[string]int64{}

	allLatencies := make([]int64, 0)
	for _, bucket := range a.routes {
		if !timeRange.contains(bucket.hourBucket) {
			continue
		}
		stats.RouteCount += bucket.count
		stats.LocalCount += bucket.localCount
		allLatencies = append(allLatencies, bucket.latencies...)

		rs, ok := stats.Routes[bucket.intent]
		if !ok {
			rs = &RouteStat{}
			stats.Routes[bucket.intent] = rs
		}
		rs.Count += bucket.count
		rs.LocalCount += bucket.localCount
		latencySums[bucket.intent] += sumLatencies(bucket.latencies)
	}
	for intent, rs := range stats.Routes {
		if rs.Count > 0 {
			rs.AvgLatency = time.Duration(latencySums[intent]/rs.Count) * time.Millisecond
		}
	}

	for _, bucket := range a.predictions {
		if !timeRange.contains(bucket.hourBucket) {
			continue
		}
		addAccuracy(stats, bucket.kind, bucket.total, bucket.accurate)
	}

	stats.LatencyP50 = time.Duration(percentile(allLatencies, 50)) * time.Millisecond
	stats.LatencyP95 = time.Duration(percentile(allLatencies, 95)) * time.Millisecond

	return stats
}

func addAccuracy(stats *Stats, kind string, total, accurate int64) {
	as, ok := stats.Predictions[kind]
	if !ok {
		as = &AccuracyStat{}
		stats.Predictions[kind] = as
	}
	as.Total += total
	as.Accurate += accurate
	if as.Total > 0 {
		as.Rate = float64(as.Accurate) / float64(as.Total)
	}
}

// Helper functions

func truncateToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func makeKey(hourBucket time.Time, name string) string {
	return hourBucket.Format(time.RFC3339) + "|" + name
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
