package context

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/cache"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/memory"
)

const (
	// DefaultCacheTTL bounds how stale a served snapshot may be.
	DefaultCacheTTL = 5 * time.Minute
	// RecentWindow is the activity window included in a snapshot.
	RecentWindow = 24 * time.Hour

	snapshotKey = "context:local"
)

// Config configures the context manager.
type Config struct {
	CacheTTL time.Duration // Cache TTL (default: 5 minutes)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{CacheTTL: DefaultCacheTTL}
}

// Manager builds and caches LocalContext snapshots.
// The cache is invalidated by time only; writes to the event log or memory
// become visible once the TTL elapses or Invalidate is called.
type Manager struct {
	events EventSource
	memory MemorySource
	social SocialSource
	clock  aitime.Clock
	ttl    time.Duration
	cache  *cache.LRUCache[*LocalContext]
	logger *slog.Logger

	stats managerStats
}

type managerStats struct {
	builds    atomic.Int64
	cacheHits atomic.Int64
}

// Stats reports snapshot builds and cache hits.
type Stats struct {
	Builds    int64 `json:"builds"`
	CacheHits int64 `json:"cacheHits"`
}

// NewManager creates a context manager. Memory and social sources are optional.
func NewManager(events EventSource, cfg Config) *Manager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	m := &Manager{
		events: events,
		clock:  aitime.SystemClock{},
		ttl:    cfg.CacheTTL,
		logger: slog.Default().With("component", "context"),
	}
	m.cache = cache.NewLRUCache[*LocalContext](1, cfg.CacheTTL, m.clock)
	return m
}

// WithMemory sets the memory profile source.
func (m *Manager) WithMemory(s MemorySource) *Manager {
	m.memory = s
	return m
}

// WithSocial sets the live social source. Without one, the social snapshot stays zero.
func (m *Manager) WithSocial(s SocialSource) *Manager {
	m.social = s
	return m
}

// WithClock sets the clock and rebuilds the snapshot cache on it.
func (m *Manager) WithClock(c aitime.Clock) *Manager {
	m.clock = aitime.OrSystem(c)
	m.cache = cache.NewLRUCache[*LocalContext](1, m.ttl, m.clock)
	return m
}

// GetLocalContext returns the cached snapshot, rebuilding it once the TTL has passed.
// Callers must treat the result as read-only.
func (m *Manager) GetLocalContext(ctx context.Context) *LocalContext {
	if lc, ok := m.cache.Get(snapshotKey); ok {
		m.stats.cacheHits.Add(1)
		return lc
	}

	lc := m.build(ctx)
	m.cache.Set(snapshotKey, lc, m.ttl)
	m.stats.builds.Add(1)
	m.logger.Debug("local context rebuilt",
		"time_context", lc.TimeContext,
		"recent_types", len(lc.RecentActivity),
		"friends_nearby", lc.Social.FriendsNearby)
	return lc
}

// Invalidate drops the cached snapshot.
func (m *Manager) Invalidate() {
	m.cache.Invalidate(snapshotKey)
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Builds:    m.stats.builds.Load(),
		CacheHits: m.stats.cacheHits.Load(),
	}
}

func (m *Manager) build(ctx context.Context) *LocalContext {
	now := m.clock.Now()
	lc := &LocalContext{
		Preferences:    habit.NewUserPreferences(),
		RecentActivity: map[eventlog.EventType][]eventlog.UserEvent{},
		TimeContext:    aitime.Describe(now),
		TimeOfDay:      aitime.TimeOfDayAt(now),
		DayOfWeek:      aitime.DayOfWeek(now),
		GeneratedAt:    now,
	}

	if m.events != nil {
		lc.Preferences = habit.Calculate(m.events.Events())
		for _, e := range m.events.EventsInWindow(RecentWindow) {
			lc.RecentActivity[e.Type] = append(lc.RecentActivity[e.Type], e)
		}
		for t := range lc.RecentActivity {
			list := lc.RecentActivity[t]
			sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
		}
	}

	if m.memory != nil {
		if p := m.memory.GetMemory(ctx); p != nil {
			lc.Inferred = memory.InferPreferencesFromHistory(p)
			lc.LastSearch = memory.LastSearch(p)
		}
	}

	if m.social != nil {
		lc.Social = SocialSnapshot{
			FriendsNearby: m.social.NearbyFriendCount(),
			GroupActivity: m.social.HasGroupActivity(),
		}
	}
	return lc
}
