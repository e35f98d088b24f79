// Package context assembles the cached local context snapshot and decides
// whether a chat query can be answered without the language model.
package context

import (
	"context"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/memory"
)

// SocialSnapshot is the social slice of the local context.
type SocialSnapshot struct {
	FriendsNearby int  `json:"friendsNearby"`
	GroupActivity bool `json:"groupActivity"`
}

// LocalContext is a time-boxed snapshot of everything known locally.
type LocalContext struct {
	Preferences *habit.UserPreferences `json:"preferences"`
	// RecentActivity holds the last 24 hours of events split by type, most recent first.
	RecentActivity map[eventlog.EventType][]eventlog.UserEvent `json:"recentActivity"`
	TimeContext    string                                      `json:"timeContext"`
	TimeOfDay      aitime.TimeOfDay                            `json:"timeOfDay"`
	DayOfWeek      string                                      `json:"dayOfWeek"`
	Social         SocialSnapshot                              `json:"social"`
	Inferred       *memory.InferredPreferences                 `json:"inferred,omitempty"`
	LastSearch     string                                      `json:"lastSearch,omitempty"`
	GeneratedAt    time.Time                                   `json:"generatedAt"`
}

// RecentCount returns how many events of t happened in the last 24 hours.
func (c *LocalContext) RecentCount(t eventlog.EventType) int {
	if c == nil {
		return 0
	}
	return len(c.RecentActivity[t])
}

// EventSource reads the event log.
type EventSource interface {
	Events() []eventlog.UserEvent
	EventsInWindow(window time.Duration) []eventlog.UserEvent
}

// MemorySource reads the memory profile.
type MemorySource interface {
	GetMemory(ctx context.Context) *memory.MemoryProfile
}

// SocialSource reports live social signals.
type SocialSource interface {
	NearbyFriendCount() int
	HasGroupActivity() bool
}
