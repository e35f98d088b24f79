// Package eventlog records user and system events and aggregates them into time-context patterns.
package eventlog

import (
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

// EventType is the closed set of recorded event kinds.
type EventType string

const (
	TypeVenueInteraction      EventType = "venue_interaction"
	TypeFriendResponse        EventType = "friend_response"
	TypeSuggestionFeedback    EventType = "suggestion_feedback"
	TypeTimingPreference      EventType = "timing_preference"
	TypeLocationPattern       EventType = "location_pattern"
	TypeChatInteraction       EventType = "chat_interaction"
	TypeNotificationAction    EventType = "notification_action"
	TypeTrendFollow           EventType = "trend_follow"
	TypePredictionOutcome     EventType = "prediction_outcome"
	TypeNotificationGenerated EventType = "notification_generated"
	TypeNotificationShown     EventType = "notification_shown"
)

// AllTypes lists every known event type.
var AllTypes = []EventType{
	TypeVenueInteraction,
	TypeFriendResponse,
	TypeSuggestionFeedback,
	TypeTimingPreference,
	TypeLocationPattern,
	TypeChatInteraction,
	TypeNotificationAction,
	TypeTrendFollow,
	TypePredictionOutcome,
	TypeNotificationGenerated,
	TypeNotificationShown,
}

// Source identifies who produced an event.
type Source string

const (
	SourceUserAction   Source = "user_action"
	SourceSystem       Source = "system_generated"
	SourceAIPrediction Source = "ai_prediction"
)

// Location is a coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EventContext is the situational snapshot attached to every event.
type EventContext struct {
	TimeOfDay     aitime.TimeOfDay `json:"timeOfDay"`
	DayOfWeek     string           `json:"dayOfWeek"`
	Location      *Location        `json:"location,omitempty"`
	Weather       string           `json:"weather,omitempty"`
	FriendsNearby *int             `json:"friendsNearby,omitempty"`
}

// UserEvent is an immutable record of something that happened.
type UserEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Context   EventContext   `json:"context"`
	Data      map[string]any `json:"data"`
	Source    Source         `json:"source"`
}

// String returns the string value of a data field, or "".
func (e UserEvent) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// Number returns the numeric value of a data field.
func (e UserEvent) Number(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Situation supplies the optional parts of an EventContext.
type Situation struct {
	Location      *Location
	Weather       string
	FriendsNearby *int
}
