// Package notify evaluates proactive notification triggers against the local
// context and cached predictions, and delivers new notifications to channels.
package notify

import (
	"time"
)

// Type is the closed set of notification types.
type Type string

const (
	TypeFriendProximity   Type = "friend_proximity"
	TypeOptimalTiming     Type = "optimal_timing"
	TypeVenueSuggestion   Type = "venue_suggestion"
	TypeSocialOpportunity Type = "social_opportunity"
)

// AllTypes lists every notification type.
var AllTypes = []Type{TypeFriendProximity, TypeOptimalTiming, TypeVenueSuggestion, TypeSocialOpportunity}

// Priority orders pending notifications.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the sort rank, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Notification is one proactive suggestion.
type Notification struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Trigger     string         `json:"trigger"`
	Priority    Priority       `json:"priority"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	ActionLabel string         `json:"actionLabel,omitempty"`
	VenueID     string         `json:"venueId,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Shown       bool           `json:"shown"`
	ShownAt     *time.Time     `json:"shownAt,omitempty"`
	Action      string         `json:"action,omitempty"`
}

// Expired reports whether n is past its expiry at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// QuietHours is a wrap-around hour window [Start, End). Start == End disables it.
type QuietHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DefaultQuietHours is 23:00 to 07:00.
var DefaultQuietHours = QuietHours{Start: 23, End: 7}
