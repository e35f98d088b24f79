// Package social tracks friend activity and derives proximity alerts,
// venue popularity trends and group movements from it.
package social

import (
	"time"

	"github.com/hrygo/nova/plugin/ai/eventlog"
)

// ActivityType is the closed set of friend activities.
type ActivityType string

const (
	ActivityCheckIn       ActivityType = "check_in"
	ActivityHeadingTo     ActivityType = "heading_to"
	ActivityLeftVenue     ActivityType = "left_venue"
	ActivityPlanning      ActivityType = "planning"
	ActivityLocationShare ActivityType = "location_share"
	ActivityStatusUpdate  ActivityType = "status_update"
)

// FriendActivity is one observed friend action.
type FriendActivity struct {
	FriendID       string             `json:"friendId" validate:"required"`
	FriendName     string             `json:"friendName"`
	ActivityType   ActivityType       `json:"activityType" validate:"required,oneof=check_in heading_to left_venue planning location_share status_update"`
	VenueID        string             `json:"venueId,omitempty"`
	VenueName      string             `json:"venueName,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
	Location       *eventlog.Location `json:"location,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	RelevanceScore float64            `json:"relevanceScore"`
}

// ProximityAlert signals a friend within the nearby threshold.
type ProximityAlert struct {
	ID         string    `json:"id"`
	FriendID   string    `json:"friendId"`
	FriendName string    `json:"friendName"`
	VenueID    string    `json:"venueId,omitempty"`
	VenueName  string    `json:"venueName,omitempty"`
	Distance   float64   `json:"distance"` // meters
	IsUrgent   bool      `json:"isUrgent"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Momentum is the direction of a social trend.
type Momentum string

const (
	MomentumRising    Momentum = "rising"
	MomentumStable    Momentum = "stable"
	MomentumDeclining Momentum = "declining"
)

// SocialTrend is a decaying venue popularity signal.
type SocialTrend struct {
	ID                string        `json:"id"`
	VenueID           string        `json:"venueId"`
	VenueName         string        `json:"venueName,omitempty"`
	Participants      []string      `json:"participants"`
	Strength          float64       `json:"strength"`
	Momentum          Momentum      `json:"momentum"`
	PredictedDuration time.Duration `json:"predictedDuration"`
	CreatedAt         time.Time     `json:"createdAt"`
	LastParticipantAt time.Time     `json:"lastParticipantAt"`
	LastDecayAt       time.Time     `json:"lastDecayAt,omitempty"`
}

// HasParticipant reports whether friendID already counts toward the trend.
func (t *SocialTrend) HasParticipant(friendID string) bool {
	for _, p := range t.Participants {
		if p == friendID {
			return true
		}
	}
	return false
}

// GroupMovement is a synthesized "friends converging on a venue" signal.
type GroupMovement struct {
	ID               string    `json:"id"`
	VenueID          string    `json:"venueId"`
	VenueName        string    `json:"venueName,omitempty"`
	FriendIDs        []string  `json:"friendIds"`
	Confidence       float64   `json:"confidence"`
	DetectedAt       time.Time `json:"detectedAt"`
	EstimatedArrival time.Time `json:"estimatedArrival"`
}
