package notify

import (
	"fmt"
	"math"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
	novactx "github.com/hrygo/nova/plugin/ai/context"
	"github.com/hrygo/nova/plugin/ai/habit"
	"github.com/hrygo/nova/plugin/ai/prediction"
	"github.com/hrygo/nova/plugin/ai/social"
)

// Input is what every trigger condition sees during one check.
type Input struct {
	Now         time.Time
	Context     *novactx.LocalContext
	Predictions []prediction.VenuePrediction
	Alerts      []social.ProximityAlert
}

// Draft is the content a trigger contributes to a new notification.
type Draft struct {
	Title       string
	Message     string
	ActionLabel string
	VenueID     string
	Priority    Priority
	Data        map[string]any
}

// Trigger is one row of the trigger table.
type Trigger struct {
	Name      string
	Type      Type
	Cooldown  time.Duration
	Expiry    time.Duration
	Priority  Priority
	Condition func(in Input) bool
	Build     func(in Input) Draft
}

// Trigger thresholds.
const (
	TimingConfidence     = 0.7
	SuggestionConfidence = 0.75
)

// DefaultTriggers is the built-in trigger table.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Name:      "friend-nearby",
			Type:      TypeFriendProximity,
			Cooldown:  45 * time.Minute,
			Expiry:    30 * time.Minute,
			Priority:  PriorityHigh,
			Condition: friendNearby,
			Build:     buildFriendNearby,
		},
		{
			Name:      "optimal-timing",
			Type:      TypeOptimalTiming,
			Cooldown:  120 * time.Minute,
			Expiry:    time.Hour,
			Priority:  PriorityMedium,
			Condition: func(in Input) bool { _, ok := timingPrediction(in); return ok },
			Build:     buildOptimalTiming,
		},
		{
			Name:      "venue-suggestion",
			Type:      TypeVenueSuggestion,
			Cooldown:  90 * time.Minute,
			Expiry:    3 * time.Hour,
			Priority:  PriorityMedium,
			Condition: func(in Input) bool { _, ok := bestRecommendation(in); return ok },
			Build:     buildVenueSuggestion,
		},
		{
			Name:      "social-opportunity",
			Type:      TypeSocialOpportunity,
			Cooldown:  60 * time.Minute,
			Expiry:    2 * time.Hour,
			Priority:  PriorityHigh,
			Condition: socialOpportunity,
			Build:     buildSocialOpportunity,
		},
	}
}

func friendNearby(in Input) bool {
	if len(in.Alerts) > 0 {
		return true
	}
	return in.Context != nil && in.Context.Social.FriendsNearby > 0
}

func buildFriendNearby(in Input) Draft {
	if len(in.Alerts) == 0 {
		n := in.Context.Social.FriendsNearby
		return Draft{
			Title:       "Friends nearby",
			Message:     fmt.Sprintf("%d of your friends are out nearby.", n),
			ActionLabel: "See who",
			Data:        map[string]any{"friendsNearby": n},
		}
	}
	a := nearestAlert(in.Alerts)
	d := Draft{
		Title:       a.FriendName + " is nearby",
		Message:     fmt.Sprintf("%s is %d m away", a.FriendName, int(math.Round(a.Distance))),
		ActionLabel: "Say hi",
		VenueID:     a.VenueID,
		Data:        map[string]any{"friendId": a.FriendID, "distance": a.Distance},
	}
	if a.VenueName != "" {
		d.Message += " at " + a.VenueName
	}
	d.Message += "."
	if a.IsUrgent {
		d.Priority = PriorityUrgent
	}
	return d
}

func nearestAlert(alerts []social.ProximityAlert) social.ProximityAlert {
	best := alerts[0]
	for _, a := range alerts[1:] {
		if a.Distance < best.Distance {
			best = a
		}
	}
	return best
}

// timingPrediction finds a confident timing suggestion. Outside evening and
// night it also requires the user to usually go out at this time of day.
func timingPrediction(in Input) (prediction.VenuePrediction, bool) {
	for _, p := range in.Predictions {
		if p.Kind != prediction.KindTimingSuggestion || p.Confidence < TimingConfidence {
			continue
		}
		tod := aitime.TimeOfDayAt(in.Now)
		if tod == aitime.Evening || tod == aitime.Night {
			return p, true
		}
		if in.Context != nil && in.Context.Preferences != nil {
			if top := habit.Top(in.Context.Preferences.TimePreferences, 1); len(top) == 1 && top[0] == string(tod) {
				return p, true
			}
		}
	}
	return prediction.VenuePrediction{}, false
}

func buildOptimalTiming(in Input) Draft {
	p, _ := timingPrediction(in)
	return Draft{
		Title:       "Good time to head out",
		Message:     p.Message,
		ActionLabel: p.ActionLabel,
		VenueID:     p.VenueID,
		Data:        map[string]any{"predictionId": p.ID, "confidence": p.Confidence},
	}
}

// bestRecommendation returns the most confident recommendation above SuggestionConfidence.
func bestRecommendation(in Input) (prediction.VenuePrediction, bool) {
	var best prediction.VenuePrediction
	found := false
	for _, p := range in.Predictions {
		if p.Kind != prediction.KindVenueRecommendation || p.Confidence < SuggestionConfidence {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best, found = p, true
		}
	}
	return best, found
}

func buildVenueSuggestion(in Input) Draft {
	p, _ := bestRecommendation(in)
	title := "Tonight's pick"
	if p.VenueName != "" {
		title = "Try " + p.VenueName
	}
	return Draft{
		Title:       title,
		Message:     p.Message,
		ActionLabel: p.ActionLabel,
		VenueID:     p.VenueID,
		Data:        map[string]any{"predictionId": p.ID, "prediction": string(p.Prediction)},
	}
}

func socialOpportunity(in Input) bool {
	for _, p := range in.Predictions {
		if p.Kind == prediction.KindSocialOpportunity {
			return true
		}
	}
	return in.Context != nil && in.Context.Social.GroupActivity
}

func buildSocialOpportunity(in Input) Draft {
	for _, p := range in.Predictions {
		if p.Kind == prediction.KindSocialOpportunity {
			return Draft{
				Title:       "Your friends are meeting up",
				Message:     p.Message,
				ActionLabel: p.ActionLabel,
				VenueID:     p.VenueID,
				Data:        map[string]any{"predictionId": p.ID},
			}
		}
	}
	return Draft{
		Title:       "Your friends are meeting up",
		Message:     "A group of your friends is heading out together.",
		ActionLabel: "Join them",
	}
}
