package eventlog

import (
	"encoding/json"
)

// Payload is a typed event body.
type Payload interface {
	EventType() EventType
}

// VenueInteraction is the body of a venue_interaction event.
type VenueInteraction struct {
	VenueID   string `json:"venueId" validate:"required"`
	VenueType string `json:"venueType" validate:"required"`
	Action    string `json:"action" validate:"required"`
	VenueName string `json:"venueName,omitempty"`
	Area      string `json:"area,omitempty"`
}

// FriendResponse is the body of a friend_response event.
type FriendResponse struct {
	FriendID     string `json:"friendId" validate:"required"`
	Response     string `json:"response" validate:"required,oneof=accepted declined maybe ignored"`
	SuggestionID string `json:"suggestionId,omitempty"`
	Activity     string `json:"activity,omitempty"`
}

// SuggestionFeedback is the body of a suggestion_feedback event.
type SuggestionFeedback struct {
	SuggestionID string `json:"suggestionId" validate:"required"`
	Feedback     string `json:"feedback" validate:"required,oneof=accepted dismissed liked disliked clicked"`
	Rating       int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	GroupSize    int    `json:"groupSize,omitempty" validate:"omitempty,min=1"`
}

// TimingPreference is the body of a timing_preference event.
type TimingPreference struct {
	PreferredTime string `json:"preferredTime" validate:"required"`
	Outcome       string `json:"outcome" validate:"required"`
	Activity      string `json:"activity,omitempty"`
}

// LocationPattern is the body of a location_pattern event.
type LocationPattern struct {
	Area         string  `json:"area" validate:"required"`
	DwellMinutes float64 `json:"dwellMinutes,omitempty" validate:"omitempty,gte=0"`
}

// ChatInteraction is the body of a chat_interaction event.
type ChatInteraction struct {
	Intent     string  `json:"intent" validate:"required"`
	Message    string  `json:"message,omitempty" validate:"omitempty,max=500"`
	Local      bool    `json:"local"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// NotificationAction is the body of a notification_action event.
type NotificationAction struct {
	NotificationID string `json:"notificationId" validate:"required"`
	Action         string `json:"action" validate:"required"`
}

// TrendFollow is the body of a trend_follow event.
type TrendFollow struct {
	TrendID string `json:"trendId" validate:"required"`
	VenueID string `json:"venueId,omitempty"`
}

// PredictionOutcome is the body of a prediction_outcome event.
type PredictionOutcome struct {
	PredictionID string `json:"predictionId" validate:"required"`
	VenueID      string `json:"venueId,omitempty"`
	WasAccurate  bool   `json:"wasAccurate"`
}

// NotificationGenerated is the body of a notification_generated event.
type NotificationGenerated struct {
	NotificationID   string `json:"notificationId" validate:"required"`
	NotificationType string `json:"notificationType" validate:"required"`
	Priority         string `json:"priority,omitempty"`
}

// NotificationShown is the body of a notification_shown event.
type NotificationShown struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

func (VenueInteraction) EventType() EventType      { return TypeVenueInteraction }
func (FriendResponse) EventType() EventType        { return TypeFriendResponse }
func (SuggestionFeedback) EventType() EventType    { return TypeSuggestionFeedback }
func (TimingPreference) EventType() EventType      { return TypeTimingPreference }
func (LocationPattern) EventType() EventType       { return TypeLocationPattern }
func (ChatInteraction) EventType() EventType       { return TypeChatInteraction }
func (NotificationAction) EventType() EventType    { return TypeNotificationAction }
func (TrendFollow) EventType() EventType           { return TypeTrendFollow }
func (PredictionOutcome) EventType() EventType     { return TypePredictionOutcome }
func (NotificationGenerated) EventType() EventType { return TypeNotificationGenerated }
func (NotificationShown) EventType() EventType     { return TypeNotificationShown }

// schemaFor returns an empty payload for t, or nil for types without a schema.
func schemaFor(t EventType) Payload {
	switch t {
	case TypeVenueInteraction:
		return &VenueInteraction{}
	case TypeFriendResponse:
		return &FriendResponse{}
	case TypeSuggestionFeedback:
		return &SuggestionFeedback{}
	case TypeTimingPreference:
		return &TimingPreference{}
	case TypeLocationPattern:
		return &LocationPattern{}
	case TypeChatInteraction:
		return &ChatInteraction{}
	case TypeNotificationAction:
		return &NotificationAction{}
	case TypeTrendFollow:
		return &TrendFollow{}
	case TypePredictionOutcome:
		return &PredictionOutcome{}
	case TypeNotificationGenerated:
		return &NotificationGenerated{}
	case TypeNotificationShown:
		return &NotificationShown{}
	default:
		return nil
	}
}

// ToData flattens a payload into the free-form event data map.
func ToData(p Payload, extra map[string]any) map[string]any {
	data := map[string]any{}
	if raw, err := json.Marshal(p); err == nil {
		_ = json.Unmarshal(raw, &data)
	}
	for k, v := range extra {
		if _, exists := data[k]; !exists {
			data[k] = v
		}
	}
	return data
}

// Decode reads an event's data into its typed payload.
func Decode[T Payload](e UserEvent) (T, error) {
	var out T
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
