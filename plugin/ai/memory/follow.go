package memory

import (
	"context"

	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/stream"
)

// Subscriber registers stream handlers.
type Subscriber interface {
	Subscribe(topic string, fn stream.Handler) func()
}

// Follow records every tracked venue_interaction event into the profile until
// the returned function is called.
func (s *Service) Follow(sub Subscriber) func() {
	return sub.Subscribe(stream.TopicEventTracked, s.onEventTracked)
}

func (s *Service) onEventTracked(ctx context.Context, msg stream.Message) {
	var event eventlog.UserEvent
	if err := msg.Decode(&event); err != nil {
		s.logger.Warn("failed to decode tracked event", "error", err)
		return
	}
	if event.Type != eventlog.TypeVenueInteraction {
		return
	}
	venueType := event.String("venueType")
	if venueType == "" {
		return
	}
	s.RecordVenueInteraction(ctx, venueType, InteractionContext{
		TimeOfDay:  event.Context.TimeOfDay,
		DayOfWeek:  event.Context.DayOfWeek,
		Area:       event.String("area"),
		Atmosphere: event.String("atmosphere"),
		PriceRange: event.String("priceRange"),
	})
}
