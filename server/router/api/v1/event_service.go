package v1

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/habit"
)

// TrackEventRequest is the body of POST /events.
type TrackEventRequest struct {
	Type   eventlog.EventType `json:"type"`
	Data   map[string]any     `json:"data"`
	Source eventlog.Source    `json:"source,omitempty"`
}

var trackableSources = []eventlog.Source{eventlog.SourceUserAction, eventlog.SourceSystem, eventlog.SourceAIPrediction}

// TrackEvent records a user event.
// POST /api/v1/events
func (s *APIV1Service) TrackEvent(c echo.Context) error {
	var req TrackEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !slices.Contains(eventlog.AllTypes, req.Type) {
		return badRequest(c, "unknown event type")
	}
	if req.Source == "" {
		req.Source = eventlog.SourceUserAction
	}
	if !slices.Contains(trackableSources, req.Source) {
		return badRequest(c, "unknown event source")
	}

	event := s.Events.Track(c.Request().Context(), req.Type, req.Data, req.Source)
	return c.JSON(http.StatusCreated, event)
}

// GetPreferences returns preferences derived from the whole event log.
// GET /api/v1/preferences
func (s *APIV1Service) GetPreferences(c echo.Context) error {
	return c.JSON(http.StatusOK, habit.Calculate(s.Events.Events()))
}

// GetContext returns the cached local context.
// GET /api/v1/context
func (s *APIV1Service) GetContext(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Context.GetLocalContext(c.Request().Context()))
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Chat answers a chat message.
// POST /api/v1/chat
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	return c.JSON(http.StatusOK, s.Assistant.Reply(c.Request().Context(), req.SessionID, req.Message))
}
