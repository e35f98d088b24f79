package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/nova/plugin/ai/notify"
)

// ListNotifications returns the pending notifications, highest priority first.
// GET /api/v1/notifications
func (s *APIV1Service) ListNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, orEmpty(s.Notifications.GetPendingNotifications()))
}

// MarkNotificationShown marks a notification as shown.
// POST /api/v1/notifications/:id/shown
func (s *APIV1Service) MarkNotificationShown(c echo.Context) error {
	if !s.Notifications.MarkShown(c.Request().Context(), c.Param("id")) {
		return notFound(c, "notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// ActionRequest is the body of POST /notifications/:id/action.
type ActionRequest struct {
	Action string `json:"action"`
}

// NotificationAction records the user's response to a notification.
// POST /api/v1/notifications/:id/action
func (s *APIV1Service) NotificationAction(c echo.Context) error {
	var req ActionRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Action) == "" {
		return badRequest(c, "action is required")
	}
	if !s.Notifications.TrackAction(c.Request().Context(), c.Param("id"), req.Action) {
		return notFound(c, "notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// NotificationFeed renders the pending notifications as an Atom feed.
// GET /api/v1/notifications/feed
func (s *APIV1Service) NotificationFeed(c echo.Context) error {
	pending := s.Notifications.GetPendingNotifications()
	atom, err := buildNotificationFeed(pending, baseURL(c)).ToAtom()
	if err != nil {
		slog.Error("failed to render notification feed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to render feed"})
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}

func buildNotificationFeed(pending []notify.Notification, base string) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "Nova notifications",
		Link:        &feeds.Link{Href: base + "/api/v1/notifications"},
		Description: "Pending suggestions from Nova",
		Id:          base + "/api/v1/notifications/feed",
	}
	for _, n := range pending {
		if feed.Updated.Before(n.CreatedAt) {
			feed.Updated = n.CreatedAt
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          "urn:nova:notification:" + n.ID,
			Title:       n.Title,
			Link:        &feeds.Link{Href: base + "/api/v1/notifications/" + n.ID},
			Description: n.Message,
			Created:     n.CreatedAt,
			Updated:     n.CreatedAt,
		})
	}
	return feed
}

func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
