package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/assistant"
	novactx "github.com/hrygo/nova/plugin/ai/context"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/livedata"
	"github.com/hrygo/nova/plugin/ai/memory"
	"github.com/hrygo/nova/plugin/ai/metrics"
	"github.com/hrygo/nova/plugin/ai/notify"
	"github.com/hrygo/nova/plugin/ai/prediction"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/trend"
	ratelimit "github.com/hrygo/nova/server/middleware"
)

// APIV1Service serves the public JSON API over the nova services.
type APIV1Service struct {
	Profile       *profile.Profile
	Clock         aitime.Clock
	Events        *eventlog.Tracker
	Memory        *memory.Service
	Context       *novactx.Manager
	Live          *livedata.Aggregator
	Social        *social.Intelligence
	Trends        *trend.Analyzer
	Predictions   *prediction.Engine
	Notifications *notify.Engine
	Assistant     *assistant.Service
	Metrics       *metrics.Service

	// RateLimiter is optional; without it requests are not limited.
	RateLimiter *ratelimit.RateLimiter
}

// RegisterGateway registers the API routes with the given Echo instance.
func (s *APIV1Service) RegisterGateway(_ context.Context, echoServer *echo.Echo) error {
	s.Clock = aitime.OrSystem(s.Clock)

	g := echoServer.Group("/api/v1")
	g.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	if s.RateLimiter != nil {
		g.Use(s.RateLimiter.Middleware())
	}

	g.GET("/healthz", s.Healthz)

	g.POST("/events", s.TrackEvent)
	g.GET("/preferences", s.GetPreferences)
	g.GET("/context", s.GetContext)
	g.POST("/chat", s.Chat)
	g.GET("/memory", s.GetMemory)
	g.PUT("/memory/preferences", s.SetVenuePreferences)
	g.DELETE("/memory", s.ClearMemory)

	g.GET("/venues", s.ListVenues)
	g.GET("/venues/:id", s.GetVenue)
	g.GET("/venues/:id/friends", s.GetFriendsAtVenue)
	g.POST("/friends/activity", s.TrackFriendActivity)
	g.GET("/proximity-alerts", s.GetProximityAlerts)
	g.GET("/trends", s.GetTrends)

	g.GET("/predictions", s.ListPredictions)
	g.POST("/predictions/:id/accuracy", s.UpdatePredictionAccuracy)

	g.GET("/notifications", s.ListNotifications)
	g.GET("/notifications/feed", s.NotificationFeed)
	g.POST("/notifications/:id/shown", s.MarkNotificationShown)
	g.POST("/notifications/:id/action", s.NotificationAction)

	g.GET("/metrics/overview", s.GetMetricsOverview)
	return nil
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// Healthz reports liveness.
// GET /api/v1/healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.Profile != nil {
		resp.Version = s.Profile.Version
		resp.Mode = s.Profile.Mode
	}
	return c.JSON(http.StatusOK, resp)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": msg})
}

// orEmpty keeps empty lists encoded as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
