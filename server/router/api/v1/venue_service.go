package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/nova/plugin/ai/livedata"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/trend"
)

// VenueResponse is a venue profile with its live data and active events.
type VenueResponse struct {
	Profile livedata.VenueProfile    `json:"profile"`
	Live    livedata.LiveVenueData   `json:"live"`
	Events  []livedata.LiveEventData `json:"events"`
}

// ListVenues returns the live snapshot of every venue.
// GET /api/v1/venues
func (s *APIV1Service) ListVenues(c echo.Context) error {
	return c.JSON(http.StatusOK, orEmpty(s.Live.GetLiveVenues()))
}

// GetVenue returns one venue. Stale data is served while a refresh runs.
// GET /api/v1/venues/:id
func (s *APIV1Service) GetVenue(c echo.Context) error {
	id := c.Param("id")
	profile, ok := s.Live.Venue(id)
	if !ok {
		return notFound(c, "venue not found")
	}
	live, ok := s.Live.GetVenueData(c.Request().Context(), id)
	if !ok {
		return notFound(c, "no live data for venue")
	}
	return c.JSON(http.StatusOK, VenueResponse{
		Profile: profile,
		Live:    live,
		Events:  orEmpty(s.Live.GetActiveEvents(id)),
	})
}

// GetFriendsAtVenue returns friends currently at a venue.
// GET /api/v1/venues/:id/friends
func (s *APIV1Service) GetFriendsAtVenue(c echo.Context) error {
	return c.JSON(http.StatusOK, orEmpty(s.Social.GetFriendsAtVenue(c.Param("id"))))
}

// TrackFriendActivity records a friend's activity.
// POST /api/v1/friends/activity
func (s *APIV1Service) TrackFriendActivity(c echo.Context) error {
	var req social.FriendActivity
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	activity, ok := s.Social.TrackFriendActivity(c.Request().Context(), req)
	if !ok {
		return badRequest(c, "invalid friend activity")
	}
	return c.JSON(http.StatusCreated, activity)
}

// GetProximityAlerts returns the recent proximity alerts, most recent first.
// GET /api/v1/proximity-alerts
func (s *APIV1Service) GetProximityAlerts(c echo.Context) error {
	return c.JSON(http.StatusOK, orEmpty(s.Social.GetProximityAlerts()))
}

// TrendsResponse combines event-log trends with live social trends.
type TrendsResponse struct {
	Analysis *trend.Analysis     `json:"analysis"`
	Social   []social.SocialTrend `json:"social"`
}

// GetTrends runs the trend analysis.
// GET /api/v1/trends
func (s *APIV1Service) GetTrends(c echo.Context) error {
	return c.JSON(http.StatusOK, TrendsResponse{
		Analysis: s.Trends.AnalyzeTrends(c.Request().Context()),
		Social:   orEmpty(s.Social.GetSocialTrends()),
	})
}
