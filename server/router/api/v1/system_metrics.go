package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/nova/plugin/ai/metrics"
)

// MetricsOverviewResponse represents the overview response of routing and prediction metrics.
type MetricsOverviewResponse struct {
	TotalRequests int64                            `json:"total_requests"`
	LocalRate     float64                          `json:"local_rate"`
	P50LatencyMs  int64                            `json:"p50_latency_ms"`
	P95LatencyMs  int64                            `json:"p95_latency_ms"`
	Routes        map[string]*metrics.RouteStat    `json:"routes"`
	Predictions   map[string]*metrics.AccuracyStat `json:"predictions"`
	TimeRange     string                           `json:"time_range"`
	Persisted     bool                             `json:"persisted"`
}

// GetMetricsOverview returns the metrics overview.
// GET /api/v1/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	// Parse time range parameter
	timeRange := c.QueryParam("range")
	if timeRange == "" {
		timeRange = "24h"
	}
	start, err := parseTimeRange(s.Clock.Now(), timeRange)
	if err != nil {
		slog.Warn("Invalid time range parameter in metrics request", "range", timeRange, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid time range"})
	}

	stats, err := s.Metrics.GetStats(c.Request().Context(), metrics.TimeRange{Start: start})
	if err != nil {
		slog.Error("failed to load metrics", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load metrics"})
	}

	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: stats.RouteCount,
		LocalRate:     stats.LocalRate(),
		P50LatencyMs:  stats.LatencyP50.Milliseconds(),
		P95LatencyMs:  stats.LatencyP95.Milliseconds(),
		Routes:        stats.Routes,
		Predictions:   stats.Predictions,
		TimeRange:     timeRange,
		Persisted:     s.Metrics.HasPersistence(),
	})
}

// parseTimeRange parses time range string and returns the start time
func parseTimeRange(now time.Time, timeRange string) (time.Time, error) {
	switch timeRange {
	case "1h":
		return now.Add(-1 * time.Hour), nil
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	case "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid time range: %s (valid: 1h, 24h, 7d, 30d)", timeRange)
	}
}
