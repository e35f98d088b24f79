package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListPredictions returns the cached predictions, most confident first.
// GET /api/v1/predictions
func (s *APIV1Service) ListPredictions(c echo.Context) error {
	return c.JSON(http.StatusOK, orEmpty(s.Predictions.GetCachedPredictions()))
}

// AccuracyRequest is the body of POST /predictions/:id/accuracy.
type AccuracyRequest struct {
	WasAccurate *bool `json:"wasAccurate"`
}

// UpdatePredictionAccuracy records whether a prediction came true.
// POST /api/v1/predictions/:id/accuracy
func (s *APIV1Service) UpdatePredictionAccuracy(c echo.Context) error {
	var req AccuracyRequest
	if err := c.Bind(&req); err != nil || req.WasAccurate == nil {
		return badRequest(c, "wasAccurate is required")
	}
	if !s.Predictions.UpdatePredictionAccuracy(c.Request().Context(), c.Param("id"), *req.WasAccurate) {
		return notFound(c, "prediction not found")
	}
	return c.NoContent(http.StatusNoContent)
}
