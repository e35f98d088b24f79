package v1

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/nova/plugin/ai/memory"
)

// MemoryResponse is the body of GET /memory.
type MemoryResponse struct {
	Profile       *memory.MemoryProfile       `json:"profile"`
	Inferred      *memory.InferredPreferences `json:"inferred"`
	Suggestions   []string                    `json:"suggestions"`
	PromptContext string                      `json:"promptContext,omitempty"`
}

// GetMemory returns the memory profile with what is inferred from it.
// GET /api/v1/memory
func (s *APIV1Service) GetMemory(c echo.Context) error {
	p := s.Memory.GetMemory(c.Request().Context())
	return c.JSON(http.StatusOK, MemoryResponse{
		Profile:       p,
		Inferred:      memory.InferPreferencesFromHistory(p),
		Suggestions:   orEmpty(memory.PersonalizedSuggestions(p, s.Clock.Now())),
		PromptContext: memory.PromptContext(p),
	})
}

// SetVenuePreferences replaces the explicit venue preferences.
// PUT /api/v1/memory/preferences
func (s *APIV1Service) SetVenuePreferences(c echo.Context) error {
	var req memory.VenuePreferences
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Types = cleanTerms(req.Types)
	req.Atmosphere = cleanTerms(req.Atmosphere)
	req.FrequentAreas = cleanTerms(req.FrequentAreas)
	req.PriceRange = strings.TrimSpace(req.PriceRange)

	ctx := c.Request().Context()
	s.Memory.SetVenuePreferences(ctx, req)
	return c.JSON(http.StatusOK, s.Memory.GetMemory(ctx).VenuePreferences)
}

// ClearMemory deletes the memory profile.
// DELETE /api/v1/memory
func (s *APIV1Service) ClearMemory(c echo.Context) error {
	if err := s.Memory.ClearMemory(c.Request().Context()); err != nil {
		slog.Error("failed to clear memory", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to clear memory"})
	}
	return c.NoContent(http.StatusNoContent)
}

// cleanTerms trims terms and drops blanks, keeping an empty list non-nil.
func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
