package server

import (
	"chirp/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns the configured flags and their evaluation for the
// current viewer. Anonymous viewers are evaluated with an empty subject.
// @Summary Feature flags
// @Tags meta
// @Produce json
// @Success 200 {object} models.Response
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	raw := map[string]string{}
	evaluated := map[string]bool{}
	if s.featureFlags != nil {
		raw = s.featureFlags.Raw()
		evaluated = s.featureFlags.Snapshot(currentUserID(c))
	}

	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{
		"raw":       raw,
		"evaluated": evaluated,
	})
}
