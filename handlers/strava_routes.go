// handlers/strava_routes.go
package handlers

import (
	"habit-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupStravaRoutes exposes the ingest endpoint the provider integration
// pushes normalized events to. It sits behind the global gateway token only —
// the integration authenticates as a service, not as a user, and names the
// user in the payload.
func SetupStravaRoutes(app *fiber.App, stravaService *services.StravaService) {
	app.Post("/strava/ingest", func(c *fiber.Ctx) error {
		var req struct {
			UserID     string                      `json:"user_id"`
			Activities []services.ExternalActivity `json:"activities"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id is required",
			})
		}

		stored, duplicates, dropped := stravaService.IngestBatch(req.UserID, req.Activities)
		return c.JSON(fiber.Map{
			"stored":     stored,
			"duplicates": duplicates,
			"dropped":    dropped,
		})
	})
}
