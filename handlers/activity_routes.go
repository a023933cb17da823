// handlers/activity_routes.go
package handlers

import (
	"strconv"

	"habit-quest-system/middleware"
	"habit-quest-system/models"
	"habit-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupActivityRoutes(app *fiber.App, ledger *services.LedgerService, progressService *services.ProgressService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/activities", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			SkillID      string `json:"skill_id"`
			ActivityName string `json:"activity_name"`
			XP           int64  `json:"xp"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.ActivityName == "" || req.SkillID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "skill_id and activity_name are required",
			})
		}

		entry, err := ledger.LogActivity(userID, &req.SkillID, req.ActivityName, req.XP, models.SourceManual)
		if err != nil {
			return fail(c, err, "failed to log activity")
		}

		// New activity can push streak/count rules over their threshold.
		go func() {
			_ = progressService.EvaluateAllForUser(userID)
		}()

		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	securedGroup.Get("/activities", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		entries, total, err := ledger.RecentActivities(userID, page, size)
		if err != nil {
			return fail(c, err, "failed to fetch activities")
		}
		return c.JSON(fiber.Map{
			"activities":  entries,
			"page":        page,
			"size":        size,
			"total_items": total,
		})
	})

	// Admin XP grant — lands in the ledger like any other manual entry.
	adminGroup := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID  string `json:"user_id"`
			SkillID string `json:"skill_id"`
			XP      int64  `json:"xp"`
			Reason  string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.UserID == "" || req.SkillID == "" || req.XP <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id, skill_id and a positive xp are required",
			})
		}
		reason := req.Reason
		if reason == "" {
			reason = "Admin XP grant"
		}

		entry, err := ledger.LogActivity(req.UserID, &req.SkillID, reason, req.XP, models.SourceManual)
		if err != nil {
			return fail(c, err, "XP grant failed")
		}
		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"entry":   entry,
		})
	})
}
