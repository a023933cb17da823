// handlers/quest_routes.go
package handlers

import (
	"habit-quest-system/middleware"
	"habit-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuestRoutes(app *fiber.App, questService *services.QuestService, progressService *services.ProgressService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Catalog with availability plus live progress for rule-driven quests.
	securedGroup.Get("/quests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		statuses, err := questService.ListForUser(userID)
		if err != nil {
			return fail(c, err, "failed to list quests")
		}

		type questEntry struct {
			services.QuestStatus
			Progress *services.ProgressState `json:"progress,omitempty"`
		}
		entries := make([]questEntry, 0, len(statuses))
		for _, status := range statuses {
			entry := questEntry{QuestStatus: status}
			if status.Quest.IsAutoCompleting() {
				state, err := progressService.Evaluate(userID, &status.Quest)
				if err != nil {
					return fail(c, err, "failed to evaluate quest progress")
				}
				entry.Progress = state
			}
			entries = append(entries, entry)
		}
		return c.JSON(fiber.Map{"quests": entries})
	})

	securedGroup.Post("/quests/:id/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		questID := c.Params("id")

		result, err := questService.Complete(userID, questID)
		if err != nil {
			return fail(c, err, "failed to complete quest")
		}
		return c.JSON(fiber.Map{
			"message": "quest completed",
			"result":  result,
		})
	})

	// Admin catalog management
	adminGroup := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/quests", func(c *fiber.Ctx) error {
		var input services.QuestInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		quest, err := questService.CreateQuest(input)
		if err != nil {
			return fail(c, err, "failed to create quest")
		}
		return c.Status(fiber.StatusCreated).JSON(quest)
	})

	adminGroup.Put("/quests/:id", func(c *fiber.Ctx) error {
		var input services.QuestInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		quest, err := questService.UpdateQuest(c.Params("id"), input)
		if err != nil {
			return fail(c, err, "failed to update quest")
		}
		return c.JSON(quest)
	})

	adminGroup.Post("/skills", func(c *fiber.Ctx) error {
		var req struct {
			Name  string `json:"name"`
			Color string `json:"color"`
			Icon  string `json:"icon"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		skill, err := questService.CreateSkill(req.Name, req.Color, req.Icon)
		if err != nil {
			return fail(c, err, "failed to create skill")
		}
		return c.Status(fiber.StatusCreated).JSON(skill)
	})
}
