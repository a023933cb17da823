// handlers/profile_routes.go
package handlers

import (
	"habit-quest-system/middleware"
	"habit-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, ledger *services.LedgerService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// First contact creates the profile row; the gateway forwards identity in
	// headers so there is no separate signup call.
	securedGroup.Get("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := ledger.EnsureProfile(userID, c.Get("X-User-Name"), c.Get("X-User-Email"), c.Get("X-User-Timezone"))
		if err != nil {
			return fail(c, err, "failed to fetch profile")
		}

		progress := services.LevelFromXP(profile.XPTotal)
		return c.JSON(fiber.Map{
			"id":               profile.ID,
			"username":         profile.Username,
			"xp_total":         profile.XPTotal,
			"level":            profile.Level,
			"xp_into_level":    progress.XPIntoLevel,
			"xp_to_next_level": progress.XPToNextLevel,
			"streak_count":     profile.StreakCount,
			"milestone_level":  profile.MilestoneLevel,
			"timezone":         profile.Timezone,
		})
	})

	securedGroup.Get("/user/skills", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		skills, err := ledger.GetSkillProgress(userID)
		if err != nil {
			return fail(c, err, "failed to fetch skill progress")
		}

		var response []fiber.Map
		for _, us := range skills {
			progress := services.LevelFromXP(us.XP)
			entry := fiber.Map{
				"skill_id":         us.SkillID,
				"xp":               us.XP,
				"level":            us.Level,
				"xp_into_level":    progress.XPIntoLevel,
				"xp_to_next_level": progress.XPToNextLevel,
			}
			if us.Skill != nil {
				entry["name"] = us.Skill.Name
				entry["color"] = us.Skill.Color
				entry["icon"] = us.Skill.Icon
			}
			response = append(response, entry)
		}
		return c.JSON(fiber.Map{"skills": response})
	})

	securedGroup.Get("/user/xp/today", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		total, err := ledger.TodayXP(userID)
		if err != nil {
			return fail(c, err, "failed to compute today's XP")
		}
		return c.JSON(fiber.Map{"xp_today": total})
	})
}
