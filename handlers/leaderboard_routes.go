// handlers/leaderboard_routes.go
package handlers

import (
	"marathon-platform/middleware"
	"marathon-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, scoring *services.ScoringService, users *services.UserService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		cohort := c.Query("cohort", "senior")
		limit := c.QueryInt("limit", 100)

		entries, err := scoring.Leaderboard(cohort == "fresher", limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build leaderboard", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"cohort": cohort, "entries": entries})
	})

	secured.Get("/user/profile", users.GetProfile)
	secured.Post("/user/onboarding", users.SetSemester)
}
