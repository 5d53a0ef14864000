// handlers/analytics_routes.go
package handlers

import (
	"marathon-platform/middleware"
	"marathon-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAnalyticsRoutes(app *fiber.App, analytics *services.AnalyticsService) {
	adminGroup := app.Group("/admin/analytics", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Get("/", func(c *fiber.Ctx) error {
		report, err := analytics.Report()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report", "cause": err.Error()})
		}
		return c.JSON(report)
	})

	adminGroup.Get("/integrity", func(c *fiber.Ctx) error {
		flags, err := analytics.IntegrityAudit()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to run integrity audit", "cause": err.Error()})
		}
		return c.JSON(flags)
	})

	adminGroup.Post("/refresh", func(c *fiber.Ctx) error {
		analytics.Invalidate()
		report, err := analytics.Report()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to rebuild report", "cause": err.Error()})
		}
		return c.JSON(report)
	})
}
