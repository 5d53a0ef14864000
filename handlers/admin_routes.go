// handlers/admin_routes.go
package handlers

import (
	"marathon-platform/middleware"
	"marathon-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, admin *services.AdminService, users *services.UserService) {
	adminGroup := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Get("/submissions/pending", admin.ListPendingSubmissions)
	adminGroup.Post("/submissions/:id/review", admin.ReviewSubmission)

	adminGroup.Get("/users", users.SearchUsers)
	adminGroup.Post("/users/:id/ban", admin.BanUser)
	adminGroup.Post("/users/:id/unban", admin.UnbanUser)

	adminGroup.Post("/challenges/seed", admin.SeedChallenges)
	adminGroup.Post("/scores/recompute", admin.RecomputeScores)
}
