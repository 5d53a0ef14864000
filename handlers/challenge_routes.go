// handlers/challenge_routes.go
package handlers

import (
	"errors"

	"marathon-platform/middleware"
	"marathon-platform/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService, submissions *services.SubmissionService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		views, err := challenges.ListForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list challenges", "cause": err.Error()})
		}
		return c.JSON(views)
	})

	secured.Get("/challenges/:slug", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		view, err := challenges.GetBySlug(c.Params("slug"), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge"})
		}
		return c.JSON(view)
	})

	secured.Post("/challenges/:id/submit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		result, err := submissions.Submit(c.Context(), userID, c.Params("id"), req.Content)
		if err != nil {
			return submitError(c, err)
		}
		if result.AlreadySolved {
			return c.JSON(fiber.Map{"message": "challenge already solved", "result": result})
		}
		return c.JSON(result)
	})

	secured.Get("/issues", func(c *fiber.Ctx) error {
		issues, err := challenges.ListOpenIssues()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list issues"})
		}
		return c.JSON(issues)
	})

	secured.Post("/issues/:id/submit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			PRURL string `json:"pr_url"`
		}
		if err := c.BodyParser(&req); err != nil || req.PRURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "pr_url is required"})
		}

		result, err := submissions.SubmitIssuePR(c.Context(), userID, c.Params("id"), req.PRURL)
		if err != nil {
			return submitError(c, err)
		}
		if result.AlreadySolved {
			return c.JSON(fiber.Map{"message": "issue already solved", "result": result})
		}
		return c.JSON(result)
	})
}

// submitError maps the engine's structured failures to context-specific
// responses so the UI can render countdowns and locked banners instead of a
// generic error.
func submitError(c *fiber.Ctx, err error) error {
	var rateLimited *services.RateLimitError
	var locked *services.LockedError

	switch {
	case errors.As(err, &rateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":               "rate limited",
			"retry_after_seconds": int(rateLimited.RetryAfter.Seconds()) + 1,
		})
	case errors.As(err, &locked):
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{
			"error":         "attempt limit reached — challenge is locked",
			"last_feedback": locked.LastFeedback,
		})
	case errors.Is(err, services.ErrContentTooShort):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUserBanned):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account is banned"})
	case errors.Is(err, services.ErrIssueClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrBadTrackerURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrJudgeUnavailable), errors.Is(err, services.ErrBadVerdict):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "the judge is unavailable right now, please try again",
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "submission failed", "cause": err.Error()})
	}
}
