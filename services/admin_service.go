// services/admin_service.go
package services

import (
	"errors"
	"log"

	"marathon-platform/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// AdminService is the moderation surface: reviewing queued issue submissions,
// banning users, seeding challenge content and triggering score repair.
type AdminService struct {
	DB          *gorm.DB
	Submissions *SubmissionService
	Scoring     *ScoringService
}

func NewAdminService(db *gorm.DB, submissions *SubmissionService, scoring *ScoringService) *AdminService {
	return &AdminService{DB: db, Submissions: submissions, Scoring: scoring}
}

// ListPendingSubmissions returns the moderation queue, oldest first.
func (s *AdminService) ListPendingSubmissions(c *fiber.Ctx) error {
	var subs []models.Submission
	if err := s.DB.Where("status = ?", models.StatusPendingModerator).
		Order("last_submitted_at ASC").
		Find(&subs).Error; err != nil {
		log.Printf("DB Error fetching moderation queue: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch pending submissions"})
	}
	return c.JSON(subs)
}

// ReviewSubmission settles one queued submission.
func (s *AdminService) ReviewSubmission(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid submission ID"})
	}

	var req struct {
		Action   string `json:"action"` // "approve" or "reject"
		Points   int    `json:"points"`
		Feedback string `json:"feedback"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Action != "approve" && req.Action != "reject" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action must be approve or reject"})
	}

	result, err := s.Submissions.Moderate(id, req.Action == "approve", req.Points, req.Feedback)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// BanUser flips the ban gate. Banned users are refused at the top of the
// submission guard chain.
func (s *AdminService) BanUser(c *fiber.Ctx) error {
	return s.setBanned(c, true)
}

func (s *AdminService) UnbanUser(c *fiber.Ctx) error {
	return s.setBanned(c, false)
}

func (s *AdminService) setBanned(c *fiber.Ctx, banned bool) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user ID"})
	}

	result := s.DB.Model(&models.User{}).Where("id = ?", id).Update("is_banned", banned)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update user"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	log.Printf("🔨 [ADMIN] user %s banned=%t", id, banned)
	return c.JSON(fiber.Map{"user_id": id, "is_banned": banned})
}

// SeedChallenges loads challenge content idempotently: the unique title is
// the business key, existing titles are skipped untouched.
func (s *AdminService) SeedChallenges(c *fiber.Ctx) error {
	var req struct {
		Challenges []struct {
			Title       string            `json:"title"`
			Description string            `json:"description"`
			Points      int               `json:"points"`
			Difficulty  models.Difficulty `json:"difficulty"`
		} `json:"challenges"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	created, skipped := 0, 0
	for _, in := range req.Challenges {
		if in.Title == "" || in.Points <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "every challenge needs a title and positive points"})
		}

		var count int64
		if err := s.DB.Model(&models.Challenge{}).Where("title = ?", in.Title).Count(&count).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		if count > 0 {
			skipped++
			continue
		}

		difficulty := in.Difficulty
		if difficulty == "" {
			difficulty = models.DifficultyMedium
		}
		challenge := models.Challenge{
			ID:          uuid.NewString(),
			Title:       in.Title,
			Slug:        slug.Make(in.Title),
			Description: in.Description,
			Points:      in.Points,
			Difficulty:  difficulty,
		}
		if err := s.DB.Create(&challenge).Error; err != nil {
			log.Printf("DB Error seeding challenge %q: %v", in.Title, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to seed challenge"})
		}
		created++
	}

	log.Printf("🌱 [ADMIN] seeded challenges: %d created, %d skipped", created, skipped)
	return c.JSON(fiber.Map{"created": created, "skipped": skipped})
}

// RecomputeScores triggers the full score repair pass.
func (s *AdminService) RecomputeScores(c *fiber.Ctx) error {
	repaired, err := s.Scoring.RecomputeAllScores()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "recompute failed", "cause": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "scores recomputed", "users": repaired})
}
