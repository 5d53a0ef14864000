// services/user_service.go
package services

import (
	"errors"
	"log"
	"strings"

	"marathon-platform/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// EnsureUser finds or creates the user row for an authenticated identity.
// Called on first contact; idempotent.
func (s *UserService) EnsureUser(id, email, name string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{ID: id, Email: email, Name: name, Role: models.RoleUser}
		if err := s.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		log.Printf("👋 [USER] provisioned new participant %s (%s)", name, id)
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the caller's row, provisioning it on first contact.
func (s *UserService) GetProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	user, err := s.EnsureUser(userID, c.Get("X-User-Email"), c.Get("X-User-Name"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load profile", "cause": err.Error()})
	}
	return c.JSON(user)
}

// SetSemester handles onboarding: the cohort classifier is set exactly once.
func (s *UserService) SetSemester(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Semester int `json:"semester"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Semester < 1 || req.Semester > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "semester must be between 1 and 12"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if user.Semester != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "semester already set"})
	}

	if err := s.DB.Model(&user).Update("semester", req.Semester).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save semester"})
	}

	track := "senior"
	if req.Semester == 1 {
		track = "fresher"
	}
	return c.JSON(fiber.Map{"message": "onboarding complete", "semester": req.Semester, "track": track})
}

// SearchUsers is the admin-side participant lookup.
func (s *UserService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.User{}).Limit(limit)
	if query != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}

	var users []models.User
	if err := db.Order("score DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search failed", "cause": err.Error()})
	}
	return c.JSON(users)
}
