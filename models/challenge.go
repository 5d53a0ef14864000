package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge is an immutable problem definition. Title is the business key the
// seeder upserts on; Slug is derived from it for URLs. Difficulty is a display
// label and is not tied to Points.
type Challenge struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string     `gorm:"uniqueIndex;not null" json:"title"`
	Slug        string     `gorm:"index;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	Points      int        `gorm:"not null" json:"points"`
	Difficulty  Difficulty `gorm:"type:varchar(16);default:'medium'" json:"difficulty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
