package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// User is created on first authentication against the gateway. Score is only
// ever written by the approved-submission transaction, the recompute repair
// job, or an explicit admin override. LastRank is owned by the periodic rank
// snapshot job and read-only everywhere else.
type User struct {
	ID       string   `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string   `gorm:"uniqueIndex;not null" json:"email"`
	Name     string   `gorm:"not null" json:"name"`
	Score    int      `gorm:"default:0" json:"score"`
	Semester *int     `json:"semester,omitempty"` // nil until onboarding classifies the user
	LastRank int      `gorm:"default:0" json:"last_rank"`
	IsBanned bool     `gorm:"default:false" json:"is_banned"`
	Role     UserRole `gorm:"type:varchar(16);default:'USER'" json:"role"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsFresher reports membership in the semester-1 cohort. Everyone else,
// including users who have not finished onboarding, ranks in the senior pool.
func (u *User) IsFresher() bool {
	return u.Semester != nil && *u.Semester == 1
}

func (u *User) IsSenior() bool { return !u.IsFresher() }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
