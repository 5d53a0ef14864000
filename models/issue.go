package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IssueStatus string

const (
	IssueOpen   IssueStatus = "OPEN"
	IssueClosed IssueStatus = "CLOSED"
)

// Issue is an externally sourced open-source problem imported by the sync
// worker. (RepoURL, IssueNumber) is unique so repeated imports of the same
// repository cannot duplicate rows.
type Issue struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string      `gorm:"not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	RepoURL     string      `gorm:"not null;uniqueIndex:idx_repo_issue" json:"repo_url"`
	IssueNumber int         `gorm:"not null;uniqueIndex:idx_repo_issue" json:"issue_number"`
	BasePoints  int         `gorm:"not null" json:"base_points"`
	Status      IssueStatus `gorm:"type:varchar(16);default:'OPEN'" json:"status"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (i *Issue) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
