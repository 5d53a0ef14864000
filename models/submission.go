package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	StatusPendingAI        SubmissionStatus = "PENDING_AI"
	StatusPendingModerator SubmissionStatus = "PENDING_MODERATOR"
	StatusApproved         SubmissionStatus = "APPROVED"
	StatusRejected         SubmissionStatus = "REJECTED"
)

const (
	// MaxAttempts is the number of graded tries per user per target before the
	// submission locks permanently.
	MaxAttempts = 3

	// MinAwardPoints is the floor of the judge's partial-credit range. An
	// approved submission is always worth at least this much.
	MinAwardPoints = 20

	// MergedPRBonus is added on top of an issue submission's award when the
	// pull request was already merged upstream.
	MergedPRBonus = 50
)

type TargetKind string

const (
	TargetChallenge TargetKind = "challenge"
	TargetIssue     TargetKind = "issue"
)

var ErrAmbiguousTarget = errors.New("submission must reference exactly one of challenge or issue")

// SubmissionTarget is the tagged form of the challenge-XOR-issue foreign key
// pair. All constructors go through it so a both-set or both-null row cannot
// be built in code; BeforeSave rejects one arriving any other way.
type SubmissionTarget struct {
	Kind TargetKind
	ID   string
}

func ChallengeTarget(id string) SubmissionTarget {
	return SubmissionTarget{Kind: TargetChallenge, ID: id}
}

func IssueTarget(id string) SubmissionTarget {
	return SubmissionTarget{Kind: TargetIssue, ID: id}
}

// Submission is the central mutable row. There is at most one active record
// per (user, target): resubmission updates it in place, never inserts a
// second row.
type Submission struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string  `gorm:"not null;index:idx_user_challenge,unique;index:idx_user_issue,unique" json:"user_id"`
	ChallengeID *string `gorm:"type:uuid;index:idx_user_challenge,unique;check:chk_submission_target,(challenge_id IS NULL) <> (issue_id IS NULL)" json:"challenge_id,omitempty"`
	IssueID     *string `gorm:"type:uuid;index:idx_user_issue,unique" json:"issue_id,omitempty"`

	Content string `gorm:"type:text" json:"content,omitempty"`
	PRURL   string `json:"pr_url,omitempty"`

	Status          SubmissionStatus `gorm:"type:varchar(24);not null;default:'PENDING_AI'" json:"status"`
	AIScore         int              `gorm:"default:0" json:"ai_score"`
	AIFeedback      string           `gorm:"type:text" json:"ai_feedback"`
	AwardedPoints   int              `gorm:"default:0" json:"awarded_points"`
	AttemptCount    int              `gorm:"default:0" json:"attempt_count"`
	LastSubmittedAt time.Time        `json:"last_submitted_at"`
	IsMerged        bool             `gorm:"default:false" json:"is_merged"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewSubmission builds an unsaved submission aimed at the given target.
func NewSubmission(userID string, target SubmissionTarget) *Submission {
	s := &Submission{UserID: userID, Status: StatusPendingAI}
	switch target.Kind {
	case TargetChallenge:
		id := target.ID
		s.ChallengeID = &id
	case TargetIssue:
		id := target.ID
		s.IssueID = &id
	}
	return s
}

// Target returns the tagged target, or ErrAmbiguousTarget when the row
// violates the XOR invariant.
func (s *Submission) Target() (SubmissionTarget, error) {
	switch {
	case s.ChallengeID != nil && s.IssueID == nil:
		return ChallengeTarget(*s.ChallengeID), nil
	case s.IssueID != nil && s.ChallengeID == nil:
		return IssueTarget(*s.IssueID), nil
	default:
		return SubmissionTarget{}, ErrAmbiguousTarget
	}
}

func (s *Submission) BeforeSave(tx *gorm.DB) error {
	_, err := s.Target()
	return err
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Locked is derived, never stored: the attempt cap was consumed without an
// approval, and the target is permanently closed for this user.
func (s *Submission) Locked() bool {
	return s.AttemptCount >= MaxAttempts && s.Status != StatusApproved
}

func (s *Submission) Solved() bool { return s.Status == StatusApproved }
