// services/submission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"marathon-platform/models"
	"marathon-platform/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinContentLength rejects trivially short or template-only submissions before
// any judge call is made.
const MinContentLength = 30

var (
	ErrUserBanned      = errors.New("user is banned from the marathon")
	ErrContentTooShort = fmt.Errorf("submission content is too short (minimum %d characters)", MinContentLength)
	ErrIssueClosed     = errors.New("issue is closed and no longer accepts submissions")
)

// RateLimitError is the policy gate after a rejection: not a failure of the
// operation, just "come back later". RetryAfter is what the UI counts down.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// LockedError is terminal for one target: the attempt cap is spent. The last
// judge feedback rides along so the UI can show it with the locked banner.
type LockedError struct {
	LastFeedback string
}

func (e *LockedError) Error() string { return "attempt limit reached, challenge is locked" }

// SubmitResult is the structured outcome of a submit call. AlreadySolved marks
// the idempotent no-op path, which callers do not treat as an error.
type SubmitResult struct {
	Status        models.SubmissionStatus `json:"status"`
	Feedback      string                  `json:"feedback"`
	AwardedPoints int                     `json:"awarded_points"`
	AttemptCount  int                     `json:"attempt_count"`
	AlreadySolved bool                    `json:"already_solved"`
}

// SubmissionService is the submission engine: it validates, rate-limits,
// dispatches to the AI judge and commits the verdict with exactly-once scoring
// per approval. The judge call happens outside any transaction so a timeout or
// malformed reply never consumes an attempt or touches persisted state.
type SubmissionService struct {
	DB        *gorm.DB
	Judge     Judge
	Tracker   TrackerClient
	Policy    *EventPolicy
	Analytics *AnalyticsService
}

func NewSubmissionService(db *gorm.DB, judge Judge, tracker TrackerClient, policy *EventPolicy, analytics *AnalyticsService) *SubmissionService {
	return &SubmissionService{DB: db, Judge: judge, Tracker: tracker, Policy: policy, Analytics: analytics}
}

// Submit runs the full challenge-track pipeline for one user and challenge.
//
// Guard order: ban, content length, already-solved, global rate limit,
// attempt cap. Only then is the judge called.
func (s *SubmissionService) Submit(ctx context.Context, userID, challengeID, content string) (*SubmitResult, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}

	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(content)) < MinContentLength {
		return nil, ErrContentTooShort
	}

	now := s.Policy.now()

	var existing models.Submission
	err := s.DB.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if found && existing.Solved() {
		return &SubmitResult{
			Status:        models.StatusApproved,
			Feedback:      existing.AIFeedback,
			AwardedPoints: existing.AwardedPoints,
			AttemptCount:  existing.AttemptCount,
			AlreadySolved: true,
		}, nil
	}

	if err := s.checkRateLimit(userID, now); err != nil {
		return nil, err
	}

	if found && existing.Locked() {
		return nil, &LockedError{LastFeedback: existing.AIFeedback}
	}

	verdict, err := s.Judge.Grade(ctx, GradeRequest{
		Title:       challenge.Title,
		Description: challenge.Description,
		MaxPoints:   challenge.Points,
		Content:     content,
	})
	if err != nil {
		// No state is mutated and no attempt is consumed on a judge failure.
		log.Printf("⚠️ [SUBMIT] judge failed for user=%s challenge=%s: %v", userID, challenge.Slug, err)
		return nil, err
	}

	go utils.ArchiveJudgeTranscript(
		fmt.Sprintf("transcripts/%s/%s/%d.json", userID, challengeID, now.UnixNano()),
		[]byte(verdict.Raw),
	)

	result, err := s.commitVerdict(&user, &challenge, content, verdict, now)
	if err != nil {
		return nil, err
	}

	s.invalidateAnalytics()
	return result, nil
}

// commitVerdict applies the judge's verdict as one atomic unit: submission
// upsert plus (on approval) the score increment. Both land or neither does.
func (s *SubmissionService) commitVerdict(user *models.User, challenge *models.Challenge, content string, verdict *Verdict, now time.Time) (*SubmitResult, error) {
	var result *SubmitResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND challenge_id = ?", user.ID, challenge.ID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = *models.NewSubmission(user.ID, models.ChallengeTarget(challenge.ID))
		} else if err != nil {
			return err
		}

		// Re-checked under the row lock: a concurrent duplicate request
		// that already won must not score twice, and a racing third rejection
		// must not let a fourth attempt through.
		if sub.Solved() {
			result = &SubmitResult{
				Status:        models.StatusApproved,
				Feedback:      sub.AIFeedback,
				AwardedPoints: sub.AwardedPoints,
				AttemptCount:  sub.AttemptCount,
				AlreadySolved: true,
			}
			return nil
		}
		if sub.Locked() {
			return &LockedError{LastFeedback: sub.AIFeedback}
		}

		sub.Content = content
		sub.AttemptCount++
		sub.LastSubmittedAt = now
		sub.AIScore = verdict.Score
		sub.AIFeedback = verdict.Feedback

		if verdict.Status == models.StatusApproved {
			awarded := clampAward(verdict.Score, challenge.Points)
			multiplier := s.Policy.PointsMultiplier(now, user.IsSenior())
			awarded = int(math.Round(float64(awarded) * multiplier))

			sub.Status = models.StatusApproved
			sub.AwardedPoints = awarded

			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("score", gorm.Expr("score + ?", awarded)).Error; err != nil {
				return err
			}
			log.Printf("🏆 [SUBMIT] APPROVED user=%s challenge=%s awarded=%d (ai=%d, x%.1f)",
				user.ID, challenge.Slug, awarded, verdict.Score, multiplier)
		} else {
			sub.Status = models.StatusRejected
			sub.AwardedPoints = 0
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
			log.Printf("❌ [SUBMIT] REJECTED user=%s challenge=%s attempt=%d/%d",
				user.ID, challenge.Slug, sub.AttemptCount, models.MaxAttempts)
		}

		result = &SubmitResult{
			Status:        sub.Status,
			Feedback:      sub.AIFeedback,
			AwardedPoints: sub.AwardedPoints,
			AttemptCount:  sub.AttemptCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitIssuePR runs the issue-track pipeline: the PR diff is fetched and
// AI-prescreened, then the submission parks as PENDING_MODERATOR for human
// review. No points move until a moderator decides.
func (s *SubmissionService) SubmitIssuePR(ctx context.Context, userID, issueID, prURL string) (*SubmitResult, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}

	var issue models.Issue
	if err := s.DB.First(&issue, "id = ?", issueID).Error; err != nil {
		return nil, err
	}
	if issue.Status == models.IssueClosed {
		return nil, ErrIssueClosed
	}

	now := s.Policy.now()

	var existing models.Submission
	err := s.DB.Where("user_id = ? AND issue_id = ?", userID, issueID).First(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if found && existing.Solved() {
		return &SubmitResult{
			Status:        models.StatusApproved,
			Feedback:      existing.AIFeedback,
			AwardedPoints: existing.AwardedPoints,
			AttemptCount:  existing.AttemptCount,
			AlreadySolved: true,
		}, nil
	}

	if err := s.checkRateLimit(userID, now); err != nil {
		return nil, err
	}
	if found && existing.Locked() {
		return nil, &LockedError{LastFeedback: existing.AIFeedback}
	}

	details, err := s.Tracker.FetchPRDetails(ctx, prURL)
	if err != nil {
		return nil, err
	}
	diff, err := s.Tracker.FetchPRDiff(ctx, prURL)
	if err != nil {
		return nil, err
	}

	verdict, err := s.Judge.Grade(ctx, GradeRequest{
		Title:       issue.Title,
		Description: issue.Description,
		MaxPoints:   issue.BasePoints,
		Content:     diff,
	})
	if err != nil {
		log.Printf("⚠️ [SUBMIT] judge failed for user=%s issue=%s#%d: %v", userID, issue.RepoURL, issue.IssueNumber, err)
		return nil, err
	}

	go utils.ArchiveJudgeTranscript(
		fmt.Sprintf("transcripts/%s/issue-%s/%d.json", userID, issueID, now.UnixNano()),
		[]byte(verdict.Raw),
	)

	var result *SubmitResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND issue_id = ?", userID, issueID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = *models.NewSubmission(userID, models.IssueTarget(issueID))
		} else if err != nil {
			return err
		}
		if sub.Solved() {
			result = &SubmitResult{Status: sub.Status, AwardedPoints: sub.AwardedPoints, AttemptCount: sub.AttemptCount, AlreadySolved: true}
			return nil
		}
		if sub.Locked() {
			return &LockedError{LastFeedback: sub.AIFeedback}
		}

		sub.PRURL = prURL
		sub.IsMerged = details.Merged
		sub.AttemptCount++
		sub.LastSubmittedAt = now
		sub.AIScore = verdict.Score
		sub.AIFeedback = verdict.Feedback
		sub.Status = models.StatusPendingModerator
		sub.AwardedPoints = 0

		if err := tx.Save(&sub).Error; err != nil {
			return err
		}

		result = &SubmitResult{
			Status:       sub.Status,
			Feedback:     sub.AIFeedback,
			AttemptCount: sub.AttemptCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📋 [SUBMIT] issue PR queued for moderation: user=%s issue=%s#%d merged=%t",
		userID, issue.RepoURL, issue.IssueNumber, details.Merged)
	s.invalidateAnalytics()
	return result, nil
}

// Moderate settles a PENDING_MODERATOR submission. Approval awards points
// through the same atomic commit as the AI path: clamp to the issue's point
// range, add the merged-PR bonus, and increment the user's score in the same
// transaction as the status flip.
func (s *SubmissionService) Moderate(submissionID string, approve bool, points int, feedback string) (*SubmitResult, error) {
	var result *SubmitResult

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "id = ?", submissionID).Error; err != nil {
			return err
		}
		if sub.Status != models.StatusPendingModerator {
			return fmt.Errorf("submission %s is not awaiting moderation (status=%s)", submissionID, sub.Status)
		}

		if feedback != "" {
			sub.AIFeedback = feedback
		}

		if approve {
			basePoints := 0
			if sub.IssueID != nil {
				var issue models.Issue
				if err := tx.First(&issue, "id = ?", *sub.IssueID).Error; err != nil {
					return err
				}
				basePoints = issue.BasePoints
			}

			if points <= 0 {
				points = sub.AIScore
			}
			awarded := clampAward(points, basePoints)
			if sub.IsMerged {
				awarded += models.MergedPRBonus
			}

			sub.Status = models.StatusApproved
			sub.AwardedPoints = awarded
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", sub.UserID).
				Update("score", gorm.Expr("score + ?", awarded)).Error; err != nil {
				return err
			}
			log.Printf("✅ [MODERATE] approved submission=%s awarded=%d merged_bonus=%t", sub.ID, awarded, sub.IsMerged)
		} else {
			sub.Status = models.StatusRejected
			sub.AwardedPoints = 0
			if err := tx.Save(&sub).Error; err != nil {
				return err
			}
			log.Printf("🚫 [MODERATE] rejected submission=%s", sub.ID)
		}

		result = &SubmitResult{
			Status:        sub.Status,
			Feedback:      sub.AIFeedback,
			AwardedPoints: sub.AwardedPoints,
			AttemptCount:  sub.AttemptCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAnalytics()
	return result, nil
}

// checkRateLimit enforces the global cooldown: the user's most recent REJECTED
// submission, across every target, opens a policy-sized wait window.
func (s *SubmissionService) checkRateLimit(userID string, now time.Time) error {
	var last models.Submission
	err := s.DB.Where("user_id = ? AND status = ?", userID, models.StatusRejected).
		Order("last_submitted_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	window := s.Policy.RateLimitWindow(now)
	elapsed := now.Sub(last.LastSubmittedAt)
	if elapsed < window {
		return &RateLimitError{RetryAfter: window - elapsed}
	}
	return nil
}

func (s *SubmissionService) invalidateAnalytics() {
	if s.Analytics != nil {
		s.Analytics.Invalidate()
	}
}

// clampAward keeps an approved award inside [MinAwardPoints, maxPoints]. A
// challenge worth less than the floor caps at its own value.
func clampAward(score, maxPoints int) int {
	floor := models.MinAwardPoints
	if maxPoints < floor {
		floor = maxPoints
	}
	if score < floor {
		return floor
	}
	if score > maxPoints {
		return maxPoints
	}
	return score
}
