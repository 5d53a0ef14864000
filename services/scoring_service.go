// services/scoring_service.go
package services

import (
	"log"

	"marathon-platform/models"

	"gorm.io/gorm"
)

// ScoringService owns the two non-incremental score paths: the recompute
// repair job and the periodic rank snapshot.
type ScoringService struct {
	DB *gorm.DB
}

func NewScoringService(db *gorm.DB) *ScoringService {
	return &ScoringService{DB: db}
}

// RecomputeScore rebuilds one user's score from the source of truth: the sum
// of awarded points over their APPROVED submissions. It overwrites whatever
// drifted there and is idempotent by construction.
func (s *ScoringService) RecomputeScore(userID string) (int, error) {
	var total int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Submission{}).
			Where("user_id = ? AND status = ?", userID, models.StatusApproved).
			Select("COALESCE(SUM(awarded_points), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("score", total).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// RecomputeAllScores runs the repair over every user. Used after incidents
// and from the admin console.
func (s *ScoringService) RecomputeAllScores() (int, error) {
	var userIDs []string
	if err := s.DB.Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range userIDs {
		if _, err := s.RecomputeScore(id); err != nil {
			log.Printf("❌ [SCORING] recompute failed for user=%s: %v", id, err)
			continue
		}
		repaired++
	}
	log.Printf("🔧 [SCORING] recomputed scores for %d/%d users", repaired, len(userIDs))
	return repaired, nil
}

// RebuildRanks snapshots the current ordering into last_rank, independently
// for the fresher and senior cohorts. The snapshot is intentionally stale
// between runs: the leaderboard diffs it against the live ordering to show
// movement arrows.
func (s *ScoringService) RebuildRanks() error {
	if err := s.rebuildCohort(true); err != nil {
		return err
	}
	return s.rebuildCohort(false)
}

func (s *ScoringService) rebuildCohort(fresher bool) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		users, err := cohortByScore(tx, fresher)
		if err != nil {
			return err
		}
		for i, u := range users {
			rank := i + 1
			if u.LastRank == rank {
				continue
			}
			if err := tx.Model(&models.User{}).Where("id = ?", u.ID).
				Update("last_rank", rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LeaderboardEntry pairs the live position with the snapshot taken by the
// last rank rebuild. Movement > 0 means the user climbed since the snapshot.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	LastRank int    `json:"last_rank"`
	Movement int    `json:"movement"`
}

// Leaderboard computes the live ordering for one cohort on every read and
// diffs it against the stale last_rank snapshot.
func (s *ScoringService) Leaderboard(fresher bool, limit int) ([]LeaderboardEntry, error) {
	users, err := cohortByScore(s.DB, fresher)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		e := LeaderboardEntry{
			Position: i + 1,
			UserID:   u.ID,
			Name:     u.Name,
			Score:    u.Score,
			LastRank: u.LastRank,
		}
		if u.LastRank > 0 {
			e.Movement = u.LastRank - e.Position
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// cohortByScore fetches one cohort ordered by score descending, with the id
// as a deterministic tiebreak. Shared by the snapshot job and the live
// leaderboard read.
func cohortByScore(db *gorm.DB, fresher bool) ([]models.User, error) {
	q := db.Model(&models.User{})
	if fresher {
		q = q.Where("semester = 1")
	} else {
		q = q.Where("semester IS NULL OR semester <> 1")
	}

	var users []models.User
	err := q.Order("score DESC").Order("id ASC").Find(&users).Error
	return users, err
}
