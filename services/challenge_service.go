// services/challenge_service.go
package services

import (
	"errors"

	"marathon-platform/models"

	"gorm.io/gorm"
)

// ChallengeService serves the read side of the challenge and issue catalogs,
// decorated with the caller's own submission state so the UI can render
// solved/locked/attempts-left without extra round trips.
type ChallengeService struct {
	DB *gorm.DB
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db}
}

// ChallengeView is a Challenge plus the viewer's progress against it.
type ChallengeView struct {
	models.Challenge
	Solved        bool `json:"solved"`
	Locked        bool `json:"locked"`
	AttemptCount  int  `json:"attempt_count"`
	AwardedPoints int  `json:"awarded_points"`
}

// ListForUser returns every challenge decorated with the viewer's state.
func (s *ChallengeService) ListForUser(userID string) ([]ChallengeView, error) {
	var challenges []models.Challenge
	if err := s.DB.Order("points ASC").Order("title ASC").Find(&challenges).Error; err != nil {
		return nil, err
	}

	var subs []models.Submission
	if err := s.DB.Where("user_id = ? AND challenge_id IS NOT NULL", userID).Find(&subs).Error; err != nil {
		return nil, err
	}
	byChallenge := make(map[string]models.Submission, len(subs))
	for _, sub := range subs {
		byChallenge[*sub.ChallengeID] = sub
	}

	views := make([]ChallengeView, 0, len(challenges))
	for _, ch := range challenges {
		v := ChallengeView{Challenge: ch}
		if sub, ok := byChallenge[ch.ID]; ok {
			v.Solved = sub.Solved()
			v.Locked = sub.Locked()
			v.AttemptCount = sub.AttemptCount
			v.AwardedPoints = sub.AwardedPoints
		}
		views = append(views, v)
	}
	return views, nil
}

// GetBySlug returns a single decorated challenge.
func (s *ChallengeService) GetBySlug(slug, userID string) (*ChallengeView, error) {
	var ch models.Challenge
	if err := s.DB.First(&ch, "slug = ?", slug).Error; err != nil {
		return nil, err
	}

	v := &ChallengeView{Challenge: ch}
	var sub models.Submission
	err := s.DB.Where("user_id = ? AND challenge_id = ?", userID, ch.ID).First(&sub).Error
	if err == nil {
		v.Solved = sub.Solved()
		v.Locked = sub.Locked()
		v.AttemptCount = sub.AttemptCount
		v.AwardedPoints = sub.AwardedPoints
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return v, nil
}

// ListOpenIssues returns the importable-issue board, open issues first.
func (s *ChallengeService) ListOpenIssues() ([]models.Issue, error) {
	var issues []models.Issue
	err := s.DB.Order("status ASC").Order("base_points DESC").Find(&issues).Error
	return issues, err
}
