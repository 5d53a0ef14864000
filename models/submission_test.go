package models_test

import (
	"testing"

	"marathon-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewSubmissionTargets(t *testing.T) {
	t.Run("challenge target", func(t *testing.T) {
		sub := models.NewSubmission("user-1", models.ChallengeTarget("ch-1"))
		require.NotNil(t, sub.ChallengeID)
		assert.Equal(t, "ch-1", *sub.ChallengeID)
		assert.Nil(t, sub.IssueID)
		assert.Equal(t, models.StatusPendingAI, sub.Status)
	})

	t.Run("issue target", func(t *testing.T) {
		sub := models.NewSubmission("user-1", models.IssueTarget("iss-1"))
		require.NotNil(t, sub.IssueID)
		assert.Equal(t, "iss-1", *sub.IssueID)
		assert.Nil(t, sub.ChallengeID)
	})
}

func TestSubmissionTargetXOR(t *testing.T) {
	tests := []struct {
		name      string
		challenge *string
		issue     *string
		wantKind  models.TargetKind
		wantErr   bool
	}{
		{name: "challenge only", challenge: strPtr("ch-1"), wantKind: models.TargetChallenge},
		{name: "issue only", issue: strPtr("iss-1"), wantKind: models.TargetIssue},
		{name: "both set", challenge: strPtr("ch-1"), issue: strPtr("iss-1"), wantErr: true},
		{name: "neither set", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := models.Submission{UserID: "user-1", ChallengeID: tt.challenge, IssueID: tt.issue}
			target, err := sub.Target()
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrAmbiguousTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, target.Kind)
		})
	}
}

func TestSubmissionLockedIsDerived(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		status   models.SubmissionStatus
		locked   bool
	}{
		{name: "fresh", attempts: 0, status: models.StatusPendingAI, locked: false},
		{name: "one rejection left", attempts: 2, status: models.StatusRejected, locked: false},
		{name: "cap spent without approval", attempts: 3, status: models.StatusRejected, locked: true},
		{name: "over cap without approval", attempts: 4, status: models.StatusRejected, locked: true},
		{name: "approval on the last attempt", attempts: 3, status: models.StatusApproved, locked: false},
		{name: "pending moderator at cap", attempts: 3, status: models.StatusPendingModerator, locked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := models.Submission{AttemptCount: tt.attempts, Status: tt.status}
			assert.Equal(t, tt.locked, sub.Locked())
		})
	}
}

func TestSubmissionSolved(t *testing.T) {
	assert.True(t, (&models.Submission{Status: models.StatusApproved}).Solved())
	assert.False(t, (&models.Submission{Status: models.StatusRejected}).Solved())
	assert.False(t, (&models.Submission{Status: models.StatusPendingModerator}).Solved())
}

func TestUserCohorts(t *testing.T) {
	one := 1
	five := 5

	fresher := models.User{Semester: &one}
	senior := models.User{Semester: &five}
	unplaced := models.User{}

	assert.True(t, fresher.IsFresher())
	assert.False(t, fresher.IsSenior())
	assert.False(t, senior.IsFresher())
	assert.True(t, senior.IsSenior())
	assert.False(t, unplaced.IsFresher())
	assert.True(t, unplaced.IsSenior())
}
