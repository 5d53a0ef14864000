package services_test

import (
	"testing"

	"marathon-platform/models"
	"marathon-platform/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createApprovedSubmission(t *testing.T, db *gorm.DB, userID, challengeID string, points int) {
	t.Helper()
	sub := models.NewSubmission(userID, models.ChallengeTarget(challengeID))
	sub.Status = models.StatusApproved
	sub.AwardedPoints = points
	sub.AttemptCount = 1
	require.NoError(t, db.Create(sub).Error)
}

func TestRecomputeScoreRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	scoring := services.NewScoringService(db)

	user := createUser(t, db, "Drifted Dee", nil)
	chA := createChallenge(t, db, "Problem A", 100)
	chB := createChallenge(t, db, "Problem B", 100)
	chC := createChallenge(t, db, "Problem C", 100)

	createApprovedSubmission(t, db, user.ID, chA.ID, 50)
	createApprovedSubmission(t, db, user.ID, chB.ID, 70)

	// A rejected attempt contributes nothing regardless of its AI score.
	rejected := models.NewSubmission(user.ID, models.ChallengeTarget(chC.ID))
	rejected.Status = models.StatusRejected
	rejected.AIScore = 40
	rejected.AttemptCount = 2
	require.NoError(t, db.Create(rejected).Error)

	// Simulate drift from a bad manual edit.
	require.NoError(t, db.Model(user).Update("score", 999).Error)

	total, err := scoring.RecomputeScore(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	assert.Equal(t, 120, loadUser(t, db, user.ID).Score)

	// Running the repair again changes nothing.
	total, err = scoring.RecomputeScore(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, total)
}

func TestRecomputeAllScores(t *testing.T) {
	db := newTestDB(t)
	scoring := services.NewScoringService(db)

	alice := createUser(t, db, "Alice", nil)
	bob := createUser(t, db, "Bob", nil)
	ch := createChallenge(t, db, "Shared Problem", 100)

	createApprovedSubmission(t, db, alice.ID, ch.ID, 80)
	require.NoError(t, db.Model(alice).Update("score", 5).Error)
	require.NoError(t, db.Model(bob).Update("score", 77).Error)

	repaired, err := scoring.RecomputeAllScores()
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	assert.Equal(t, 80, loadUser(t, db, alice.ID).Score)
	assert.Equal(t, 0, loadUser(t, db, bob.ID).Score)
}

func TestRebuildRanksAndMovement(t *testing.T) {
	db := newTestDB(t)
	scoring := services.NewScoringService(db)

	first := createUser(t, db, "Leader", intPtr(1))
	second := createUser(t, db, "Chaser", intPtr(1))
	third := createUser(t, db, "Trailer", intPtr(1))
	require.NoError(t, db.Model(first).Update("score", 300).Error)
	require.NoError(t, db.Model(second).Update("score", 200).Error)
	require.NoError(t, db.Model(third).Update("score", 100).Error)

	require.NoError(t, scoring.RebuildRanks())

	assert.Equal(t, 1, loadUser(t, db, first.ID).LastRank)
	assert.Equal(t, 2, loadUser(t, db, second.ID).LastRank)
	assert.Equal(t, 3, loadUser(t, db, third.ID).LastRank)

	// Trailer overtakes everyone between snapshots.
	require.NoError(t, db.Model(third).Update("score", 500).Error)

	board, err := scoring.Leaderboard(true, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, third.ID, board[0].UserID)
	assert.Equal(t, 1, board[0].Position)
	assert.Equal(t, 3, board[0].LastRank)
	assert.Equal(t, 2, board[0].Movement)

	assert.Equal(t, first.ID, board[1].UserID)
	assert.Equal(t, -1, board[1].Movement)
}

func TestLeaderboardCohortSeparation(t *testing.T) {
	db := newTestDB(t)
	scoring := services.NewScoringService(db)

	fresher := createUser(t, db, "Fresher", intPtr(1))
	senior := createUser(t, db, "Senior", intPtr(5))
	unplaced := createUser(t, db, "Unplaced", nil)
	require.NoError(t, db.Model(fresher).Update("score", 10).Error)
	require.NoError(t, db.Model(senior).Update("score", 20).Error)
	require.NoError(t, db.Model(unplaced).Update("score", 30).Error)

	fresherBoard, err := scoring.Leaderboard(true, 0)
	require.NoError(t, err)
	require.Len(t, fresherBoard, 1)
	assert.Equal(t, fresher.ID, fresherBoard[0].UserID)

	// Users who skipped onboarding rank with the seniors.
	seniorBoard, err := scoring.Leaderboard(false, 0)
	require.NoError(t, err)
	require.Len(t, seniorBoard, 2)
	assert.Equal(t, unplaced.ID, seniorBoard[0].UserID)
	assert.Equal(t, senior.ID, seniorBoard[1].UserID)
}

func TestLeaderboardLimitAndNewUserMovement(t *testing.T) {
	db := newTestDB(t)
	scoring := services.NewScoringService(db)

	for i, name := range []string{"P1", "P2", "P3", "P4"} {
		u := createUser(t, db, name, intPtr(1))
		require.NoError(t, db.Model(u).Update("score", (4-i)*10).Error)
	}

	board, err := scoring.Leaderboard(true, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Position)
	assert.Equal(t, 2, board[1].Position)

	// No snapshot yet, so movement stays zero instead of faking a climb.
	assert.Equal(t, 0, board[0].LastRank)
	assert.Equal(t, 0, board[0].Movement)
}
