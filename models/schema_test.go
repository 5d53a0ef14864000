package models_test

import (
	"path/filepath"
	"testing"

	"marathon-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The schema must migrate on sqlite as well as postgres: IDs are generated in
// BeforeCreate hooks, never by database-side defaults.
func TestSchemaMigratesOnSqlite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "schema.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Issue{},
		&models.Submission{},
	))

	user := &models.User{Email: "gen@campus.test", Name: "Generated"}
	require.NoError(t, db.Create(user).Error)
	assert.NotEmpty(t, user.ID)

	ch := &models.Challenge{Title: "Generated Problem", Slug: "generated-problem", Points: 100}
	require.NoError(t, db.Create(ch).Error)
	assert.NotEmpty(t, ch.ID)

	iss := &models.Issue{Title: "Generated Issue", RepoURL: "https://github.com/acme/widgets", IssueNumber: 1, BasePoints: 100}
	require.NoError(t, db.Create(iss).Error)
	assert.NotEmpty(t, iss.ID)

	sub := models.NewSubmission(user.ID, models.ChallengeTarget(ch.ID))
	require.NoError(t, db.Create(sub).Error)
	assert.NotEmpty(t, sub.ID)

	// A caller-chosen ID is kept as-is.
	explicit := &models.User{ID: "11111111-1111-1111-1111-111111111111", Email: "fixed@campus.test", Name: "Fixed"}
	require.NoError(t, db.Create(explicit).Error)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", explicit.ID)
}
