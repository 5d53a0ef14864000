package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"marathon-platform/models"
	"marathon-platform/services"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// validContent clears the minimum-length gate without meaning anything.
const validContent = `func solve(input string) string { return strings.ToUpper(input) }`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "marathon.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Issue{},
		&models.Submission{},
	))
	return db
}

func intPtr(n int) *int { return &n }

func createUser(t *testing.T, db *gorm.DB, name string, semester *int) *models.User {
	t.Helper()
	u := &models.User{
		ID:       uuid.NewString(),
		Email:    fmt.Sprintf("%s@campus.test", slug.Make(name)),
		Name:     name,
		Semester: semester,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createChallenge(t *testing.T, db *gorm.DB, title string, points int) *models.Challenge {
	t.Helper()
	ch := &models.Challenge{
		Title:  title,
		Slug:   slug.Make(title),
		Points: points,
	}
	require.NoError(t, db.Create(ch).Error)
	return ch
}

func createIssue(t *testing.T, db *gorm.DB, title string, basePoints int, number int, status models.IssueStatus) *models.Issue {
	t.Helper()
	iss := &models.Issue{
		Title:       title,
		RepoURL:     "https://github.com/acme/widgets",
		IssueNumber: number,
		BasePoints:  basePoints,
		Status:      status,
	}
	require.NoError(t, db.Create(iss).Error)
	return iss
}

func loadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return &u
}

func loadSubmissions(t *testing.T, db *gorm.DB, userID string) []models.Submission {
	t.Helper()
	var subs []models.Submission
	require.NoError(t, db.Where("user_id = ?", userID).Find(&subs).Error)
	return subs
}

// fakeJudge lets each test script the verdict and count how often the engine
// actually called out.
type fakeJudge struct {
	mu    sync.Mutex
	calls int
	grade func(req services.GradeRequest) (*services.Verdict, error)
}

func (f *fakeJudge) Grade(_ context.Context, req services.GradeRequest) (*services.Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.grade(req)
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func verdictJudge(status models.SubmissionStatus, score int, feedback string) *fakeJudge {
	return &fakeJudge{grade: func(services.GradeRequest) (*services.Verdict, error) {
		return &services.Verdict{Status: status, Score: score, Feedback: feedback, Raw: "{}"}, nil
	}}
}

func failingJudge(err error) *fakeJudge {
	return &fakeJudge{grade: func(services.GradeRequest) (*services.Verdict, error) {
		return nil, err
	}}
}

type fakeTracker struct {
	details *services.PRDetails
	diff    string
	err     error
}

func (f *fakeTracker) FetchIssue(context.Context, string) (*services.IssueDetails, error) {
	return nil, f.err
}

func (f *fakeTracker) FetchPRDiff(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.diff, nil
}

func (f *fakeTracker) FetchPRDetails(context.Context, string) (*services.PRDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

// testClock pins the policy clock so rate-limit windows and frenzy hours are
// deterministic.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func testPolicy(clk *testClock) *services.EventPolicy {
	return &services.EventPolicy{
		BaseWindow:        5 * time.Minute,
		FrenzyWindow:      2 * time.Minute,
		FrenzyStartHour:   20,
		FrenzyEndHour:     22,
		FresherMultiplier: 2.0,
		SeniorMultiplier:  1.5,
		Now:               clk.Now,
	}
}

// quietHour is a reference instant well outside the frenzy window.
var quietHour = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// frenzyHour falls inside the 20:00-22:00 boost window.
var frenzyHour = time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, db *gorm.DB, judge services.Judge, tracker services.TrackerClient, clk *testClock) *services.SubmissionService {
	t.Helper()
	return services.NewSubmissionService(db, judge, tracker, testPolicy(clk), services.NewAnalyticsService(db))
}
