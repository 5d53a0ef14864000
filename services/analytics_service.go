// services/analytics_service.go
package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"marathon-platform/models"

	"gorm.io/gorm"
)

const (
	// integrityMinGap is the consecutive-approval gap below which a user is
	// flagged outright.
	integrityMinGap = 30 * time.Second

	// integrityHighScore + integrityTightGap flag users who combine a big
	// score with unusually fast approvals. A heuristic, not proof of cheating.
	integrityHighScore = 500
	integrityTightGap  = 2 * time.Minute

	integrityTopN = 10

	reliabilitySampleSize = 500
)

// AnalyticsService computes the derived post-event statistics by rescanning
// the submission and user tables. Every method is a pure read; the assembled
// report is cached in-process for a bounded interval and invalidated whenever
// a submission commit lands.
type AnalyticsService struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	cached   *Report
	cachedAt time.Time
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db, TTL: time.Hour, Now: time.Now}
}

type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	EventHealth     EventHealth      `json:"event_health"`
	TimeBehavior    TimeBehavior     `json:"time_behavior"`
	Funnel          []FunnelStage    `json:"funnel"`
	ProblemStats    []ProblemStat    `json:"problem_stats"`
	DifficultyCurve DifficultyCurve  `json:"difficulty_curve"`
	IntegrityAudit  []IntegrityFlag  `json:"integrity_audit"`
	Retention       Retention        `json:"retention"`
	RewardStats     RewardStats      `json:"reward_stats"`
	Reliability     Reliability      `json:"reliability"`
	Cohorts         CohortComparison `json:"cohorts"`
}

// Report returns the cached report when it is fresh enough, otherwise
// recomputes everything in one pass.
func (s *AnalyticsService) Report() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	if s.cached != nil && now.Sub(s.cachedAt) < s.TTL {
		return s.cached, nil
	}

	r, err := s.build(now)
	if err != nil {
		return nil, err
	}
	s.cached = r
	s.cachedAt = now
	return r, nil
}

// Invalidate drops the cached report so the next read recomputes.
func (s *AnalyticsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *AnalyticsService) build(now time.Time) (*Report, error) {
	r := &Report{GeneratedAt: now}
	var err error

	if r.EventHealth, err = s.EventHealth(); err != nil {
		return nil, err
	}
	if r.TimeBehavior, err = s.TimeBehavior(); err != nil {
		return nil, err
	}
	if r.Funnel, err = s.Funnel(); err != nil {
		return nil, err
	}
	if r.ProblemStats, err = s.ProblemPostMortem(); err != nil {
		return nil, err
	}
	if r.DifficultyCurve, err = s.DifficultyCurve(); err != nil {
		return nil, err
	}
	if r.IntegrityAudit, err = s.IntegrityAudit(); err != nil {
		return nil, err
	}
	if r.Retention, err = s.Retention(); err != nil {
		return nil, err
	}
	if r.RewardStats, err = s.RewardStats(); err != nil {
		return nil, err
	}
	if r.Reliability, err = s.Reliability(); err != nil {
		return nil, err
	}
	if r.Cohorts, err = s.CohortComparison(); err != nil {
		return nil, err
	}

	log.Printf("📊 [ANALYTICS] report rebuilt (users=%d, active=%d)",
		r.EventHealth.TotalUsers, r.EventHealth.ActiveUsers)
	return r, nil
}

// --- Event health ---

type EventHealth struct {
	TotalUsers         int64   `json:"total_users"`
	ActiveUsers        int64   `json:"active_users"`
	ParticipationRate  float64 `json:"participation_rate"`
	AvgSolvedPerActive float64 `json:"avg_solved_per_active"`
}

func (s *AnalyticsService) EventHealth() (EventHealth, error) {
	var h EventHealth

	if err := s.DB.Model(&models.User{}).Count(&h.TotalUsers).Error; err != nil {
		return h, err
	}
	if err := s.DB.Model(&models.Submission{}).Distinct("user_id").Count(&h.ActiveUsers).Error; err != nil {
		return h, err
	}

	var approvedCount int64
	if err := s.DB.Model(&models.Submission{}).
		Where("status = ?", models.StatusApproved).
		Count(&approvedCount).Error; err != nil {
		return h, err
	}

	if h.TotalUsers > 0 {
		h.ParticipationRate = float64(h.ActiveUsers) / float64(h.TotalUsers)
	}
	if h.ActiveUsers > 0 {
		h.AvgSolvedPerActive = float64(approvedCount) / float64(h.ActiveUsers)
	}
	return h, nil
}

// --- Time behavior ---

type HourBucket struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

type TimeBehavior struct {
	Buckets []HourBucket `json:"buckets"`
	// Pattern is "procrastination" when more than half of all submissions fall
	// in the final quarter of the observed hour buckets, "early_burst" for the
	// mirror case, otherwise "steady".
	Pattern string `json:"pattern"`
}

func (s *AnalyticsService) TimeBehavior() (TimeBehavior, error) {
	var subs []models.Submission
	if err := s.DB.Select("last_submitted_at").Find(&subs).Error; err != nil {
		return TimeBehavior{}, err
	}

	counts := make(map[time.Time]int)
	total := 0
	for _, sub := range subs {
		if sub.LastSubmittedAt.IsZero() {
			continue
		}
		counts[sub.LastSubmittedAt.Truncate(time.Hour)]++
		total++
	}

	hours := make([]time.Time, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	tb := TimeBehavior{Pattern: "steady"}
	for _, h := range hours {
		tb.Buckets = append(tb.Buckets, HourBucket{Hour: h, Count: counts[h]})
	}

	if len(hours) == 0 || total == 0 {
		return tb, nil
	}

	quarter := (len(hours) + 3) / 4
	lastQuarter, firstQuarter := 0, 0
	for i, h := range hours {
		if i < quarter {
			firstQuarter += counts[h]
		}
		if i >= len(hours)-quarter {
			lastQuarter += counts[h]
		}
	}

	if float64(lastQuarter)/float64(total) > 0.5 {
		tb.Pattern = "procrastination"
	} else if float64(firstQuarter)/float64(total) > 0.5 {
		tb.Pattern = "early_burst"
	}
	return tb, nil
}

// --- Funnel ---

type FunnelStage struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Funnel builds the strictly ordered participation pipeline. Each stage is a
// subset of the previous one, so counts are monotonically non-increasing.
func (s *AnalyticsService) Funnel() ([]FunnelStage, error) {
	var registered int64
	if err := s.DB.Model(&models.User{}).Count(&registered).Error; err != nil {
		return nil, err
	}
	var submitted int64
	if err := s.DB.Model(&models.Submission{}).Distinct("user_id").Count(&submitted).Error; err != nil {
		return nil, err
	}

	solvedPerUser, err := s.approvedCountsByUser()
	if err != nil {
		return nil, err
	}

	var totalChallenges int64
	if err := s.DB.Model(&models.Challenge{}).Count(&totalChallenges).Error; err != nil {
		return nil, err
	}
	// At least 2, so the stage stays a subset of "solved >= 2" even for tiny
	// challenge sets.
	halfThreshold := int((totalChallenges + 1) / 2)
	if halfThreshold < 2 {
		halfThreshold = 2
	}

	var approved, solvedTwo, solvedHalf int64
	for _, n := range solvedPerUser {
		approved++
		if n >= 2 {
			solvedTwo++
		}
		if n >= halfThreshold {
			solvedHalf++
		}
	}

	return []FunnelStage{
		{Name: "registered", Count: registered},
		{Name: "submitted", Count: submitted},
		{Name: "first_approval", Count: approved},
		{Name: "solved_two_plus", Count: solvedTwo},
		{Name: "solved_half", Count: solvedHalf},
	}, nil
}

// --- Problem post-mortem ---

type ProblemStat struct {
	ChallengeID    string  `json:"challenge_id"`
	Title          string  `json:"title"`
	AttemptedUsers int     `json:"attempted_users"`
	SolvedUsers    int     `json:"solved_users"`
	SolveRate      float64 `json:"solve_rate"`
	Killer         bool    `json:"killer"`
}

// ProblemPostMortem flags "killer problems": heavily attempted challenges
// almost nobody solved (solve rate under 10% with more than 5 attempters).
func (s *AnalyticsService) ProblemPostMortem() ([]ProblemStat, error) {
	var challenges []models.Challenge
	if err := s.DB.Find(&challenges).Error; err != nil {
		return nil, err
	}
	var subs []models.Submission
	if err := s.DB.Where("challenge_id IS NOT NULL").Find(&subs).Error; err != nil {
		return nil, err
	}

	attempted := make(map[string]map[string]bool)
	solved := make(map[string]map[string]bool)
	for _, sub := range subs {
		cid := *sub.ChallengeID
		if attempted[cid] == nil {
			attempted[cid] = make(map[string]bool)
		}
		attempted[cid][sub.UserID] = true
		if sub.Status == models.StatusApproved {
			if solved[cid] == nil {
				solved[cid] = make(map[string]bool)
			}
			solved[cid][sub.UserID] = true
		}
	}

	stats := make([]ProblemStat, 0, len(challenges))
	for _, ch := range challenges {
		st := ProblemStat{
			ChallengeID:    ch.ID,
			Title:          ch.Title,
			AttemptedUsers: len(attempted[ch.ID]),
			SolvedUsers:    len(solved[ch.ID]),
		}
		if st.AttemptedUsers > 0 {
			st.SolveRate = float64(st.SolvedUsers) / float64(st.AttemptedUsers)
		}
		st.Killer = st.SolveRate < 0.10 && st.AttemptedUsers > 5
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].SolveRate < stats[j].SolveRate })
	return stats, nil
}

// --- Difficulty curve ---

type DifficultyCurve struct {
	// Histogram maps "distinct challenges solved" to "users at that count".
	Histogram map[int]int `json:"histogram"`
	// Wall is the solved-count past the trivial first solve where the most
	// users are parked, i.e. where the field stalled. 0 when nobody got past
	// one solve.
	Wall int `json:"wall"`
}

func (s *AnalyticsService) DifficultyCurve() (DifficultyCurve, error) {
	solvedPerUser, err := s.approvedChallengeCountsByUser()
	if err != nil {
		return DifficultyCurve{}, err
	}

	curve := DifficultyCurve{Histogram: make(map[int]int)}
	for _, n := range solvedPerUser {
		curve.Histogram[n]++
	}

	best := 0
	for bucket, users := range curve.Histogram {
		if bucket <= 1 {
			continue
		}
		if users > best || (users == best && bucket < curve.Wall) {
			best = users
			curve.Wall = bucket
		}
	}
	return curve, nil
}

// --- Leaderboard integrity audit ---

type IntegrityFlag struct {
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	Score         int     `json:"score"`
	Approvals     int     `json:"approvals"`
	MinGapSeconds float64 `json:"min_gap_seconds"`
	Suspicious    bool    `json:"suspicious"`
	Reason        string  `json:"reason,omitempty"`
}

// IntegrityAudit inspects the top scorers for implausibly fast consecutive
// approvals. It is an anomaly heuristic for moderators, not a verdict.
func (s *AnalyticsService) IntegrityAudit() ([]IntegrityFlag, error) {
	var top []models.User
	if err := s.DB.Order("score DESC").Order("id ASC").Limit(integrityTopN).Find(&top).Error; err != nil {
		return nil, err
	}

	flags := make([]IntegrityFlag, 0, len(top))
	for _, u := range top {
		var approvals []models.Submission
		if err := s.DB.Where("user_id = ? AND status = ?", u.ID, models.StatusApproved).
			Order("updated_at ASC").
			Find(&approvals).Error; err != nil {
			return nil, err
		}

		flag := IntegrityFlag{UserID: u.ID, Name: u.Name, Score: u.Score, Approvals: len(approvals), MinGapSeconds: -1}

		var minGap time.Duration
		for i := 1; i < len(approvals); i++ {
			gap := approvals[i].UpdatedAt.Sub(approvals[i-1].UpdatedAt)
			if i == 1 || gap < minGap {
				minGap = gap
			}
		}
		if len(approvals) > 1 {
			flag.MinGapSeconds = minGap.Seconds()
			if minGap < integrityMinGap {
				flag.Suspicious = true
				flag.Reason = "consecutive approvals under 30s apart"
			} else if u.Score >= integrityHighScore && minGap < integrityTightGap {
				flag.Suspicious = true
				flag.Reason = "high score with unusually small approval gap"
			}
		}
		flags = append(flags, flag)
	}
	return flags, nil
}

// --- Retention ---

type Retention struct {
	OneAndDone int `json:"one_and_done"` // exactly one solved challenge
	Casual     int `json:"casual"`       // two to four
	PowerUsers int `json:"power_users"`  // five or more
}

func (s *AnalyticsService) Retention() (Retention, error) {
	solvedPerUser, err := s.approvedChallengeCountsByUser()
	if err != nil {
		return Retention{}, err
	}

	var r Retention
	total := 0
	for _, n := range solvedPerUser {
		total++
		switch {
		case n == 1:
			r.OneAndDone++
		case n >= 5:
			r.PowerUsers++
		}
	}
	r.Casual = total - r.OneAndDone - r.PowerUsers
	return r, nil
}

// --- Reward economics ---

type RewardStats struct {
	TotalScore       int     `json:"total_score"`
	Top5PercentShare float64 `json:"top_5_percent_share"` // percent of all points held by the top 5% of scorers
}

func (s *AnalyticsService) RewardStats() (RewardStats, error) {
	var users []models.User
	if err := s.DB.Order("score DESC").Order("id ASC").Find(&users).Error; err != nil {
		return RewardStats{}, err
	}

	var stats RewardStats
	for _, u := range users {
		stats.TotalScore += u.Score
	}
	if len(users) == 0 || stats.TotalScore == 0 {
		return stats, nil
	}

	topN := len(users) * 5 / 100
	if topN < 1 {
		topN = 1
	}
	topSum := 0
	for _, u := range users[:topN] {
		topSum += u.Score
	}
	stats.Top5PercentShare = float64(topSum) / float64(stats.TotalScore) * 100
	return stats, nil
}

// --- System reliability ---

type Reliability struct {
	SampleSize   int     `json:"sample_size"`
	AvgLatencyMs float64 `json:"avg_latency_ms"` // judge-latency proxy: mean(updated_at - created_at)
}

func (s *AnalyticsService) Reliability() (Reliability, error) {
	var subs []models.Submission
	if err := s.DB.
		Where("status NOT IN ?", []models.SubmissionStatus{models.StatusPendingAI, models.StatusPendingModerator}).
		Order("updated_at DESC").
		Limit(reliabilitySampleSize).
		Find(&subs).Error; err != nil {
		return Reliability{}, err
	}

	var rel Reliability
	rel.SampleSize = len(subs)
	if rel.SampleSize == 0 {
		return rel, nil
	}

	var totalMs float64
	for _, sub := range subs {
		totalMs += float64(sub.UpdatedAt.Sub(sub.CreatedAt).Milliseconds())
	}
	rel.AvgLatencyMs = totalMs / float64(rel.SampleSize)
	return rel, nil
}

// --- Cohort comparison ---

type CohortStats struct {
	Users    int64   `json:"users"`
	AvgScore float64 `json:"avg_score"`
}

type CohortComparison struct {
	Freshers CohortStats `json:"freshers"`
	Seniors  CohortStats `json:"seniors"`
}

func (s *AnalyticsService) CohortComparison() (CohortComparison, error) {
	var users []models.User
	if err := s.DB.Find(&users).Error; err != nil {
		return CohortComparison{}, err
	}

	var cmp CohortComparison
	var fresherTotal, seniorTotal int
	for _, u := range users {
		if u.IsFresher() {
			cmp.Freshers.Users++
			fresherTotal += u.Score
		} else {
			cmp.Seniors.Users++
			seniorTotal += u.Score
		}
	}
	if cmp.Freshers.Users > 0 {
		cmp.Freshers.AvgScore = float64(fresherTotal) / float64(cmp.Freshers.Users)
	}
	if cmp.Seniors.Users > 0 {
		cmp.Seniors.AvgScore = float64(seniorTotal) / float64(cmp.Seniors.Users)
	}
	return cmp, nil
}

// --- shared helpers ---

// approvedCountsByUser maps user id to total approved submissions (any target).
func (s *AnalyticsService) approvedCountsByUser() (map[string]int, error) {
	var subs []models.Submission
	if err := s.DB.Where("status = ?", models.StatusApproved).Find(&subs).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, sub := range subs {
		counts[sub.UserID]++
	}
	return counts, nil
}

// approvedChallengeCountsByUser maps user id to distinct solved challenges,
// issue-track approvals excluded.
func (s *AnalyticsService) approvedChallengeCountsByUser() (map[string]int, error) {
	var subs []models.Submission
	if err := s.DB.
		Where("status = ? AND challenge_id IS NOT NULL", models.StatusApproved).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, sub := range subs {
		counts[sub.UserID]++
	}
	return counts, nil
}
