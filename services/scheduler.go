// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartMarathonScheduler runs the periodic jobs: the rank snapshot rebuild
// (what the leaderboard diffs against) and the hourly analytics warm-up.
func StartMarathonScheduler(scoring *ScoringService, analytics *AnalyticsService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 5 minutes: refresh last_rank snapshots per cohort
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			if err := scoring.RebuildRanks(); err != nil {
				log.Printf("[Scheduler] rank rebuild failed: %v", err)
				return
			}
			log.Println("✅ Rank snapshots rebuilt")
		}),
	)

	// Every hour: rebuild the analytics report so admin reads stay warm
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			analytics.Invalidate()
			if _, err := analytics.Report(); err != nil {
				log.Printf("[Scheduler] analytics refresh failed: %v", err)
			}
		}),
	)
}
