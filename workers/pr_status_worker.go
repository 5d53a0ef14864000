// workers/pr_status_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"marathon-platform/models"
	"marathon-platform/services"

	"gorm.io/gorm"
)

// PollPRStatus keeps is_merged fresh for submissions sitting in the
// moderation queue, so a PR merged after submission still earns its bonus
// when a moderator approves it.
func PollPRStatus(ctx context.Context, db *gorm.DB, tracker services.TrackerClient, pollInterval time.Duration) {
	log.Println("Starting PR merge-status polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("PR status polling stopped.")
			return
		case <-ticker.C:
			updated := refreshMergeStatus(ctx, db, tracker)
			if updated > 0 {
				log.Printf("✅ Marked %d pending submission(s) as merged.", updated)
			}
		}
	}
}

func refreshMergeStatus(ctx context.Context, db *gorm.DB, tracker services.TrackerClient) int {
	var pending []models.Submission
	err := db.Where("status = ? AND issue_id IS NOT NULL AND is_merged = ?",
		models.StatusPendingModerator, false).
		Limit(50).
		Find(&pending).Error
	if err != nil {
		log.Printf("❌ Error loading pending PR submissions: %v", err)
		return 0
	}

	updated := 0
	for _, sub := range pending {
		details, err := tracker.FetchPRDetails(ctx, sub.PRURL)
		if err != nil {
			log.Printf("❌ PR status check failed for %s: %v", sub.PRURL, err)
			continue
		}
		if !details.Merged {
			continue
		}
		// Update through the loaded row: the save hooks validate the
		// challenge/issue target and refuse a bare Submission{}.
		if err := db.Model(&sub).Update("is_merged", true).Error; err != nil {
			log.Printf("❌ Failed to mark submission %s merged: %v", sub.ID, err)
			continue
		}
		updated++
	}
	return updated
}
