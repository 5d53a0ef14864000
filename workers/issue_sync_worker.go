// workers/issue_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"marathon-platform/models"
	"marathon-platform/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// githubIssue matches the subset of the GitHub list-issues payload we import.
type githubIssue struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	State       string `json:"state"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"` // present when the "issue" is actually a PR; skipped
}

// IssueSyncWorker periodically imports open issues from the configured
// repositories into the local issue board. The (repo_url, issue_number)
// unique key makes re-imports no-ops.
type IssueSyncWorker struct {
	db         *gorm.DB
	interval   time.Duration
	apiBase    string
	repos      []string // "owner/name" slugs
	token      string
	basePoints int
	httpClient *http.Client
}

func NewIssueSyncWorker(db *gorm.DB) *IssueSyncWorker {
	apiBase := os.Getenv("GITHUB_API_URL")
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}

	var repos []string
	for _, r := range strings.Split(os.Getenv("ISSUE_SOURCE_REPOS"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}

	basePoints := 100
	if v, err := strconv.Atoi(os.Getenv("ISSUE_BASE_POINTS")); err == nil && v > 0 {
		basePoints = v
	}

	return &IssueSyncWorker{
		db:         db,
		interval:   10 * time.Minute,
		apiBase:    apiBase,
		repos:      repos,
		token:      os.Getenv("GITHUB_TOKEN"),
		basePoints: basePoints,
		httpClient: utils.HTTPClient,
	}
}

func (w *IssueSyncWorker) Start(ctx context.Context) {
	if len(w.repos) == 0 {
		log.Println("⚠️  ISSUE_SOURCE_REPOS not set — issue import disabled")
		return
	}
	log.Printf("🔁 Starting Issue Sync Worker for %d repo(s)…", len(w.repos))

	w.syncOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.syncOnce(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Issue Sync Worker stopped")
			return
		}
	}
}

func (w *IssueSyncWorker) syncOnce(ctx context.Context) {
	for _, repo := range w.repos {
		if err := w.syncRepo(ctx, repo); err != nil {
			log.Printf("[ISSUE_SYNC] ❌ %s: %v", repo, err)
		}
	}
}

func (w *IssueSyncWorker) syncRepo(ctx context.Context, repo string) error {
	endpoint, err := url.Parse(fmt.Sprintf("%s/repos/%s/issues", w.apiBase, repo))
	if err != nil {
		return fmt.Errorf("invalid repo slug %q: %w", repo, err)
	}
	q := endpoint.Query()
	q.Set("state", "open")
	q.Set("per_page", "100")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GitHub returned %d: %s", resp.StatusCode, string(body))
	}

	var issues []githubIssue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return fmt.Errorf("failed to decode issue list: %w", err)
	}

	repoURL := "https://github.com/" + repo
	imported := 0
	for _, gh := range issues {
		if gh.PullRequest != nil {
			continue // the issues endpoint also lists PRs
		}
		issue := models.Issue{
			Title:       gh.Title,
			Description: gh.Body,
			RepoURL:     repoURL,
			IssueNumber: gh.Number,
			BasePoints:  w.basePoints,
			Status:      models.IssueOpen,
		}
		result := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo_url"}, {Name: "issue_number"}},
			DoNothing: true,
		}).Create(&issue)
		if result.Error != nil {
			log.Printf("[ISSUE_SYNC] ❌ failed to upsert %s#%d: %v", repo, gh.Number, result.Error)
			continue
		}
		imported += int(result.RowsAffected)
	}

	if imported > 0 {
		log.Printf("[ISSUE_SYNC] 📥 imported %d new issue(s) from %s", imported, repo)
	}
	return nil
}
