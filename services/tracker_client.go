// services/tracker_client.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"marathon-platform/utils"
)

var ErrBadTrackerURL = errors.New("unrecognized issue tracker URL")

// IssueDetails is what the import worker stores for an open-source issue.
type IssueDetails struct {
	Title       string
	Description string
	RepoURL     string
	IssueNumber int
	State       string
}

// PRDetails is the subset of pull-request metadata the grading flow needs.
type PRDetails struct {
	Merged bool
	Title  string
	Body   string
}

// TrackerClient is the issue-tracker contract the submission engine and the
// sync worker depend on.
type TrackerClient interface {
	FetchIssue(ctx context.Context, issueURL string) (*IssueDetails, error)
	FetchPRDiff(ctx context.Context, prURL string) (string, error)
	FetchPRDetails(ctx context.Context, prURL string) (*PRDetails, error)
}

// GitHubClient implements TrackerClient against the GitHub REST API. The token
// is optional; unauthenticated requests just hit lower rate limits.
type GitHubClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewGitHubClient() *GitHubClient {
	baseURL := os.Getenv("GITHUB_API_URL")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &GitHubClient{
		BaseURL: baseURL,
		Token:   os.Getenv("GITHUB_TOKEN"),
		Client:  utils.HTTPClient,
	}
}

// splitRepoRef turns https://github.com/{owner}/{repo}/(issues|pull)/{n} into
// its owner/repo/number parts.
func splitRepoRef(rawURL string) (owner, repo string, number int, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", ErrBadTrackerURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 {
		return "", "", 0, fmt.Errorf("%w: %s", ErrBadTrackerURL, rawURL)
	}
	kind := parts[2]
	if kind != "issues" && kind != "pull" {
		return "", "", 0, fmt.Errorf("%w: %s", ErrBadTrackerURL, rawURL)
	}
	number, err = strconv.Atoi(parts[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %s", ErrBadTrackerURL, rawURL)
	}
	return parts[0], parts[1], number, nil
}

func (c *GitHubClient) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracker request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker returned %d for %s", resp.StatusCode, path)
	}
	return body, nil
}

func (c *GitHubClient) FetchIssue(ctx context.Context, issueURL string) (*IssueDetails, error) {
	owner, repo, number, err := splitRepoRef(issueURL)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number), "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode issue payload: %w", err)
	}

	return &IssueDetails{
		Title:       payload.Title,
		Description: payload.Body,
		RepoURL:     fmt.Sprintf("https://github.com/%s/%s", owner, repo),
		IssueNumber: number,
		State:       payload.State,
	}, nil
}

func (c *GitHubClient) FetchPRDiff(ctx context.Context, prURL string) (string, error) {
	owner, repo, number, err := splitRepoRef(prURL)
	if err != nil {
		return "", err
	}
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), "application/vnd.github.v3.diff")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *GitHubClient) FetchPRDetails(ctx context.Context, prURL string) (*PRDetails, error) {
	owner, repo, number, err := splitRepoRef(prURL)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Merged bool   `json:"merged"`
		Title  string `json:"title"`
		Body   string `json:"body"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode pull request payload: %w", err)
	}
	return &PRDetails{Merged: payload.Merged, Title: payload.Title, Body: payload.Body}, nil
}
