package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marathon-platform/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubServer(t *testing.T, handler http.HandlerFunc) *services.GitHubClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &services.GitHubClient{
		BaseURL: srv.URL,
		Token:   "gh-token",
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestFetchIssue(t *testing.T) {
	client := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/issues/42", r.URL.Path)
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"title":"Fix retry loop","body":"It spins forever.","state":"open"}`))
	})

	details, err := client.FetchIssue(context.Background(), "https://github.com/acme/widgets/issues/42")
	require.NoError(t, err)
	assert.Equal(t, "Fix retry loop", details.Title)
	assert.Equal(t, "It spins forever.", details.Description)
	assert.Equal(t, "https://github.com/acme/widgets", details.RepoURL)
	assert.Equal(t, 42, details.IssueNumber)
	assert.Equal(t, "open", details.State)
}

func TestFetchPRDetails(t *testing.T) {
	client := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/pulls/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"merged":true,"title":"Add backoff","body":"Fixes #42"}`))
	})

	details, err := client.FetchPRDetails(context.Background(), "https://github.com/acme/widgets/pull/7")
	require.NoError(t, err)
	assert.True(t, details.Merged)
	assert.Equal(t, "Add backoff", details.Title)
}

func TestFetchPRDiff(t *testing.T) {
	const diff = "diff --git a/retry.go b/retry.go\n+time.Sleep(backoff)\n"
	client := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3.diff", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(diff))
	})

	got, err := client.FetchPRDiff(context.Background(), "https://github.com/acme/widgets/pull/7")
	require.NoError(t, err)
	assert.Equal(t, diff, got)
}

func TestBadTrackerURLs(t *testing.T) {
	client := &services.GitHubClient{BaseURL: "http://unused.invalid", Client: http.DefaultClient}

	bad := []string{
		"https://github.com/acme/widgets",
		"https://github.com/acme/widgets/commits/7",
		"https://github.com/acme/widgets/pull/seven",
		"not a url at all",
	}
	for _, u := range bad {
		_, err := client.FetchPRDiff(context.Background(), u)
		assert.ErrorIs(t, err, services.ErrBadTrackerURL, u)
	}
}

func TestTrackerErrorStatus(t *testing.T) {
	client := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	_, err := client.FetchIssue(context.Background(), "https://github.com/acme/widgets/issues/404")
	require.Error(t, err)
}
