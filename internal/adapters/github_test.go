package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
)

func testRetry() resilience.RetryConfig {
	config := resilience.DefaultRetryConfig()
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 2 * time.Millisecond
	return config
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fakeGitHub serves a user "octo" with seven repos; "repo-1" has no contents.
func fakeGitHub(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/octo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"login": "octo", "bio": nil, "public_repos": 7})
	})
	mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		repos := make([]map[string]interface{}, 0, 7)
		for i := 0; i < 7; i++ {
			repos = append(repos, map[string]interface{}{
				"name":       fmt.Sprintf("repo-%d", i),
				"fork":       i%2 == 0,
				"created_at": fmt.Sprintf("2021-0%d-01T00:00:00Z", i+1),
			})
		}
		writeJSON(w, repos)
	})
	mux.HandleFunc("/repos/octo/", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/repos/octo/"), "/")
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		repo, resource := parts[0], parts[1]
		assert.NotEqual(t, "repo-5", repo, "only sampled repos get details")
		assert.NotEqual(t, "repo-6", repo, "only sampled repos get details")

		switch resource {
		case "languages":
			writeJSON(w, map[string]int{"Go": 900, "Shell": 100})
		case "contents":
			if repo == "repo-1" {
				http.Error(w, `{"message":"This repository is empty."}`, http.StatusNotFound)
				return
			}
			writeJSON(w, []map[string]string{{"name": "README.md", "type": "file"}, {"name": "src", "type": "dir"}})
		case "commits":
			assert.Equal(t, "30", r.URL.Query().Get("per_page"))
			writeJSON(w, []map[string]interface{}{{"sha": "a", "commit": map[string]string{"message": "init"}}})
		case "pulls", "issues":
			assert.Equal(t, "all", r.URL.Query().Get("state"))
			writeJSON(w, []map[string]interface{}{})
		case "releases":
			writeJSON(w, []map[string]interface{}{{"tag_name": "v1.0.0"}})
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}

func TestGitHubAdapter_CollectSnapshot(t *testing.T) {
	var hits atomic.Int64
	srv := fakeGitHub(t, &hits)
	defer srv.Close()

	adapter := NewGitHubAdapter("", WithBaseURL(srv.URL), WithRetry(testRetry()))
	defer adapter.Close()

	snapshot, err := adapter.CollectSnapshot(context.Background(), "octo")
	require.NoError(t, err)

	assert.Equal(t, "octo", snapshot.User.Login)
	assert.Equal(t, "", snapshot.User.Bio)
	assert.Len(t, snapshot.Repos, 7)
	assert.Len(t, snapshot.RepoDetails, 5)
	assert.Equal(t, int64(5*6), hits.Load())

	empty := snapshot.RepoDetails["repo-1"]
	assert.Empty(t, empty.Contents)
	assert.NotNil(t, empty.Contents)

	full := snapshot.RepoDetails["repo-0"]
	assert.Equal(t, int64(900), full.Languages["Go"])
	assert.Equal(t, "init", full.Commits[0].Commit.Message)
	assert.True(t, full.Contents[1].IsDir())
	assert.Equal(t, "v1.0.0", full.Releases[0].TagName)
	assert.NotNil(t, full.Pulls)
}

func TestGitHubAdapter_Errors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		status      int
		rateLimited bool
		category    apperrors.ErrorCategory
	}{
		{
			name:     "user not found",
			handler:  func(w http.ResponseWriter, r *http.Request) { http.Error(w, "Not Found", http.StatusNotFound) },
			status:   http.StatusNotFound,
			category: apperrors.CategoryNotFound,
		},
		{
			name: "bad credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Bad credentials", http.StatusUnauthorized)
			},
			status:   http.StatusUnauthorized,
			category: apperrors.CategoryAuthentication,
		},
		{
			name: "rate limit exhausted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, "API rate limit exceeded", http.StatusForbidden)
			},
			status:      http.StatusForbidden,
			rateLimited: true,
			category:    apperrors.CategoryRateLimit,
		},
		{
			name:     "forbidden without rate limit",
			handler:  func(w http.ResponseWriter, r *http.Request) { http.Error(w, "forbidden", http.StatusForbidden) },
			status:   http.StatusForbidden,
			category: apperrors.CategoryExternalAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			adapter := NewGitHubAdapter("", WithBaseURL(srv.URL), WithRetry(testRetry()))
			_, err := adapter.CollectSnapshot(context.Background(), "ghost")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.rateLimited, apiErr.RateLimited())
			assert.Equal(t, tt.category, apperrors.ToAppError(err).Category)
		})
	}
}

func TestGitHubAdapter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]string{"login": "octo"})
	}))
	defer srv.Close()

	adapter := NewGitHubAdapter("", WithBaseURL(srv.URL), WithRetry(testRetry()))
	user, err := adapter.FetchUser(context.Background(), "octo")

	require.NoError(t, err)
	assert.Equal(t, "octo", user.Login)
	assert.Equal(t, int64(3), calls.Load())
}

func TestGitHubAdapter_ClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"empty repository", http.StatusConflict},
		{"forbidden", http.StatusForbidden},
		{"unprocessable", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("X-RateLimit-Remaining", "42")
				http.Error(w, `{"message":"nope"}`, tt.status)
			}))
			defer srv.Close()

			adapter := NewGitHubAdapter("", WithBaseURL(srv.URL), WithRetry(testRetry()))
			commits, err := adapter.FetchCommits(context.Background(), "octo", "api")
			if tt.status == http.StatusConflict {
				require.NoError(t, err)
				assert.Empty(t, commits)
			} else {
				require.Error(t, err)
			}
			assert.Equal(t, int64(1), calls.Load())
		})
	}
}

func TestGitHubAdapter_WithToken(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		writeJSON(w, map[string]string{"login": "octo"})
	}))
	defer srv.Close()

	base := NewGitHubAdapter("server-token", WithBaseURL(srv.URL), WithRetry(testRetry()))

	_, err := base.FetchUser(context.Background(), "octo")
	require.NoError(t, err)
	assert.Equal(t, "Bearer server-token", seen.Load())

	override := base.WithToken("caller-token")
	_, err = override.FetchUser(context.Background(), "octo")
	require.NoError(t, err)
	assert.Equal(t, "Bearer caller-token", seen.Load())

	assert.Same(t, base, base.WithToken(""))
	assert.Equal(t, "server-token", base.token)
}
