package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
)

const (
	DefaultGitHubAPIURL = "https://api.github.com"

	githubUserAgent = "SignalMatrix/1.0"
	repoPageSize    = 100
	listPageSize    = 30
	maxErrorBody    = 2048
)

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
	// RateLimit is set for 403 responses with X-RateLimit-Remaining: 0 and for 429s.
	RateLimit bool
}

func (e *APIError) Error() string {
	if e.RateLimit {
		return fmt.Sprintf("github API rate limit exceeded (status %d) for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("github API error: status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *APIError) HTTPStatus() int   { return e.StatusCode }
func (e *APIError) Service() string   { return "GitHub" }
func (e *APIError) RateLimited() bool { return e.RateLimit }

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// GitHubAdapter collects signal snapshots from the GitHub REST API.
type GitHubAdapter struct {
	baseURL string
	token   string
	pool    *resilience.ConnectionPool
	retry   resilience.RetryConfig
}

// Option configures a GitHubAdapter.
type Option func(*GitHubAdapter)

// WithBaseURL points the adapter at a different API root, e.g. GitHub Enterprise or a test server.
func WithBaseURL(baseURL string) Option {
	return func(g *GitHubAdapter) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithPool(pool *resilience.ConnectionPool) Option {
	return func(g *GitHubAdapter) { g.pool = pool }
}

func WithRetry(config resilience.RetryConfig) Option {
	return func(g *GitHubAdapter) { g.retry = config }
}

// NewGitHubAdapter creates a GitHub adapter with connection pooling
func NewGitHubAdapter(token string, opts ...Option) *GitHubAdapter {
	g := &GitHubAdapter{
		baseURL: DefaultGitHubAPIURL,
		token:   token,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.pool == nil {
		cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "github",
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		})
		g.pool = resilience.NewConnectionPool(resilience.PoolConfig{
			Name:           "github",
			MaxActive:      10,
			MaxIdle:        10,
			IdleTimeout:    90 * time.Second,
			RequestTimeout: 20 * time.Second,
		}, cb)
	}
	return g
}

// WithToken returns a copy of the adapter that authenticates with token. The
// copy shares the connection pool. An empty token returns the adapter itself.
func (g *GitHubAdapter) WithToken(token string) *GitHubAdapter {
	if token == "" || token == g.token {
		return g
	}
	clone := *g
	clone.token = token
	return &clone
}

func (g *GitHubAdapter) FetchUser(ctx context.Context, login string) (analysis.User, error) {
	var user analysis.User
	err := g.getJSON(ctx, "users/"+url.PathEscape(login), nil, &user)
	return user, err
}

// FetchRepos returns up to 100 repositories, most recently updated first.
func (g *GitHubAdapter) FetchRepos(ctx context.Context, login string) ([]analysis.Repo, error) {
	query := url.Values{"sort": {"updated"}, "per_page": {fmt.Sprint(repoPageSize)}}
	var repos []analysis.Repo
	if err := g.getJSON(ctx, "users/"+url.PathEscape(login)+"/repos", query, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func (g *GitHubAdapter) FetchLanguages(ctx context.Context, owner, repo string) (map[string]int64, error) {
	var languages map[string]int64
	if err := g.getJSON(ctx, repoPath(owner, repo, "languages"), nil, &languages); err != nil {
		return nil, err
	}
	return languages, nil
}

// FetchContents lists the entries at path. A missing path is an empty listing.
func (g *GitHubAdapter) FetchContents(ctx context.Context, owner, repo, path string) ([]analysis.ContentEntry, error) {
	endpoint := repoPath(owner, repo, "contents")
	if path != "" {
		endpoint += "/" + strings.TrimLeft(path, "/")
	}

	var contents []analysis.ContentEntry
	err := g.getJSON(ctx, endpoint, nil, &contents)
	if IsStatus(err, http.StatusNotFound) {
		return []analysis.ContentEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// FetchCommits returns the latest commits. An empty repository has none.
func (g *GitHubAdapter) FetchCommits(ctx context.Context, owner, repo string) ([]analysis.Commit, error) {
	query := url.Values{"per_page": {fmt.Sprint(listPageSize)}}
	var commits []analysis.Commit
	err := g.getJSON(ctx, repoPath(owner, repo, "commits"), query, &commits)
	if IsStatus(err, http.StatusConflict) {
		return []analysis.Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	return commits, nil
}

func (g *GitHubAdapter) FetchPulls(ctx context.Context, owner, repo string) ([]analysis.PullRequest, error) {
	query := url.Values{"state": {"all"}, "per_page": {fmt.Sprint(listPageSize)}}
	var pulls []analysis.PullRequest
	if err := g.getJSON(ctx, repoPath(owner, repo, "pulls"), query, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}

func (g *GitHubAdapter) FetchIssues(ctx context.Context, owner, repo string) ([]analysis.Issue, error) {
	query := url.Values{"state": {"all"}, "per_page": {fmt.Sprint(listPageSize)}}
	var issues []analysis.Issue
	if err := g.getJSON(ctx, repoPath(owner, repo, "issues"), query, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (g *GitHubAdapter) FetchReleases(ctx context.Context, owner, repo string) ([]analysis.Release, error) {
	var releases []analysis.Release
	if err := g.getJSON(ctx, repoPath(owner, repo, "releases"), nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// FetchRepoDetail gathers the six per-repository lists the scoring engine reads.
func (g *GitHubAdapter) FetchRepoDetail(ctx context.Context, owner, repo string) (analysis.RepoDetail, error) {
	var (
		detail analysis.RepoDetail
		err    error
	)

	if detail.Languages, err = g.FetchLanguages(ctx, owner, repo); err != nil {
		return detail, fmt.Errorf("languages of %s: %w", repo, err)
	}
	if detail.Contents, err = g.FetchContents(ctx, owner, repo, ""); err != nil {
		return detail, fmt.Errorf("contents of %s: %w", repo, err)
	}
	if detail.Commits, err = g.FetchCommits(ctx, owner, repo); err != nil {
		return detail, fmt.Errorf("commits of %s: %w", repo, err)
	}
	if detail.Pulls, err = g.FetchPulls(ctx, owner, repo); err != nil {
		return detail, fmt.Errorf("pulls of %s: %w", repo, err)
	}
	if detail.Issues, err = g.FetchIssues(ctx, owner, repo); err != nil {
		return detail, fmt.Errorf("issues of %s: %w", repo, err)
	}
	if detail.Releases, err = g.FetchReleases(ctx, owner, repo); err != nil {
		return detail, fmt.Errorf("releases of %s: %w", repo, err)
	}
	return detail, nil
}

// CollectSnapshot fetches the profile, the repository list and, in parallel,
// the details of the first analysis.SampleSize repositories. Any failure
// aborts the whole collection.
func (g *GitHubAdapter) CollectSnapshot(ctx context.Context, login string) (analysis.Snapshot, error) {
	start := time.Now()

	user, err := g.FetchUser(ctx, login)
	if err != nil {
		return analysis.Snapshot{}, fmt.Errorf("fetch user %s: %w", login, err)
	}
	repos, err := g.FetchRepos(ctx, login)
	if err != nil {
		return analysis.Snapshot{}, fmt.Errorf("fetch repos of %s: %w", login, err)
	}

	sampled := repos[:min(len(repos), analysis.SampleSize)]
	details := make([]analysis.RepoDetail, len(sampled))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, repo := range sampled {
		group.Go(func() error {
			detail, err := g.FetchRepoDetail(groupCtx, login, repo.Name)
			if err != nil {
				return err
			}
			details[i] = detail
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return analysis.Snapshot{}, fmt.Errorf("fetch repo details of %s: %w", login, err)
	}

	byName := make(map[string]analysis.RepoDetail, len(sampled))
	for i, repo := range sampled {
		byName[repo.Name] = details[i]
	}

	slog.Info("Collected GitHub snapshot",
		"login", login,
		"repos", len(repos),
		"sampled", len(sampled),
		"duration_ms", time.Since(start).Milliseconds())

	return analysis.NewSnapshot(user, repos, byName), nil
}

// GetPoolStats returns connection pool statistics
func (g *GitHubAdapter) GetPoolStats() map[string]interface{} {
	return g.pool.GetStats()
}

// Close closes the connection pool
func (g *GitHubAdapter) Close() error {
	return g.pool.Close()
}

func repoPath(owner, repo, resource string) string {
	return fmt.Sprintf("repos/%s/%s/%s", url.PathEscape(owner), url.PathEscape(repo), resource)
}

func (g *GitHubAdapter) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	target := g.baseURL + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return resilience.RetryWithConfig(ctx, g.retry, func() error {
		resp, err := g.pool.DoRequest(ctx, http.MethodGet, target, g.headers(), nil)
		if err != nil {
			return err
		}
		defer apperrors.SafeClose(resp.Body, "github response body")

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp, target)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil
	})
}

func (g *GitHubAdapter) headers() map[string]string {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": githubUserAgent,
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}
	return headers
}

func newAPIError(resp *http.Response, target string) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		URL:        target,
		Body:       strings.TrimSpace(string(body)),
		RateLimit: resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"),
	}
}
