package analysis

// User is the profile portion of a snapshot. Only Bio takes part in scoring.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Repo is one entry of the user's repository list.
type Repo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Fork            bool   `json:"fork"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
}

// ContentEntry is a top-level directory entry of a repository.
type ContentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// IsDir reports whether the entry is a directory.
func (c ContentEntry) IsDir() bool { return c.Type == "dir" }

type CommitInfo struct {
	Message string `json:"message"`
}

type Commit struct {
	SHA    string     `json:"sha"`
	Commit CommitInfo `json:"commit"`
}

type PullRequest struct {
	Number int    `json:"number"`
	State  string `json:"state"`
}

type Issue struct {
	Number int    `json:"number"`
	State  string `json:"state"`
}

type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

// RepoDetail holds everything fetched for one sampled repository.
type RepoDetail struct {
	Languages map[string]int64 `json:"languages"`
	Contents  []ContentEntry   `json:"contents"`
	Commits   []Commit         `json:"commits"`
	Pulls     []PullRequest    `json:"pulls"`
	Issues    []Issue          `json:"issues"`
	Releases  []Release        `json:"releases"`
}

// Snapshot is the complete input of one scoring run. RepoDetails is keyed by
// repository name and is expected to cover at most the first SampleSize repos.
type Snapshot struct {
	User        User                  `json:"user"`
	Repos       []Repo                `json:"repos"`
	RepoDetails map[string]RepoDetail `json:"repo_details"`
}

// SampleSize is the number of most recently updated repositories that get a
// detail record.
const SampleSize = 5

// NewSnapshot builds a snapshot with every nil collection replaced by an empty one.
func NewSnapshot(user User, repos []Repo, details map[string]RepoDetail) Snapshot {
	if repos == nil {
		repos = []Repo{}
	}
	normalized := make(map[string]RepoDetail, len(details))
	for name, d := range details {
		normalized[name] = d.normalize()
	}
	return Snapshot{User: user, Repos: repos, RepoDetails: normalized}
}

// Normalize returns a copy of s with the same defaulting NewSnapshot applies.
func (s Snapshot) Normalize() Snapshot {
	return NewSnapshot(s.User, s.Repos, s.RepoDetails)
}

func (d RepoDetail) normalize() RepoDetail {
	if d.Languages == nil {
		d.Languages = map[string]int64{}
	}
	if d.Contents == nil {
		d.Contents = []ContentEntry{}
	}
	if d.Commits == nil {
		d.Commits = []Commit{}
	}
	if d.Pulls == nil {
		d.Pulls = []PullRequest{}
	}
	if d.Issues == nil {
		d.Issues = []Issue{}
	}
	if d.Releases == nil {
		d.Releases = []Release{}
	}
	return d
}

// Breakdown carries the five metric scores.
type Breakdown struct {
	Consistency int `json:"consistency"`
	Depth       int `json:"depth"`
	Clarity     int `json:"clarity"`
	Focus       int `json:"focus"`
	Production  int `json:"production"`
}

// Total sums the five metrics.
func (b Breakdown) Total() int {
	return b.Consistency + b.Depth + b.Clarity + b.Focus + b.Production
}

// RedFlags groups warnings by severity. All three buckets are always present.
type RedFlags struct {
	Critical []string `json:"critical"`
	Moderate []string `json:"moderate"`
	Minor    []string `json:"minor"`
}

func newRedFlags() RedFlags {
	return RedFlags{Critical: []string{}, Moderate: []string{}, Minor: []string{}}
}

// ScoreBundle is the output of Compute.
type ScoreBundle struct {
	TotalScore         int       `json:"total_score"`
	Breakdown          Breakdown `json:"breakdown"`
	Decision           string    `json:"decision"`
	HiringRisk         string    `json:"hiring_risk"`
	RedFlags           RedFlags  `json:"red_flags"`
	Signals            []string  `json:"signals"`
	MaturityTrend      string    `json:"maturity_trend"`
	CollaborationScore int       `json:"collaboration_score"`
	ComplexityClass    string    `json:"complexity_class"`
	BenchmarkPosition  string    `json:"benchmark_position"`
}

const (
	DecisionStrongShortlist = "Strong Shortlist"
	DecisionBorderline      = "Borderline"
	DecisionNotReady        = "Not Ready"

	BenchmarkAboveStrong    = "Above Strong Candidate"
	BenchmarkNearProduction = "Near Production-Ready"
	BenchmarkAtLearnerLevel = "At Learner Level"

	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"

	TrendNotApplicable = "N/A"
	TrendImproving     = "Improving"

	ComplexityAdvanced     = "Advanced"
	ComplexityIntermediate = "Intermediate"
	ComplexityToy          = "Toy"
)

const (
	FlagEmptyProfile      = "Empty Profile: No public repositories found."
	FlagForkHeavy         = "Fork-Heavy: Most repositories are forks, not original work."
	FlagRepetitiveCommits = "Repetitive Commits: Low diversity in commit messages."

	SignalProductionReady    = "Production Ready: Strong evidence of CI/CD and deployment configuration."
	SignalActiveCollaborator = "Active Collaborator: Significant external contributions and issue tracking."
)
