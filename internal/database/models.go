package database

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
)

// Sources of a stored analysis.
const (
	SourceGitHub   = "github"
	SourceSnapshot = "snapshot"
)

// Analysis is one stored scoring run.
type Analysis struct {
	ID        string               `json:"id"`
	Login     string               `json:"login"`
	Source    string               `json:"source"`
	Bundle    analysis.ScoreBundle `json:"score"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewAnalysis stamps a bundle with an ID and the current time. Logins are
// stored lower-cased since GitHub handles are case-insensitive.
func NewAnalysis(login, source string, bundle analysis.ScoreBundle) *Analysis {
	return &Analysis{
		ID:        uuid.New().String(),
		Login:     strings.ToLower(login),
		Source:    source,
		Bundle:    bundle,
		CreatedAt: time.Now().UTC(),
	}
}

// LeaderboardEntry is the best stored run of one login within a period.
type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	Login      string    `json:"login"`
	TotalScore int       `json:"total_score"`
	Decision   string    `json:"decision"`
	HiringRisk string    `json:"hiring_risk"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Leaderboard periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAllTime = "all_time"
)

// PeriodStart returns the earliest creation time included in period, or
// false for an unknown period.
func PeriodStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case PeriodDaily:
		return now.Add(-24 * time.Hour), true
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour), true
	case PeriodMonthly:
		return now.AddDate(0, -1, 0), true
	case PeriodAllTime, "":
		return time.Time{}, true
	default:
		return time.Time{}, false
	}
}
