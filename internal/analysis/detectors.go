package analysis

import "sort"

const (
	// riskForkRatio and flagForkRatio are separate thresholds on purpose: the
	// risk label escalates before the red flag fires.
	riskForkRatio = 0.7
	flagForkRatio = 0.8

	minCommitDiversity = 0.3

	collaboratorThreshold = 5
	productionThreshold   = 8

	advancedFileCount     = 50
	intermediateFileCount = 20
)

func forkRatio(repos []Repo) float64 {
	if len(repos) == 0 {
		return 0
	}
	forks := 0
	for _, r := range repos {
		if r.Fork {
			forks++
		}
	}
	return float64(forks) / float64(len(repos))
}

// assessRisk scores profile completeness and originality. It is independent of
// the five metrics.
func assessRisk(s Snapshot) string {
	risk := 0
	if s.User.Bio == "" {
		risk++
	}
	if len(s.Repos) < 3 {
		risk += 2
	}
	if forkRatio(s.Repos) > riskForkRatio {
		risk += 2
	}

	switch {
	case risk > 3:
		return RiskHigh
	case risk > 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

func detectRedFlags(s Snapshot) RedFlags {
	flags := newRedFlags()

	if len(s.Repos) == 0 {
		flags.Critical = append(flags.Critical, FlagEmptyProfile)
		return flags
	}

	if forkRatio(s.Repos) > flagForkRatio {
		flags.Moderate = append(flags.Moderate, FlagForkHeavy)
	}

	total := 0
	distinct := make(map[string]struct{})
	for _, d := range s.RepoDetails {
		for _, c := range d.Commits {
			total++
			distinct[c.Commit.Message] = struct{}{}
		}
	}
	if total > 0 && float64(len(distinct))/float64(total) < minCommitDiversity {
		flags.Moderate = append(flags.Moderate, FlagRepetitiveCommits)
	}

	return flags
}

// detectStrongSignals re-derives the production and collaboration scores
// rather than reading them from a bundle under construction.
func detectStrongSignals(s Snapshot) []string {
	signals := []string{}
	if scoreProduction(s) >= productionThreshold {
		signals = append(signals, SignalProductionReady)
	}
	if scoreCollaboration(s) > collaboratorThreshold {
		signals = append(signals, SignalActiveCollaborator)
	}
	return signals
}

func scoreCollaboration(s Snapshot) int {
	score := 0
	for _, d := range s.RepoDetails {
		if len(d.Pulls) > 0 {
			score += 2
		}
		if len(d.Issues) > 0 {
			score++
		}
	}
	return clampScore(score)
}

func analyzeMaturity(repos []Repo) string {
	if len(repos) < 2 {
		return TrendNotApplicable
	}

	oldest, newest := creationBounds(repos)
	// TODO: compare README/layout/production signals of oldest and newest once
	// product defines the comparison; every multi-repo profile reads as improving.
	_, _ = oldest, newest
	return TrendImproving
}

// creationBounds orders repos by created_at (ISO-8601, compared as strings)
// without touching the caller's slice.
func creationBounds(repos []Repo) (oldest, newest Repo) {
	sorted := make([]Repo, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})
	return sorted[0], sorted[len(sorted)-1]
}

func classifyComplexity(s Snapshot) string {
	files := 0
	for _, d := range s.RepoDetails {
		files += len(d.Contents)
	}

	switch {
	case files > advancedFileCount:
		return ComplexityAdvanced
	case files > intermediateFileCount:
		return ComplexityIntermediate
	default:
		return ComplexityToy
	}
}
