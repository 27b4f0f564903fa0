package analysis

import (
	"slices"
	"strings"
)

const (
	maxMetricScore = 10

	// depthThreshold is compared against an average of a 0/1 per-repo signal,
	// so it cannot be exceeded while repoDepth only detects directory presence.
	depthThreshold = 3

	readmeRatioThreshold     = 0.7
	structuredRatioThreshold = 0.5
)

var structuredDirs = []string{"src", "app", "lib", "include"}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxMetricScore {
		return maxMetricScore
	}
	return score
}

// scoreConsistency rewards breadth (repo count) and recent activity (sampled
// commit volume) independently.
func scoreConsistency(s Snapshot) int {
	if len(s.Repos) == 0 {
		return 0
	}

	score := 0
	if len(s.Repos) > 5 {
		score += 5
	}

	commits := 0
	for _, d := range s.RepoDetails {
		commits += len(d.Commits)
	}
	if commits > 20 {
		score += 5
	}
	return clampScore(score)
}

// scoreDepth approximates structural sophistication from top-level entries only.
func scoreDepth(s Snapshot) int {
	score := 0

	avgDepth := 0.0
	for _, d := range s.RepoDetails {
		avgDepth += float64(repoDepth(d.Contents))
	}
	if len(s.Repos) > 0 {
		avgDepth /= float64(len(s.Repos))
	}
	if avgDepth > depthThreshold {
		score += 5
	}

	if len(s.Repos) > 0 && anyPolyglotRepo(s.RepoDetails) {
		score += 5
	}
	return clampScore(score)
}

func repoDepth(contents []ContentEntry) int {
	for _, c := range contents {
		if c.IsDir() {
			return 1
		}
	}
	return 0
}

func anyPolyglotRepo(details map[string]RepoDetail) bool {
	for _, d := range details {
		if len(d.Languages) > 2 {
			return true
		}
	}
	return false
}

// scoreClarity looks at README presence and conventional source layouts. Both
// ratios are taken over the full repo list, not just the sampled repos.
func scoreClarity(s Snapshot) int {
	if len(s.Repos) == 0 {
		return 0
	}

	readmes, structured := 0, 0
	for _, d := range s.RepoDetails {
		names := lowerNames(d.Contents)
		if slices.Contains(names, "readme.md") {
			readmes++
		}
		if slices.ContainsFunc(names, func(n string) bool { return slices.Contains(structuredDirs, n) }) {
			structured++
		}
	}

	total := float64(len(s.Repos))
	score := 0
	if float64(readmes)/total > readmeRatioThreshold {
		score += 5
	}
	if float64(structured)/total > structuredRatioThreshold {
		score += 5
	}
	return clampScore(score)
}

// scoreFocus is floor(10 * dominant language bytes / all bytes) over the union
// of the sampled repositories.
func scoreFocus(s Snapshot) int {
	var top, total int64
	for _, bytes := range languageTotals(s.RepoDetails) {
		total += bytes
		if bytes > top {
			top = bytes
		}
	}
	if total <= 0 {
		return 0
	}
	return clampScore(int(10 * top / total))
}

func languageTotals(details map[string]RepoDetail) map[string]int64 {
	totals := make(map[string]int64)
	for _, d := range details {
		for lang, bytes := range d.Languages {
			totals[lang] += bytes
		}
	}
	return totals
}

// scoreProduction accumulates a signal counter across repos first and only then
// converts it into a score, so one strong repo is worth less than several
// partial ones.
func scoreProduction(s Snapshot) int {
	signals := 0
	for _, d := range s.RepoDetails {
		signals += productionSignals(d)
	}

	switch {
	case signals > 5:
		return clampScore(10)
	case signals > 2:
		return clampScore(5)
	default:
		return 0
	}
}

func productionSignals(d RepoDetail) int {
	names := lowerNames(d.Contents)

	signals := 0
	if slices.Contains(names, "dockerfile") {
		signals += 2
	}
	if slices.Contains(names, ".github") {
		signals += 2
	}
	if slices.ContainsFunc(names, func(n string) bool { return strings.Contains(n, "test") }) {
		signals += 2
	}
	if len(d.Releases) > 0 {
		signals += 2
	}
	return signals
}

func lowerNames(contents []ContentEntry) []string {
	names := make([]string, 0, len(contents))
	for _, c := range contents {
		names = append(names, strings.ToLower(c.Name))
	}
	return names
}
