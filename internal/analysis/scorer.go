package analysis

const (
	strongCutoff     = 40
	borderlineCutoff = 28
)

// Compute scores a snapshot. It has no side effects and never fails; missing
// details count as empty.
func Compute(s Snapshot) ScoreBundle {
	breakdown := Breakdown{
		Consistency: scoreConsistency(s),
		Depth:       scoreDepth(s),
		Clarity:     scoreClarity(s),
		Focus:       scoreFocus(s),
		Production:  scoreProduction(s),
	}
	total := breakdown.Total()

	return ScoreBundle{
		TotalScore:         total,
		Breakdown:          breakdown,
		Decision:           decisionFor(total),
		HiringRisk:         assessRisk(s),
		RedFlags:           detectRedFlags(s),
		Signals:            detectStrongSignals(s),
		MaturityTrend:      analyzeMaturity(s.Repos),
		CollaborationScore: scoreCollaboration(s),
		ComplexityClass:    classifyComplexity(s),
		BenchmarkPosition:  benchmarkFor(total),
	}
}

func decisionFor(total int) string {
	switch {
	case total >= strongCutoff:
		return DecisionStrongShortlist
	case total >= borderlineCutoff:
		return DecisionBorderline
	default:
		return DecisionNotReady
	}
}

// benchmarkFor shares its cut points with decisionFor but is reported as a
// separate field.
func benchmarkFor(total int) string {
	switch {
	case total >= strongCutoff:
		return BenchmarkAboveStrong
	case total >= borderlineCutoff:
		return BenchmarkNearProduction
	default:
		return BenchmarkAtLearnerLevel
	}
}
