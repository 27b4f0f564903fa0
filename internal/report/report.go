// Package report merges a score bundle and a narrative bundle into the
// document returned to API and CLI callers.
package report

import (
	"fmt"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	"github.com/So-hel/signalmatrix-repo/internal/narrative"
)

// NotAvailable stands in for any missing scalar field.
const NotAvailable = "N/A"

type Report struct {
	OverallScore             string            `json:"overall_score"`
	RecruiterDecision        string            `json:"recruiter_decision"`
	HiringRisk               string            `json:"hiring_risk"`
	SignalBreakdown          map[string]int    `json:"signal_breakdown"`
	StrongSignals            []string          `json:"strong_signals"`
	RedFlags                 analysis.RedFlags `json:"red_flags"`
	CollaborationScore       interface{}       `json:"collaboration_score"`
	MaturityTrend            string            `json:"maturity_trend"`
	ComplexityClassification string            `json:"complexity_classification"`
	BenchmarkPosition        string            `json:"benchmark_position"`
	ExecutiveSummary         string            `json:"executive_summary"`
	RecruiterReasoning       string            `json:"recruiter_reasoning"`
	ReadmeEvaluation         string            `json:"readme_evaluation"`
	ResumeVerification       string            `json:"resume_verification"`
	ImprovementRoadmap       narrative.Roadmap `json:"improvement_roadmap"`
}

// Construct assembles a report. Either bundle may be nil: scalar fields then
// read "N/A" and collections are empty.
func Construct(score *analysis.ScoreBundle, ai *narrative.Bundle) Report {
	r := Report{
		OverallScore:             NotAvailable,
		RecruiterDecision:        NotAvailable,
		HiringRisk:               NotAvailable,
		SignalBreakdown:          map[string]int{},
		StrongSignals:            []string{},
		RedFlags:                 analysis.RedFlags{Critical: []string{}, Moderate: []string{}, Minor: []string{}},
		CollaborationScore:       NotAvailable,
		MaturityTrend:            NotAvailable,
		ComplexityClassification: NotAvailable,
		BenchmarkPosition:        NotAvailable,
		ExecutiveSummary:         NotAvailable,
		RecruiterReasoning:       NotAvailable,
		ReadmeEvaluation:         NotAvailable,
		ResumeVerification:       NotAvailable,
	}

	if score != nil {
		r.OverallScore = fmt.Sprintf("%d/50", score.TotalScore)
		r.RecruiterDecision = orNA(score.Decision)
		r.HiringRisk = orNA(score.HiringRisk)
		r.SignalBreakdown = map[string]int{
			"consistency": score.Breakdown.Consistency,
			"depth":       score.Breakdown.Depth,
			"clarity":     score.Breakdown.Clarity,
			"focus":       score.Breakdown.Focus,
			"production":  score.Breakdown.Production,
		}
		if score.Signals != nil {
			r.StrongSignals = score.Signals
		}
		r.RedFlags = withEmptyBuckets(score.RedFlags)
		r.CollaborationScore = score.CollaborationScore
		r.MaturityTrend = orNA(score.MaturityTrend)
		r.ComplexityClassification = orNA(score.ComplexityClass)
		r.BenchmarkPosition = orNA(score.BenchmarkPosition)
	}

	if ai != nil {
		r.ExecutiveSummary = orNA(ai.ExecutiveSummary)
		r.RecruiterReasoning = orNA(ai.RecruiterReasoning)
		r.ReadmeEvaluation = orNA(ai.ReadmeEvaluation)
		r.ResumeVerification = orNA(ai.ResumeVerification)
		r.ImprovementRoadmap = ai.ImprovementRoadmap
	}

	return r
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func withEmptyBuckets(flags analysis.RedFlags) analysis.RedFlags {
	if flags.Critical == nil {
		flags.Critical = []string{}
	}
	if flags.Moderate == nil {
		flags.Moderate = []string{}
	}
	if flags.Minor == nil {
		flags.Minor = []string{}
	}
	return flags
}
