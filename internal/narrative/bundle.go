package narrative

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Roadmap is a four week improvement plan.
type Roadmap struct {
	Week1 string `json:"week1,omitempty"`
	Week2 string `json:"week2,omitempty"`
	Week3 string `json:"week3,omitempty"`
	Week4 string `json:"week4,omitempty"`
}

// IsZero reports whether no week is filled in.
func (r Roadmap) IsZero() bool {
	return r == Roadmap{}
}

// Bundle is the prose half of a report.
type Bundle struct {
	ExecutiveSummary   string  `json:"executive_summary"`
	RecruiterReasoning string  `json:"recruiter_reasoning"`
	ReadmeEvaluation   string  `json:"readme_evaluation"`
	ResumeVerification string  `json:"resume_verification"`
	ImprovementRoadmap Roadmap `json:"improvement_roadmap"`
	// Error is set only on fallback bundles.
	Error string `json:"error,omitempty"`
}

// Offline reports whether the bundle is a fallback.
func (b Bundle) Offline() bool {
	return b.Error != ""
}

type failureKind int

const (
	failureGeneric failureKind = iota
	failureQuota
	failureAuth
)

func classifyFailure(cause string) failureKind {
	switch {
	case strings.Contains(cause, "insufficient_quota") || strings.Contains(cause, "429"):
		return failureQuota
	case strings.Contains(strings.ToLower(cause), "authentication") || strings.Contains(cause, "401"):
		return failureAuth
	default:
		return failureGeneric
	}
}

var defaultRoadmap = Roadmap{
	Week1: "Update README with architectural diagrams.",
	Week2: "Increase unit test coverage.",
	Week3: "Containerize the application (Dockerfile).",
	Week4: "Implement CI/CD (GitHub Actions).",
}

// Fallback builds the bundle returned whenever the provider cannot be used.
// The summary depends on whether cause looks like a quota, an auth or some
// other failure. readme_evaluation is present but empty so reports show
// "N/A"; the bundle keeps the same keys as a provider response.
func Fallback(provider, cause string) Bundle {
	var summary string
	switch classifyFailure(cause) {
	case failureQuota:
		summary = fmt.Sprintf("%s Quota Exceeded. Please check your account credits. Rule-based scoring is still available below.",
			cases.Title(language.English).String(provider))
	case failureAuth:
		summary = fmt.Sprintf("Authentication failed for %s. Check your API keys in the .env file.", provider)
	default:
		summary = fmt.Sprintf("Error generating content with %s.", provider)
	}

	return Bundle{
		ExecutiveSummary:   summary,
		RecruiterReasoning: "AI Analysis Offline",
		ResumeVerification: "N/A (AI Offline)",
		ImprovementRoadmap: defaultRoadmap,
		Error:              cause,
	}
}
