package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
)

const systemPrompt = "You are an expert technical recruiter and engineering manager."

const userPromptTemplate = `Analyze the following GitHub profile signals and generate a recruiter-style report.

GITHUB SIGNALS:
%s

RESUME TEXT (OPTIONAL):
%s

Generate the following sections in JSON format:
1. "executive_summary": A professional executive summary of the candidate's engineering profile.
2. "recruiter_reasoning": A 3-line concise recruiter-style reasoning for the hiring decision.
3. "readme_evaluation": Qualitative feedback on the candidate's documentation.
4. "resume_verification": Reasoning on whether the GitHub evidence supports the claims in the resume (if provided).
5. "improvement_roadmap": {"week1": "...", "week2": "...", "week3": "...", "week4": "..."}

STRICT JSON OUTPUT ONLY.`

// Generator turns a score bundle into recruiter prose. It never fails: every
// problem is reported through a fallback bundle.
type Generator struct {
	cfg     Config
	client  completer
	breaker *resilience.CircuitBreaker
}

// New builds a generator for cfg. The returned error is only about building
// the provider client; callers may still use the generator, which then
// always falls back.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults()
	g := &Generator{cfg: cfg, breaker: newBreaker(cfg.Provider)}

	if cfg.APIKey == "" {
		return g, nil
	}

	switch cfg.Provider {
	case ProviderGemini:
		client, err := newGeminiClient(ctx, cfg)
		if err != nil {
			return g, err
		}
		g.client = client
	default:
		g.client = newChatClient(cfg)
	}
	return g, nil
}

func newWithClient(cfg Config, client completer) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{cfg: cfg, client: client, breaker: newBreaker(cfg.Provider)}
}

func newBreaker(provider string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "narrative-" + provider,
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})
}

// Provider returns the normalised provider name.
func (g *Generator) Provider() string { return g.cfg.Provider }

func (g *Generator) Model() string { return g.cfg.Model }

// Generate asks the model for the narrative sections of a report.
func (g *Generator) Generate(ctx context.Context, score analysis.ScoreBundle, resumeText string) Bundle {
	if g.cfg.APIKey == "" {
		return Fallback(g.cfg.Provider, "Missing API key for "+g.cfg.Provider)
	}
	if g.client == nil {
		return Fallback(g.cfg.Provider, "No client configured for "+g.cfg.Provider)
	}

	prompt, err := buildPrompt(score, resumeText)
	if err != nil {
		return Fallback(g.cfg.Provider, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var raw string
	err = g.breaker.Call(func() error {
		var callErr error
		raw, callErr = g.client.Complete(ctx, systemPrompt, prompt)
		return callErr
	})
	if err != nil {
		slog.Warn("Narrative generation failed",
			"provider", g.cfg.Provider,
			"model", g.cfg.Model,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return Fallback(g.cfg.Provider, err.Error())
	}

	bundle, err := decodeBundle(raw)
	if err != nil {
		slog.Warn("Narrative response was not valid JSON", "provider", g.cfg.Provider, "error", err)
		return Fallback(g.cfg.Provider, err.Error())
	}

	slog.Info("Narrative generated",
		"provider", g.cfg.Provider,
		"model", g.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds())
	return bundle
}

func buildPrompt(score analysis.ScoreBundle, resumeText string) (string, error) {
	signals, err := json.MarshalIndent(score, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode score bundle: %w", err)
	}
	return fmt.Sprintf(userPromptTemplate, signals, resumeText), nil
}

func decodeBundle(raw string) (Bundle, error) {
	var bundle Bundle
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &bundle); err != nil {
		return Bundle{}, fmt.Errorf("invalid JSON from model: %w", err)
	}
	// The model must not be able to mark its own answer as a fallback.
	bundle.Error = ""
	return bundle, nil
}

// stripCodeFences extracts the body of the first ```json block, or failing
// that the first ``` block. Text without fences is returned trimmed.
func stripCodeFences(text string) string {
	for _, fence := range []string{"```json", "```"} {
		_, after, found := strings.Cut(text, fence)
		if !found {
			continue
		}
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}
