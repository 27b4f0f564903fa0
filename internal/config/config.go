package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/narrative"
)

// Config is the process configuration. It is loaded once in main and handed
// to constructors; nothing reads the environment after Load.
type Config struct {
	Port    string
	DataDir string

	GitHubToken  string
	GitHubAPIURL string

	AIProvider       string
	OpenAIAPIKey     string
	OpenAIModel      string
	BlackboxAPIKey   string
	BlackboxModel    string
	GeminiAPIKey     string
	GeminiModel      string
	AIEndpoint       string
	NarrativeTimeout time.Duration

	CacheTTL  time.Duration
	CacheSize int

	// HistoryRetention is how long stored analyses are kept.
	HistoryRetention time.Duration

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitPerMin int

	AllowedOrigins []string
	LogLevel       slog.Level
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Invalid numbers or
// durations produce a configuration error naming the variable.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:    strings.TrimPrefix(p.str("PORT", "8080"), ":"),
		DataDir: p.str("DATA_DIR", "./data"),

		GitHubToken:  p.str("GITHUB_TOKEN", ""),
		GitHubAPIURL: p.str("GITHUB_API_URL", "https://api.github.com"),

		AIProvider:       strings.ToLower(p.str("AI_PROVIDER", narrative.ProviderOpenAI)),
		OpenAIAPIKey:     p.str("OPENAI_API_KEY", ""),
		OpenAIModel:      p.str("OPENAI_MODEL", "gpt-4o-mini"),
		BlackboxAPIKey:   p.str("BLACKBOX_API_KEY", ""),
		BlackboxModel:    p.str("BLACKBOX_MODEL", "blackboxai"),
		GeminiAPIKey:     p.str("GEMINI_API_KEY", ""),
		GeminiModel:      p.str("GEMINI_MODEL", "gemini-2.5-flash"),
		AIEndpoint:       p.str("AI_ENDPOINT", ""),
		NarrativeTimeout: p.duration("NARRATIVE_TIMEOUT", narrative.DefaultTimeout),

		CacheTTL:  p.duration("CACHE_TTL", 15*time.Minute),
		CacheSize: p.integer("CACHE_SIZE", 512),

		HistoryRetention: p.duration("HISTORY_RETENTION", 90*24*time.Hour),

		RedisAddr:       p.str("REDIS_ADDR", ""),
		RedisPassword:   p.str("REDIS_PASSWORD", ""),
		RedisDB:         p.integer("REDIS_DB", 0),
		RateLimitPerMin: p.integer("RATE_LIMIT_PER_MIN", 30),

		AllowedOrigins: splitList(p.str("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		LogLevel:       p.level("LOG_LEVEL", slog.LevelInfo),
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.CacheSize <= 0 {
		return nil, apperrors.NewConfigurationError("CACHE_SIZE must be positive", nil)
	}
	if cfg.RateLimitPerMin <= 0 {
		return nil, apperrors.NewConfigurationError("RATE_LIMIT_PER_MIN must be positive", nil)
	}
	return cfg, nil
}

// Narrative returns the narrative generator settings for the selected provider.
func (c *Config) Narrative() narrative.Config {
	nc := narrative.Config{
		Provider: c.AIProvider,
		Endpoint: c.AIEndpoint,
		Timeout:  c.NarrativeTimeout,
	}
	switch c.AIProvider {
	case narrative.ProviderBlackbox:
		nc.APIKey, nc.Model = c.BlackboxAPIKey, c.BlackboxModel
	case narrative.ProviderGemini:
		nc.APIKey, nc.Model = c.GeminiAPIKey, c.GeminiModel
	default:
		nc.APIKey, nc.Model = c.OpenAIAPIKey, c.OpenAIModel
	}
	return nc
}

// Summary lists the settings worth checking by hand, with credentials masked.
func (c *Config) Summary() [][2]string {
	return [][2]string{
		{"GITHUB_TOKEN", Mask(c.GitHubToken)},
		{"GITHUB_API_URL", c.GitHubAPIURL},
		{"AI_PROVIDER", c.AIProvider},
		{"OPENAI_API_KEY", Mask(c.OpenAIAPIKey)},
		{"OPENAI_MODEL", c.OpenAIModel},
		{"BLACKBOX_API_KEY", Mask(c.BlackboxAPIKey)},
		{"BLACKBOX_MODEL", c.BlackboxModel},
		{"GEMINI_API_KEY", Mask(c.GeminiAPIKey)},
		{"GEMINI_MODEL", c.GeminiModel},
		{"NARRATIVE_TIMEOUT", c.NarrativeTimeout.String()},
		{"DATA_DIR", c.DataDir},
		{"HISTORY_RETENTION", c.HistoryRetention.String()},
		{"REDIS_ADDR", orDefault(c.RedisAddr, "(in-memory rate limiting)")},
	}
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "MISSING"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, fallback string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) integer(key string, fallback int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	if v <= 0 {
		p.fail(key, raw, fmt.Errorf("must be positive"))
		return fallback
	}
	return v
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return lvl
}

// fail keeps the first error only.
func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = apperrors.NewConfigurationError(fmt.Sprintf("invalid %s %q", key, raw), err)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
