package narrative

import (
	"strings"
	"time"
)

const (
	ProviderOpenAI   = "openai"
	ProviderBlackbox = "blackbox"
	ProviderGemini   = "gemini"

	DefaultTimeout = 30 * time.Second
)

// Config selects and authenticates the language model provider. It is built
// once by the caller and passed to New.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// Endpoint overrides the provider's default URL (chat completions URL for
	// openai/blackbox, API base URL for gemini).
	Endpoint string
	Timeout  time.Duration
}

type providerDefaults struct {
	model    string
	endpoint string
}

var defaults = map[string]providerDefaults{
	ProviderOpenAI:   {model: "gpt-4o-mini", endpoint: "https://api.openai.com/v1/chat/completions"},
	ProviderBlackbox: {model: "blackboxai", endpoint: "https://api.blackbox.ai/v1/chat/completions"},
	ProviderGemini:   {model: "gemini-2.5-flash"},
}

// withDefaults normalises the provider name and fills model, endpoint and
// timeout. Unknown providers are treated as openai.
func (c Config) withDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	d, ok := defaults[c.Provider]
	if !ok {
		c.Provider = ProviderOpenAI
		d = defaults[ProviderOpenAI]
	}
	if c.Model == "" {
		c.Model = d.model
	}
	if c.Endpoint == "" {
		c.Endpoint = d.endpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
