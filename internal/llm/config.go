package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures the model backend used for hints and
// challenge generation.
type Config struct {
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // compatible endpoints only
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetryConfig configures backoff for transient provider failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns Gemini with a fast model, which is what the hint and
// challenge prompts are tuned for.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderGemini,
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.5-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// envBinding maps an environment variable onto a Config field.
type envBinding struct {
	key string
	set func(*Config, string)
}

var envBindings = []envBinding{
	{"SYNAPSE_LLM_PROVIDER", func(c *Config, v string) { c.Provider = v }},
	{"SYNAPSE_GEMINI_API_KEY", func(c *Config, v string) { c.Gemini.APIKey = v }},
	{"SYNAPSE_GEMINI_MODEL", func(c *Config, v string) { c.Gemini.Model = v }},
	{"SYNAPSE_OPENAI_API_KEY", func(c *Config, v string) { c.OpenAI.APIKey = v }},
	{"SYNAPSE_OPENAI_MODEL", func(c *Config, v string) { c.OpenAI.Model = v }},
	{"SYNAPSE_OPENAI_BASE_URL", func(c *Config, v string) { c.OpenAI.BaseURL = v }},
	{"SYNAPSE_ANTHROPIC_API_KEY", func(c *Config, v string) { c.Anthropic.APIKey = v }},
	{"SYNAPSE_ANTHROPIC_MODEL", func(c *Config, v string) { c.Anthropic.Model = v }},
	{"SYNAPSE_OPENROUTER_API_KEY", func(c *Config, v string) { c.OpenRouter.APIKey = v }},
	{"SYNAPSE_OPENROUTER_MODEL", func(c *Config, v string) { c.OpenRouter.Model = v }},
	{"SYNAPSE_OPENROUTER_BASE_URL", func(c *Config, v string) { c.OpenRouter.BaseURL = v }},
	{"SYNAPSE_LLM_TIMEOUT", func(c *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Timeout = d
		}
	}},
}

// ConfigFromEnv applies SYNAPSE_* overrides on top of DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	for _, b := range envBindings {
		if v := os.Getenv(b.key); v != "" {
			b.set(&cfg, v)
		}
	}
	return cfg
}

// DiscoverConfig picks the first provider whose conventional API key
// variable is set, in the order Gemini, OpenAI, Anthropic, OpenRouter.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	case os.Getenv("OPENAI_API_KEY") != "":
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case os.Getenv("OPENROUTER_API_KEY") != "":
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	default:
		return Config{}, false
	}
	return cfg, true
}

// Validate checks that the selected provider has its API key.
func (c Config) Validate() error {
	var key string
	switch c.Provider {
	case ProviderGemini:
		key = c.Gemini.APIKey
	case ProviderOpenAI:
		key = c.OpenAI.APIKey
	case ProviderAnthropic:
		key = c.Anthropic.APIKey
	case ProviderOpenRouter:
		key = c.OpenRouter.APIKey
	case ProviderMock:
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("SYNAPSE_%s_API_KEY is required for the %s provider", strings.ToUpper(c.Provider), c.Provider)
	}
	return nil
}
