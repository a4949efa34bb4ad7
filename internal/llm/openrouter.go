package llm

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider routes through OpenRouter's OpenAI-compatible API.
// Model IDs are vendor-qualified ("google/gemini-2.5-flash") and used as-is.
type OpenRouterProvider struct {
	*OpenAIProvider
}

func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	inner, err := newOpenAICompatible(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: baseURL}, nil)
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}
