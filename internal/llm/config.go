// Package llm provides centralized LLM configuration and client abstractions.
// Requests are routed to a provider by model identifier.
package llm

import (
	"strings"
	"time"
)

// ModelTier represents the cost/capability level of a model
type ModelTier string

const (
	// TierLite is the cheapest model, suitable for short contracts
	TierLite ModelTier = "lite"
	// TierStandard is the default analysis model
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long or dense contracts where recall matters most
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is the OpenAI chat completions API
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API endpoint
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds a single provider call
	DefaultTimeout = 2 * time.Minute
)

// Config holds the model and provider configuration for the application
type Config struct {
	Provider      Provider
	Models        map[ModelTier]string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	Timeout       time.Duration
}

// DefaultConfig returns the default configuration (OpenAI)
func DefaultConfig() *Config {
	return DefaultOpenAIConfig()
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4.1-nano",
			TierStandard: "gpt-4o-mini",
			TierAdvanced: "gpt-4o",
		},
		OpenAIBaseURL: DefaultOpenAIBaseURL,
		Timeout:       DefaultTimeout,
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		OpenAIBaseURL: DefaultOpenAIBaseURL,
		Timeout:       DefaultTimeout,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// DefaultModel returns the model used when a request names none.
func (c *Config) DefaultModel() string {
	return c.GetModel(TierStandard)
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := *c
	newConfig.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return &newConfig
}

// ProviderForModel returns the provider that serves a model identifier.
// Gemini models are recognised by prefix; everything else goes to OpenAI.
func ProviderForModel(model string) Provider {
	m := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(m, "gemini-") || strings.HasPrefix(m, "models/gemini-") {
		return ProviderGemini
	}
	return ProviderOpenAI
}
