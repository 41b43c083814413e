package llm

import (
	"context"

	"github.com/jonathan/contract-analyzer/internal/usage"
)

// Client is an abstraction over LLM providers.
// Implementations make exactly one provider call per Generate and never retry.
type Client interface {
	// Generate asks the model for output shaped by req.Schema
	Generate(ctx context.Context, req Request) (*Response, error)
	// Close releases any resources held by the client
	Close() error
}

// Request is one schema-guided generation call
type Request struct {
	Model       string
	System      string
	Prompt      string
	SchemaName  string
	Schema      map[string]any
	Temperature float32
}

// Response is the raw model output and provider-reported usage
type Response struct {
	Text  string
	Usage usage.ProviderUsage
	Model string
}

// NewClient creates a client that routes each request to the provider serving its model.
// Providers without an API key are left unconfigured; requests for them fail without retry.
func NewClient(ctx context.Context, config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	router := &Router{}
	if config.OpenAIAPIKey != "" {
		router.OpenAI = NewOpenAIClient(config.OpenAIAPIKey, config.OpenAIBaseURL, config.Timeout)
	}
	if config.GeminiAPIKey != "" {
		gemini, err := NewGeminiClient(ctx, config.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		router.Gemini = gemini
	}
	return router, nil
}
