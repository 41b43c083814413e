package llm

import (
	"context"
	"errors"
)

// Router implements Client by dispatching on the requested model identifier
type Router struct {
	OpenAI Client
	Gemini Client
}

// Generate forwards req to the provider that serves req.Model.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	provider := ProviderForModel(req.Model)

	var target Client
	switch provider {
	case ProviderGemini:
		target = r.Gemini
	default:
		target = r.OpenAI
	}

	if target == nil {
		return nil, &ProviderError{
			Provider:  provider,
			Retryable: false,
			Message:   "provider is not configured (missing API key) for model " + req.Model,
		}
	}
	return target.Generate(ctx, req)
}

// Close releases both provider clients.
func (r *Router) Close() error {
	var errs []error
	if r.OpenAI != nil {
		errs = append(errs, r.OpenAI.Close())
	}
	if r.Gemini != nil {
		errs = append(errs, r.Gemini.Close())
	}
	return errors.Join(errs...)
}
