package usage

import (
	"encoding/json"

	"github.com/jonathan/contract-analyzer/internal/types"
)

// ProviderUsage is the usage a provider reported for one call. Zero values mean "not reported".
type ProviderUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reported reports whether the provider supplied a usable total.
func (u ProviderUsage) Reported() bool {
	return u.TotalTokens > 0
}

// EstimateUsage returns token counts for one call.
//
// When provider.TotalTokens > 0 the provider's numbers are returned verbatim,
// even if they do not add up. Otherwise inputText and the JSON serialization of
// output are encoded with tok and Total is Input + Output.
func EstimateUsage(provider ProviderUsage, inputText string, output any, tok Tokenizer) (types.TokenUsage, error) {
	if provider.Reported() {
		return types.TokenUsage{
			Input:  provider.PromptTokens,
			Output: provider.CompletionTokens,
			Total:  provider.TotalTokens,
		}, nil
	}

	if tok == nil {
		return types.TokenUsage{}, &TokenizerError{Message: "provider reported no usage and no tokenizer is available"}
	}

	serialized, err := json.Marshal(output)
	if err != nil {
		return types.TokenUsage{}, &TokenizerError{Message: "failed to serialize output for token counting", Cause: err}
	}

	input := len(tok.Encode(inputText))
	out := len(tok.Encode(string(serialized)))
	return types.TokenUsage{
		Input:  input,
		Output: out,
		Total:  input + out,
	}, nil
}
