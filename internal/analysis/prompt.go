// Package analysis runs structured contract-risk extraction against an LLM.
package analysis

import (
	"strings"

	"github.com/jonathan/contract-analyzer/internal/prompts"
	"github.com/jonathan/contract-analyzer/internal/types"
)

const (
	promptFile = "analysis.json"

	// NoJurisdiction is interpolated when the request names no jurisdiction.
	NoJurisdiction = "Not specified"
)

// Prompt is the system instruction and user prompt sent to the model
type Prompt struct {
	System string
	User   string
}

// BuildPrompt maps a request to its system instruction and user prompt.
// It is pure: the same request always yields the same prompt, byte for byte.
func BuildPrompt(req *types.AnalysisRequest) Prompt {
	jurisdiction := NoJurisdiction
	if len(req.Jurisdiction) > 0 {
		jurisdiction = strings.Join(req.Jurisdiction, ", ")
	}

	user := prompts.Format(prompts.MustGet(promptFile, "user"), map[string]string{
		"ContractType": req.ContractType.Label(),
		"Jurisdiction": jurisdiction,
		"Persona":      string(req.Persona),
		"ContractText": req.ContractText,
	})

	return Prompt{
		System: prompts.MustGet(promptFile, "system"),
		User:   user,
	}
}
