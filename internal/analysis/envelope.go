package analysis

import (
	"net/http"

	"github.com/jonathan/contract-analyzer/internal/types"
)

// SuccessEnvelope is the caller-facing body of a successful analysis
type SuccessEnvelope struct {
	Analysis         *types.AnalysisResult `json:"analysis"`
	TokensUsed       types.TokenUsage      `json:"tokensUsed"`
	ModelUsed        string                `json:"modelUsed"`
	ProcessingTimeMs int64                 `json:"processingTime"`
	EstimatedCostUSD float64               `json:"estimatedCost"`
	LatencyMs        int64                 `json:"latencyMs"`
	RetryCount       int                   `json:"retryCount"`
	RequestID        string                `json:"requestId"`
}

// PartialMetrics are reported on failures that happened after the model was called
type PartialMetrics struct {
	LatencyMs  int64 `json:"latencyMs"`
	RetryCount int   `json:"retryCount"`
}

// ErrorEnvelope is the caller-facing body of a failed or blocked analysis
type ErrorEnvelope struct {
	Error          string          `json:"error"`
	Kind           ErrorKind       `json:"kind"`
	PartialMetrics *PartialMetrics `json:"partialMetrics,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
}

// NewEnvelope converts an outcome into an HTTP status and JSON body.
// The body is either *SuccessEnvelope or *ErrorEnvelope.
func NewEnvelope(o *Outcome) (int, any) {
	if o.Succeeded() && o.Result != nil {
		return http.StatusOK, &SuccessEnvelope{
			Analysis:         o.Result,
			TokensUsed:       o.Usage.Tokens,
			ModelUsed:        o.Model,
			ProcessingTimeMs: o.ProcessingTimeMs,
			EstimatedCostUSD: o.Usage.EstimatedCostUSD,
			LatencyMs:        o.Usage.LatencyMs,
			RetryCount:       o.Usage.RetryCount,
			RequestID:        o.RequestID,
		}
	}

	failure := o.Failure
	if failure == nil {
		failure = &Failure{Kind: KindProviderError, Message: "analysis produced no result"}
	}
	body := &ErrorEnvelope{
		Error:     failure.Message,
		Kind:      failure.Kind,
		RequestID: o.RequestID,
	}
	if o.Invoked() {
		body.PartialMetrics = &PartialMetrics{
			LatencyMs:  o.Usage.LatencyMs,
			RetryCount: o.Usage.RetryCount,
		}
	}
	return failure.Kind.HTTPStatus(), body
}
