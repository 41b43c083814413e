// Package types provides type definitions for structured data used throughout the contract analyzer.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RiskLevel is the severity assigned to a flagged clause
type RiskLevel string

// Risk levels accepted by the analysis schema
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MinQuoteLength is the shortest evidence quote the schema accepts.
const MinQuoteLength = 15

// EvidenceQuote is a verbatim excerpt that substantiates a flagged clause
type EvidenceQuote struct {
	Quote    string `json:"quote"`
	Location string `json:"location"`
}

// Clause represents one risk-annotated provision extracted from a contract
type Clause struct {
	Title               string          `json:"title"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	EvidenceQuotes      []EvidenceQuote `json:"evidence_quotes"`
	PlainEnglish        string          `json:"plain_english"`
	NegotiationLanguage string          `json:"negotiation_language"`
}

// AnalysisResult is the root object returned by the model after schema validation
type AnalysisResult struct {
	OverallRiskScore   float64  `json:"overall_risk_score"`
	Clauses            []Clause `json:"clauses"`
	MissingProtections []string `json:"missing_protections"`
}

// RiskCounts returns the number of clauses per risk level.
func (r *AnalysisResult) RiskCounts() map[RiskLevel]int {
	counts := map[RiskLevel]int{
		RiskLow:    0,
		RiskMedium: 0,
		RiskHigh:   0,
	}
	if r == nil {
		return counts
	}
	for _, clause := range r.Clauses {
		counts[clause.RiskLevel]++
	}
	return counts
}

// TokenUsage holds input/output token counts for one model call
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// UsageMetrics holds the usage reported for one orchestration run
type UsageMetrics struct {
	Tokens           TokenUsage `json:"tokens"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	LatencyMs        int64      `json:"latency_ms"`
	RetryCount       int        `json:"retry_count"`
}
