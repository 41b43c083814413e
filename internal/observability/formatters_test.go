package observability

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
)

func sampleResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		OverallRiskScore: 72,
		Clauses: []types.Clause{
			{
				Title:     "Non-compete",
				RiskLevel: types.RiskHigh,
				EvidenceQuotes: []types.EvidenceQuote{
					{Quote: "Employee shall not work for a competitor for 24 months.", Location: "Section 7"},
				},
				PlainEnglish:        "You cannot join a competitor for two years.",
				NegotiationLanguage: "Limit the restriction to 6 months.",
			},
			{
				Title:               "At-will employment",
				RiskLevel:           types.RiskLow,
				PlainEnglish:        "Either side may end employment.",
				NegotiationLanguage: "Ask for two weeks notice.",
			},
		},
		MissingProtections: []string{"severance", "IP carve-out"},
	}
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAnalysis(sampleResult())
	output := buf.String()

	assert.Contains(t, output, "CONTRACT RISK SUMMARY")
	assert.Contains(t, output, "72 / 100")
	assert.Contains(t, output, "high 1, medium 0, low 1")
	assert.Contains(t, output, "severance")
	assert.Contains(t, output, "IP carve-out")
}

func TestPrintAnalysis_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAnalysis(nil)

	assert.Empty(t, buf.String())
}

func TestPrintAnalysis_TruncatesMissingProtections(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.AnalysisResult{
		MissingProtections: []string{"a", "b", "c", "d", "e", "f", "g"},
	}
	p.PrintAnalysis(result)

	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestPrintClauses(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintClauses(sampleResult())
	output := buf.String()

	assert.Contains(t, output, "FLAGGED CLAUSES")
	assert.Contains(t, output, "[HIGH] Non-compete")
	assert.Contains(t, output, "(Section 7)")
	assert.Contains(t, output, "Limit the restriction to 6 months.")
	assert.Contains(t, output, "[LOW]  At-will employment")
}

func TestPrintClauses_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintClauses(&types.AnalysisResult{})

	assert.Empty(t, buf.String())
}

func TestPrintOutcome_Success(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(&analysis.Outcome{
		Status:    analysis.StatusSuccess,
		Result:    sampleResult(),
		Model:     "gpt-4o-mini",
		RequestID: "req-1",
		Usage: types.UsageMetrics{
			Tokens:           types.TokenUsage{Input: 1000, Output: 500, Total: 1500},
			EstimatedCostUSD: 0.00045,
			LatencyMs:        1200,
			RetryCount:       1,
		},
	})
	output := buf.String()

	assert.Contains(t, output, "CONTRACT RISK SUMMARY")
	assert.Contains(t, output, "FLAGGED CLAUSES")
	assert.Contains(t, output, "USAGE")
	assert.Contains(t, output, "1000 in / 500 out / 1500 total")
	assert.Contains(t, output, "$0.000450")
	assert.Contains(t, output, "Retries:    1")
	assert.Contains(t, output, "req-1")
}

func TestPrintOutcome_Failure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintOutcome(&analysis.Outcome{
		Status: analysis.StatusFailure,
		Failure: &analysis.Failure{
			Kind:    analysis.KindValidationFailure,
			Message: "overall_risk_score: must be <= 100",
		},
		Attempts: []analysis.AttemptRecord{
			{Attempt: 1, Kind: analysis.KindValidationFailure, LatencyMs: 40},
			{Attempt: 2, Kind: analysis.KindValidationFailure, LatencyMs: 35},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "ANALYSIS FAILED")
	assert.Contains(t, output, string(analysis.KindValidationFailure))
	assert.Contains(t, output, "must be <= 100")
	assert.Contains(t, output, "#2")
	assert.NotContains(t, output, "USAGE")
}

func TestPrintFailure_Blocked(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintFailure(&analysis.Outcome{
		Status:  analysis.StatusBlocked,
		Failure: &analysis.Failure{Kind: analysis.KindContentBlocked, Message: "prompt injection"},
	})

	assert.Contains(t, buf.String(), "ANALYSIS BLOCKED")
	assert.NotContains(t, buf.String(), "Attempts:")
}

func TestPrintBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBatchSummary([]BatchItem{
		{Name: "offer.txt", Outcome: &analysis.Outcome{
			Status: analysis.StatusSuccess,
			Result: sampleResult(),
			Usage:  types.UsageMetrics{Tokens: types.TokenUsage{Total: 100}, EstimatedCostUSD: 0.001},
		}},
		{Name: "lease.txt", Outcome: &analysis.Outcome{
			Status:  analysis.StatusFailure,
			Failure: &analysis.Failure{Kind: analysis.KindProviderError},
		}},
	})
	output := buf.String()

	assert.Contains(t, output, "BATCH SUMMARY")
	assert.Contains(t, output, "offer.txt")
	assert.Contains(t, output, "lease.txt")
	assert.Contains(t, output, "1 analyzed, 1 failed, 100 tokens, $0.001000")
}

func TestPrintBox_LineWidth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 200)+"\nshort")

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), "line %q", line)
	}
}
