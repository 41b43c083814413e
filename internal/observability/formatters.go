// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for human-readable mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// riskMarker returns a short tag for a risk level
func riskMarker(level types.RiskLevel) string {
	switch level {
	case types.RiskHigh:
		return "[HIGH]"
	case types.RiskMedium:
		return "[MED] "
	case types.RiskLow:
		return "[LOW] "
	default:
		return "[?]   "
	}
}

// PrintAnalysis outputs the overall score, risk counts and missing protections.
func (p *Printer) PrintAnalysis(result *types.AnalysisResult) {
	if result == nil {
		return
	}

	counts := result.RiskCounts()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall risk score: %.0f / 100\n", result.OverallRiskScore))
	sb.WriteString(fmt.Sprintf("Clauses flagged:    %d (high %d, medium %d, low %d)\n",
		len(result.Clauses), counts[types.RiskHigh], counts[types.RiskMedium], counts[types.RiskLow]))

	if len(result.MissingProtections) > 0 {
		sb.WriteString("\nMissing protections:\n")
		count := min(len(result.MissingProtections), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", result.MissingProtections[i]))
		}
		if len(result.MissingProtections) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.MissingProtections)-maxItemsToShow))
		}
	}

	p.printBox("CONTRACT RISK SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintClauses outputs each flagged clause with its first quote and suggested language.
func (p *Printer) PrintClauses(result *types.AnalysisResult) {
	if result == nil || len(result.Clauses) == 0 {
		return
	}

	var sb strings.Builder
	for i, c := range result.Clauses {
		sb.WriteString(fmt.Sprintf("%s %s\n", riskMarker(c.RiskLevel), c.Title))
		if len(c.EvidenceQuotes) > 0 {
			q := c.EvidenceQuotes[0]
			sb.WriteString(fmt.Sprintf("  \"%s\"", truncate(q.Quote, 55)))
			if q.Location != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", q.Location))
			}
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("  Meaning: %s\n", c.PlainEnglish))
		sb.WriteString(fmt.Sprintf("  Ask for: %s\n", c.NegotiationLanguage))
		if i < len(result.Clauses)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("FLAGGED CLAUSES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintUsage outputs tokens, cost, latency and retries for an outcome.
func (p *Printer) PrintUsage(o *analysis.Outcome) {
	if o == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Model:      %s\n", o.Model))
	sb.WriteString(fmt.Sprintf("Tokens:     %d in / %d out / %d total\n", o.Usage.Tokens.Input, o.Usage.Tokens.Output, o.Usage.Tokens.Total))
	sb.WriteString(fmt.Sprintf("Est. cost:  $%.6f\n", o.Usage.EstimatedCostUSD))
	sb.WriteString(fmt.Sprintf("Latency:    %d ms (total %d ms)\n", o.Usage.LatencyMs, o.ProcessingTimeMs))
	sb.WriteString(fmt.Sprintf("Retries:    %d\n", o.Usage.RetryCount))
	sb.WriteString(fmt.Sprintf("Request ID: %s", o.RequestID))

	p.printBox("USAGE", sb.String())
}

// PrintFailure outputs why a run did not succeed, with the attempt history.
func (p *Printer) PrintFailure(o *analysis.Outcome) {
	if o == nil || o.Failure == nil {
		return
	}

	title := "ANALYSIS FAILED"
	if o.Status == analysis.StatusBlocked {
		title = "ANALYSIS BLOCKED"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Kind:   %s\n", o.Failure.Kind))
	sb.WriteString(fmt.Sprintf("Reason: %s\n", o.Failure.Message))
	if len(o.Attempts) > 0 {
		sb.WriteString("\nAttempts:\n")
		for _, a := range o.Attempts {
			status := "ok"
			if a.Kind != "" {
				status = string(a.Kind)
			}
			sb.WriteString(fmt.Sprintf("  #%d %-20s %6d ms\n", a.Attempt, status, a.LatencyMs))
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOutcome prints the full human-readable report for one run.
func (p *Printer) PrintOutcome(o *analysis.Outcome) {
	if o == nil {
		return
	}
	if !o.Succeeded() {
		p.PrintFailure(o)
		return
	}
	p.PrintAnalysis(o.Result)
	p.PrintClauses(o.Result)
	p.PrintUsage(o)
}

// BatchItem is one row of a batch summary
type BatchItem struct {
	Name    string
	Outcome *analysis.Outcome
}

// PrintBatchSummary outputs one line per analyzed file plus totals.
func (p *Printer) PrintBatchSummary(items []BatchItem) {
	if len(items) == 0 {
		return
	}

	var sb strings.Builder
	var totalCost float64
	var totalTokens, failed int
	for _, item := range items {
		o := item.Outcome
		if o == nil {
			continue
		}
		if o.Succeeded() {
			sb.WriteString(fmt.Sprintf("✓ %-40s score %3.0f  $%.6f\n", truncate(item.Name, 40), o.Result.OverallRiskScore, o.Usage.EstimatedCostUSD))
			totalCost += o.Usage.EstimatedCostUSD
			totalTokens += o.Usage.Tokens.Total
			continue
		}
		failed++
		sb.WriteString(fmt.Sprintf("✗ %-40s %s\n", truncate(item.Name, 40), o.Failure.Kind))
	}
	sb.WriteString(fmt.Sprintf("\n%d analyzed, %d failed, %d tokens, $%.6f", len(items)-failed, failed, totalTokens, totalCost))

	p.printBox("BATCH SUMMARY", sb.String())
}
