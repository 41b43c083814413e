package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/observability"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the default number of contracts analyzed at once
const DefaultBatchConcurrency = 4

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Analyze many contracts concurrently",
	Long: `Analyze several contract files with the same contract type and persona.
Runs are independent: one failure does not stop the others. Each envelope can be
written to --out as <name>.analysis.json; files sharing a name get a -<position> suffix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchType         string
	batchPersona      string
	batchJurisdiction []string
	batchModel        string
	batchConcurrency  int
	batchOutDir       string
	batchJSON         bool
)

func init() {
	batchCmd.Flags().StringVarP(&batchType, "type", "t", "", "Contract type for every file")
	batchCmd.Flags().StringVarP(&batchPersona, "persona", "p", "", "Reviewer persona for every file")
	batchCmd.Flags().StringSliceVarP(&batchJurisdiction, "jurisdiction", "j", nil, "Governing jurisdictions (repeatable)")
	batchCmd.Flags().StringVarP(&batchModel, "model", "m", "", "Model ID (default from config)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", DefaultBatchConcurrency, "Maximum analyses in flight")
	batchCmd.Flags().StringVarP(&batchOutDir, "out", "o", "", "Directory for per-file JSON envelopes")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print all envelopes as a JSON object keyed by file")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	// read everything first so a missing file fails before any model call
	texts := make([]string, len(args))
	for i, path := range args {
		if path == "-" {
			return fmt.Errorf("batch does not read stdin; pass file paths")
		}
		text, err := readContract(path, nil)
		if err != nil {
			return err
		}
		texts[i] = text
	}

	if batchOutDir != "" {
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	ctx := cmd.Context()
	analyzer, client, err := buildAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	names := envelopeFileNames(args)
	items := make([]observability.BatchItem, len(args))
	writeErrs := make([]error, len(args))

	// the group never sees an error, so one item cannot cancel the others
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, path := range args {
		g.Go(func() error {
			outcome := analyzer.Run(ctx, &types.AnalysisRequest{
				ContractText: texts[i],
				ContractType: types.ContractType(batchType),
				Jurisdiction: batchJurisdiction,
				Persona:      types.Persona(batchPersona),
				ModelID:      batchModel,
			})
			items[i] = observability.BatchItem{Name: path, Outcome: outcome}
			logger.Info("batch item finished",
				zap.String("file", path),
				zap.String("request_id", outcome.RequestID),
				zap.String("status", string(outcome.Status)))

			if batchOutDir != "" {
				if err := writeEnvelopeFile(filepath.Join(batchOutDir, names[i]), path, outcome); err != nil {
					logger.Error("failed to write batch result", zap.String("file", path), zap.Error(err))
					writeErrs[i] = err
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if batchJSON {
		bodies := make(map[string]any, len(items))
		for _, item := range items {
			_, body := analysis.NewEnvelope(item.Outcome)
			bodies[item.Name] = body
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(bodies); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	} else {
		observability.NewPrinter(cmd.OutOrStdout()).PrintBatchSummary(items)
	}

	failed := 0
	for _, item := range items {
		if !item.Outcome.Succeeded() {
			failed++
		}
	}
	var errs []error
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d analyses failed", failed, len(items)))
	}
	errs = append(errs, writeErrs...)
	return errors.Join(errs...)
}

// envelopeFileNames maps each input to <base name>.analysis.json. Inputs that
// share a base name get their 1-based argument position as a suffix.
func envelopeFileNames(paths []string) []string {
	bases := make([]string, len(paths))
	seen := make(map[string]int, len(paths))
	for i, path := range paths {
		bases[i] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		seen[bases[i]]++
	}

	names := make([]string, len(paths))
	for i, base := range bases {
		if seen[base] > 1 {
			base = fmt.Sprintf("%s-%d", base, i+1)
		}
		names[i] = base + ".analysis.json"
	}
	return names
}

// writeEnvelopeFile writes the envelope for the contract at path to out
func writeEnvelopeFile(out, path string, outcome *analysis.Outcome) error {
	_, body := analysis.NewEnvelope(outcome)
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result for %s: %w", path, err)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}
