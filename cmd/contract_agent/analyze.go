package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/observability"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze one contract",
	Long: `Analyze a contract read from a file, from stdin ("-" or no argument) or from a URL.
Prints a boxed summary, or the JSON result envelope with --json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeURL          string
	analyzeType         string
	analyzePersona      string
	analyzeJurisdiction []string
	analyzeModel        string
	analyzeJSON         bool
	analyzeBrowser      bool
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeURL, "url", "u", "", "Fetch the contract text from a URL")
	analyzeCmd.Flags().StringVarP(&analyzeType, "type", "t", "", "Contract type: employment_offer, tos, nda, lease or other")
	analyzeCmd.Flags().StringVarP(&analyzePersona, "persona", "p", "", "Reviewer persona, e.g. employee, consumer, tenant")
	analyzeCmd.Flags().StringSliceVarP(&analyzeJurisdiction, "jurisdiction", "j", nil, "Governing jurisdictions (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeModel, "model", "m", "", "Model ID (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the JSON result envelope")
	analyzeCmd.Flags().BoolVar(&analyzeBrowser, "browser", false, "Render script-heavy pages in headless Chrome when fetching --url")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeURL != "" && len(args) > 0 {
		return fmt.Errorf("a file argument and --url are mutually exclusive; provide only one")
	}

	ctx := cmd.Context()
	contractType := types.ContractType(analyzeType)

	var text string
	if analyzeURL != "" {
		page, err := newFetcher(analyzeBrowser).Fetch(ctx, analyzeURL)
		if err != nil {
			return fmt.Errorf("failed to fetch contract: %w", err)
		}
		logger.Debug("fetched contract",
			zap.String("url", analyzeURL),
			zap.Bool("rendered", page.Rendered),
			zap.Int("text_length", len(page.Text)))
		text = page.Text
		if contractType == "" {
			contractType = types.ContractTOS
		}
	} else {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		var err error
		text, err = readContract(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
	}

	analyzer, client, err := buildAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	outcome := analyzer.Run(ctx, &types.AnalysisRequest{
		ContractText: text,
		ContractType: contractType,
		Jurisdiction: analyzeJurisdiction,
		Persona:      types.Persona(analyzePersona),
		ModelID:      analyzeModel,
	})

	if analyzeJSON {
		if err := writeEnvelope(cmd, outcome); err != nil {
			return err
		}
	} else {
		observability.NewPrinter(cmd.OutOrStdout()).PrintOutcome(outcome)
	}

	return outcomeError(outcome)
}

// writeEnvelope prints the caller-facing JSON body of an outcome
func writeEnvelope(cmd *cobra.Command, outcome *analysis.Outcome) error {
	_, body := analysis.NewEnvelope(outcome)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
