package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/jonathan/contract-analyzer/internal/usage"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List priced models",
	Long:  "List every model in the price table (embedded defaults merged with pricing.file) with per-million-token prices.",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	prices, err := usage.LoadPriceTable(cfg.Pricing.File)
	if err != nil {
		return fmt.Errorf("failed to load pricing: %w", err)
	}

	type row struct {
		ID string `json:"id"`
		usage.ModelPrice
		Default bool `json:"default,omitempty"`
	}
	rows := make([]row, 0, len(prices.Models()))
	for _, id := range prices.Models() {
		p, _ := prices.Lookup(id)
		rows = append(rows, row{ID: id, ModelPrice: p, Default: id == cfg.LLM.DefaultModel})
	}

	out := cmd.OutOrStdout()
	if modelsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPROVIDER\tINPUT $/1M\tOUTPUT $/1M\t") //nolint:errcheck
	for _, r := range rows {
		marker := ""
		if r.Default {
			marker = "(default)"
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%s\n", r.ID, r.Provider, r.InputPerMillion, r.OutputPerMillion, marker) //nolint:errcheck
	}
	return w.Flush()
}
