package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/contract-analyzer/internal/observability"
	"github.com/jonathan/contract-analyzer/internal/schemas"
	"github.com/spf13/cobra"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate <analysis.json>",
	Short: "Validate an analysis JSON file against the schema",
	Long: `Check a saved analysis (the model output, not the envelope) against the built-in
analysis schema and print a summary when it passes. --schema validates against
another JSON Schema file instead, with no soft defaults applied; "--schema -"
reads that schema from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateSchema, "schema", "s", "", "JSON Schema file to validate against instead of the built-in schema (- for stdin)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if validateSchema == "-" {
		schema, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read schema from stdin: %w", err)
		}
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if err := schemas.ValidateJSONString(string(schema), string(doc)); err != nil {
			return reportValidation(cmd, args[0], err)
		}
		fmt.Fprintf(out, "%s is valid against the schema on stdin\n", args[0]) //nolint:errcheck
		return nil
	}

	if validateSchema != "" {
		schemaPath := schemas.ResolveSchemaPath(validateSchema)
		if schemaPath == "" {
			return fmt.Errorf("schema file not found: %s", validateSchema)
		}
		if err := schemas.ValidateJSON(schemaPath, args[0]); err != nil {
			return reportValidation(cmd, args[0], err)
		}
		fmt.Fprintf(out, "%s is valid against %s\n", args[0], schemaPath) //nolint:errcheck
		return nil
	}

	result, err := schemas.ValidateAnalysisFile(args[0])
	if err != nil {
		return reportValidation(cmd, args[0], err)
	}

	fmt.Fprintf(out, "%s is valid\n", args[0]) //nolint:errcheck
	observability.NewPrinter(out).PrintAnalysis(result)
	return nil
}

// reportValidation lists schema violations; other errors are returned unchanged
func reportValidation(cmd *cobra.Command, path string, err error) error {
	var validationErr *schemas.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s is not a valid analysis:\n", path) //nolint:errcheck
	for _, fe := range validationErr.Errors {
		fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message) //nolint:errcheck
	}
	return fmt.Errorf("validation failed with %d error(s)", len(validationErr.Errors))
}
