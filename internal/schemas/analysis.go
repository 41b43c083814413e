package schemas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/xeipuuv/gojsonschema"
)

// AnalysisSchemaName is the name sent to providers alongside the schema.
const AnalysisSchemaName = "contract_analysis"

//go:embed contract_analysis.schema.json
var analysisSchemaJSON []byte

var (
	analysisSchemaOnce sync.Once
	analysisSchema     *gojsonschema.Schema
	analysisSchemaErr  error
)

// AnalysisSchemaJSON returns the raw analysis schema document.
func AnalysisSchemaJSON() []byte {
	return bytes.Clone(analysisSchemaJSON)
}

// AnalysisSchema returns the analysis schema as a generic map for schema-guided generation.
// Each call returns a fresh copy so callers may mutate it.
func AnalysisSchema() map[string]any {
	var schema map[string]any
	if err := json.Unmarshal(analysisSchemaJSON, &schema); err != nil {
		panic(fmt.Sprintf("embedded analysis schema is not valid JSON: %v", err))
	}
	return schema
}

// compiledAnalysisSchema compiles the embedded schema once and shares it across callers.
func compiledAnalysisSchema() (*gojsonschema.Schema, error) {
	analysisSchemaOnce.Do(func() {
		analysisSchema, analysisSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisSchemaJSON))
		if analysisSchemaErr != nil {
			analysisSchemaErr = &SchemaLoadError{
				Path:    "contract_analysis.schema.json",
				Message: "failed to compile embedded schema",
				Cause:   analysisSchemaErr,
			}
		}
	})
	return analysisSchema, analysisSchemaErr
}

// ValidateAnalysis checks a candidate model response against the analysis schema.
// Soft defaults are applied before any check: an absent or null missing_protections
// becomes an empty list. Every violation is reported, each with its field path.
// Text that is not JSON at all is reported as a violation on (root).
func ValidateAnalysis(data []byte) (*types.AnalysisResult, error) {
	schema, err := compiledAnalysisSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{
			Errors: []FieldError{{Field: "(root)", Message: fmt.Sprintf("response is not valid JSON: %v", err)}},
		}
	}
	doc = applyAnalysisDefaults(doc)

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &ValidationError{
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	if err := toValidationError(result); err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode analysis: %w", err)
	}
	var analysis types.AnalysisResult
	if err := json.Unmarshal(normalized, &analysis); err != nil {
		return nil, &ValidationError{
			Errors: []FieldError{{Field: "(root)", Message: fmt.Sprintf("response does not decode into an analysis: %v", err)}},
		}
	}
	return &analysis, nil
}

// ValidateAnalysisFile reads a JSON file and validates it with ValidateAnalysis.
func ValidateAnalysisFile(path string) (*types.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("JSON file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ValidateAnalysis(data)
}

// applyAnalysisDefaults fills soft defaults on a decoded document
func applyAnalysisDefaults(doc any) any {
	obj, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	if v, exists := obj["missing_protections"]; !exists || v == nil {
		obj["missing_protections"] = []any{}
	}
	return obj
}
