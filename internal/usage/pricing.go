package usage

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/contract-analyzer/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var defaultPricingYAML []byte

// costPrecision is the number of decimal places costs are rounded to.
const costPrecision = 1e6

// ModelPrice is the per-model price table entry
type ModelPrice struct {
	Provider         string  `yaml:"provider" json:"provider" validate:"required,oneof=openai gemini"`
	Encoding         string  `yaml:"encoding" json:"encoding"`
	InputPerMillion  float64 `yaml:"input_per_million" json:"inputPerMillion" validate:"gte=0"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"outputPerMillion" validate:"gte=0"`
}

// pricingFile is the on-disk layout of a price table
type pricingFile struct {
	Models map[string]ModelPrice `yaml:"models"`
}

// PriceTable maps model identifiers to unit prices.
// It is read-only after construction and safe for concurrent use.
type PriceTable struct {
	models map[string]ModelPrice
}

var priceValidator = validator.New()

// NewPriceTable builds a table from explicit entries.
func NewPriceTable(models map[string]ModelPrice) *PriceTable {
	copied := make(map[string]ModelPrice, len(models))
	for name, price := range models {
		copied[strings.TrimSpace(name)] = price
	}
	return &PriceTable{models: copied}
}

// DefaultPriceTable returns the embedded price table.
func DefaultPriceTable() (*PriceTable, error) {
	return LoadPriceTable("")
}

// LoadPriceTable loads the embedded price table and, when overridePath is set,
// merges the entries of that YAML file over it.
func LoadPriceTable(overridePath string) (*PriceTable, error) {
	models, err := parsePricing(defaultPricingYAML, "embedded pricing.yaml")
	if err != nil {
		return nil, err
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, &PricingError{Message: fmt.Sprintf("failed to read price table %s", overridePath), Cause: err}
		}
		overrides, err := parsePricing(data, overridePath)
		if err != nil {
			return nil, err
		}
		for name, price := range overrides {
			models[name] = price
		}
	}

	return NewPriceTable(models), nil
}

// parsePricing decodes and validates one price table document
func parsePricing(data []byte, source string) (map[string]ModelPrice, error) {
	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &PricingError{Message: fmt.Sprintf("failed to parse price table %s", source), Cause: err}
	}

	for name, price := range file.Models {
		if strings.TrimSpace(name) == "" {
			return nil, &PricingError{Message: fmt.Sprintf("price table %s has an entry with an empty model name", source)}
		}
		if err := priceValidator.Struct(price); err != nil {
			return nil, &PricingError{Message: fmt.Sprintf("invalid price for model %s in %s", name, source), Cause: err}
		}
	}

	if file.Models == nil {
		file.Models = make(map[string]ModelPrice)
	}
	return file.Models, nil
}

// Lookup returns the price entry for a model.
func (p *PriceTable) Lookup(model string) (ModelPrice, bool) {
	price, ok := p.models[strings.TrimSpace(model)]
	return price, ok
}

// Models returns the known model identifiers in sorted order.
func (p *PriceTable) Models() []string {
	names := make([]string, 0, len(p.models))
	for name := range p.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EstimateCost converts token counts into an estimated USD cost for the model.
// Unknown models fail with *UnknownModelError instead of returning zero.
func (p *PriceTable) EstimateCost(usage types.TokenUsage, model string) (float64, error) {
	price, ok := p.Lookup(model)
	if !ok {
		return 0, &UnknownModelError{Model: model}
	}
	if usage.Input < 0 || usage.Output < 0 {
		return 0, &PricingError{Message: fmt.Sprintf("negative token counts for model %s", model)}
	}

	cost := float64(usage.Input)/1_000_000*price.InputPerMillion +
		float64(usage.Output)/1_000_000*price.OutputPerMillion
	return math.Round(cost*costPrecision) / costPrecision, nil
}
