package usage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPriceTable(t *testing.T) {
	prices, err := DefaultPriceTable()
	require.NoError(t, err)

	models := prices.Models()
	assert.Contains(t, models, "gpt-4o-mini")
	assert.Contains(t, models, "gemini-2.5-flash")
	assert.IsIncreasing(t, models)

	price, ok := prices.Lookup("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, "openai", price.Provider)
	assert.Equal(t, "o200k_base", price.Encoding)
	assert.Equal(t, 0.15, price.InputPerMillion)
	assert.Equal(t, 0.60, price.OutputPerMillion)
}

func TestEstimateCost(t *testing.T) {
	prices := NewPriceTable(map[string]ModelPrice{
		"gpt-x": {Provider: "openai", InputPerMillion: 2.50, OutputPerMillion: 10.00},
		"cheap": {Provider: "openai", InputPerMillion: 0.15, OutputPerMillion: 0.60},
	})

	tests := []struct {
		name  string
		model string
		usage types.TokenUsage
		want  float64
	}{
		{"zero tokens", "gpt-x", types.TokenUsage{}, 0},
		{"one million each", "gpt-x", types.TokenUsage{Input: 1_000_000, Output: 1_000_000, Total: 2_000_000}, 12.5},
		{"typical call", "gpt-x", types.TokenUsage{Input: 1200, Output: 800, Total: 2000}, 0.011},
		{"rounded to six decimals", "cheap", types.TokenUsage{Input: 7, Output: 0, Total: 7}, 0.000001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prices.EstimateCost(tt.usage, tt.model)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	prices := NewPriceTable(map[string]ModelPrice{})

	cost, err := prices.EstimateCost(types.TokenUsage{Input: 10, Output: 10, Total: 20}, "mystery-model")
	require.Error(t, err)
	assert.Zero(t, cost)

	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mystery-model", unknown.Model)
	assert.Contains(t, err.Error(), "mystery-model")
}

func TestLoadPriceTable_Override(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.yaml")
	content := `models:
  gpt-4o-mini:
    provider: openai
    encoding: o200k_base
    input_per_million: 1.0
    output_per_million: 2.0
  in-house-model:
    provider: openai
    input_per_million: 0.0
    output_per_million: 0.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	prices, err := LoadPriceTable(path)
	require.NoError(t, err)

	price, ok := prices.Lookup("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, 1.0, price.InputPerMillion)

	_, ok = prices.Lookup("in-house-model")
	assert.True(t, ok)

	_, ok = prices.Lookup("gemini-2.5-pro")
	assert.True(t, ok, "embedded entries survive an override")
}

func TestLoadPriceTable_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "models: [unclosed", "failed to parse"},
		{"negative price", "models:\n  bad:\n    provider: openai\n    input_per_million: -1\n    output_per_million: 1\n", "invalid price for model bad"},
		{"unknown provider", "models:\n  bad:\n    provider: acme\n    input_per_million: 1\n    output_per_million: 1\n", "invalid price for model bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadPriceTable(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadPriceTable(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read price table")
}

func TestPriceTable_ConcurrentReads(t *testing.T) {
	prices, err := DefaultPriceTable()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := prices.EstimateCost(types.TokenUsage{Input: 100, Output: 100, Total: 200}, "gpt-4o")
			assert.NoError(t, err)
			_ = prices.Models()
		}()
	}
	wg.Wait()
}
