package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/fetch"
	"github.com/jonathan/contract-analyzer/internal/guardrail"
	"github.com/jonathan/contract-analyzer/internal/llm"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"go.uber.org/zap"
)

// maxContractBytes caps contract text read from files or stdin
const maxContractBytes = 1 << 20

// newClient builds the provider client; replaced in tests
var newClient = func(ctx context.Context, c *llm.Config) (llm.Client, error) {
	return llm.NewClient(ctx, c)
}

// buildAnalyzer wires the analyzer from the loaded configuration.
// The caller must Close the returned client.
func buildAnalyzer(ctx context.Context) (*analysis.Analyzer, llm.Client, error) {
	prices, err := usage.LoadPriceTable(cfg.Pricing.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pricing: %w", err)
	}

	opts := []analysis.Option{
		analysis.WithRetryPolicy(cfg.RetryPolicy()),
		analysis.WithLogger(logger),
		analysis.WithTemperature(cfg.LLM.Temperature),
		analysis.WithDefaultModel(cfg.LLM.DefaultModel),
		analysis.WithAttemptTimeout(cfg.LLM.Timeout),
	}

	if cfg.Guardrail.Enabled {
		guard, err := buildGuard(cfg.Guardrail.RulesFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("guardrail enabled", zap.Strings("rules", guard.RuleNames()))
		opts = append(opts, analysis.WithGuard(guard))
	}

	client, err := newClient(ctx, cfg.ProviderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return analysis.New(client, prices, opts...), client, nil
}

func buildGuard(rulesFile string) (*guardrail.CELGuard, error) {
	if rulesFile == "" {
		guard, err := guardrail.NewDefaultGuard()
		if err != nil {
			return nil, fmt.Errorf("failed to build guardrail: %w", err)
		}
		return guard, nil
	}

	rules, err := guardrail.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}
	guard, err := guardrail.NewCELGuard(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build guardrail: %w", err)
	}
	return guard, nil
}

// newFetcher builds the URL fetcher, optionally with headless browser fallback
func newFetcher(browser bool) *fetch.CachedFetcher {
	fc := fetch.DefaultCachedFetcherConfig()
	fc.Logger = logger
	if browser {
		fc.Render = fetch.NewBrowserRenderer(fetch.DefaultBrowserTimeout, logger)
	}
	return fetch.NewCachedFetcher(fc)
}

// readContract reads contract text from a file, or from stdin when path is "" or "-".
func readContract(path string, stdin io.Reader) (string, error) {
	var r io.Reader
	name := path
	if path == "" || path == "-" {
		r, name = stdin, "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("contract file not found: %s", path)
			}
			return "", fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxContractBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > maxContractBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", name, maxContractBytes)
	}
	return string(data), nil
}

// outcomeError turns a failed outcome into a command error so the exit status is non-zero
func outcomeError(o *analysis.Outcome) error {
	if o.Succeeded() || o.Failure == nil {
		return nil
	}
	return fmt.Errorf("analysis %s (%s): %s", o.Status, o.Failure.Kind, strings.TrimSpace(o.Failure.Message))
}
