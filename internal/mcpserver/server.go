// Package mcpserver exposes contract analysis as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/fetch"
	"github.com/jonathan/contract-analyzer/internal/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Tool names
const (
	ToolAnalyzeContract = "analyze_contract"
	ToolListModels      = "list_models"
)

// ServerName identifies this implementation to MCP clients.
const ServerName = "contract-analyzer"

// Fetcher loads contract text from a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.CachedResult, error)
}

// AnalyzeInput is the argument object of analyze_contract
type AnalyzeInput struct {
	ContractText string   `json:"contract_text,omitempty" jsonschema:"full text of the contract; required unless url is given"`
	URL          string   `json:"url,omitempty" jsonschema:"http(s) address of a published contract or terms page to fetch instead of contract_text"`
	ContractType string   `json:"contract_type,omitempty" jsonschema:"one of employment_offer, tos, nda, lease, other"`
	Jurisdiction []string `json:"jurisdiction,omitempty" jsonschema:"governing jurisdictions, for example US-CA"`
	Persona      string   `json:"persona,omitempty" jsonschema:"reviewer viewpoint: individual, employee, employer, consumer, business, tenant, landlord or contractor"`
	ModelID      string   `json:"model_id,omitempty" jsonschema:"model to use; defaults to the server's configured model"`
}

// ListModelsInput takes no arguments
type ListModelsInput struct{}

// Server wraps an MCP server bound to one analyzer
type Server struct {
	analyzer *analysis.Analyzer
	fetcher  Fetcher
	logger   *zap.Logger
	mcp      *mcp.Server
}

// Option configures a Server
type Option func(*Server)

// WithFetcher enables the url argument of analyze_contract
func WithFetcher(f Fetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithLogger sets the logger. It must not write to stdout when serving over stdio.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates the MCP server and registers its tools.
func New(analyzer *analysis.Analyzer, version string, opts ...Option) *Server {
	s := &Server{
		analyzer: analyzer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: ToolAnalyzeContract,
		Description: "Analyze a contract for risky clauses. Returns JSON with an overall risk score (0-100), " +
			"flagged clauses with verbatim evidence quotes, plain-English explanations, suggested negotiation " +
			"language, missing protections, token usage and estimated cost.",
	}, s.analyzeContract)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolListModels,
		Description: "List the models that can be used for analysis with their per-million-token prices.",
	}, s.listModels)

	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves over stdin/stdout until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) analyzeContract(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	text := input.ContractText
	contractType := types.ContractType(input.ContractType)

	if strings.TrimSpace(input.URL) != "" {
		if s.fetcher == nil {
			return errorResult("fetching by url is not enabled on this server"), nil, nil
		}
		page, err := s.fetcher.Fetch(ctx, input.URL)
		if err != nil {
			s.logger.Warn("contract fetch failed", zap.String("url", input.URL), zap.Error(err))
			return errorResult(err.Error()), nil, nil
		}
		text = page.Text
		if contractType == "" {
			contractType = types.ContractTOS
		}
	}

	req := &types.AnalysisRequest{
		ContractText: text,
		ContractType: contractType,
		Jurisdiction: input.Jurisdiction,
		Persona:      types.Persona(input.Persona),
		ModelID:      input.ModelID,
	}

	outcome := s.analyzer.Run(ctx, req)
	_, body := analysis.NewEnvelope(outcome)
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}

	s.logger.Info("analyze_contract finished",
		zap.String("request_id", outcome.RequestID),
		zap.String("status", string(outcome.Status)))

	return &mcp.CallToolResult{
		IsError: !outcome.Succeeded(),
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// modelEntry is one row of list_models
type modelEntry struct {
	ID               string  `json:"id"`
	Provider         string  `json:"provider"`
	InputPerMillion  float64 `json:"inputPerMillion"`
	OutputPerMillion float64 `json:"outputPerMillion"`
}

func (s *Server) listModels(_ context.Context, _ *mcp.CallToolRequest, _ ListModelsInput) (*mcp.CallToolResult, any, error) {
	prices := s.analyzer.Prices()
	models := make([]modelEntry, 0, len(prices.Models()))
	for _, id := range prices.Models() {
		p, _ := prices.Lookup(id)
		models = append(models, modelEntry{
			ID:               id,
			Provider:         p.Provider,
			InputPerMillion:  p.InputPerMillion,
			OutputPerMillion: p.OutputPerMillion,
		})
	}

	data, err := json.MarshalIndent(map[string]any{"models": models}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode models: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
