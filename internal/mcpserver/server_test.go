package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/fetch"
	"github.com/jonathan/contract-analyzer/internal/llm"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnalysis = `{
  "overall_risk_score": 35,
  "clauses": [{
    "title": "Unilateral changes",
    "risk_level": "high",
    "evidence_quotes": [{"quote": "We may modify these Terms at any time without notice.", "location": "Section 12"}],
    "plain_english": "The company can change the rules whenever it wants.",
    "negotiation_language": "Material changes require 30 days advance notice by email."
  }],
  "missing_protections": ["data export on termination"]
}`

type fakeClient struct {
	calls atomic.Int32
	last  atomic.Pointer[llm.Request]
}

func (c *fakeClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	c.last.Store(&req)
	return &llm.Response{
		Text:  validAnalysis,
		Usage: usage.ProviderUsage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300},
	}, nil
}

func (c *fakeClient) Close() error { return nil }

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.CachedResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.CachedResult{Result: &fetch.Result{URL: url, Text: f.text}}, nil
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})
	return session
}

func newTestServer(client llm.Client, opts ...Option) *Server {
	prices := usage.NewPriceTable(map[string]usage.ModelPrice{
		"gpt-x": {Provider: "openai", Encoding: "cl100k_base", InputPerMillion: 1, OutputPerMillion: 2},
	})
	analyzer := analysis.New(client, prices,
		analysis.WithDefaultModel("gpt-x"),
		analysis.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	return New(analyzer, "test", opts...)
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return res, text.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, newTestServer(&fakeClient{}))

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.InputSchema)
	}
	assert.ElementsMatch(t, []string{ToolAnalyzeContract, ToolListModels}, names)
}

func TestAnalyzeContract_Success(t *testing.T) {
	client := &fakeClient{}
	session := connect(t, newTestServer(client))

	res, text := callTool(t, session, ToolAnalyzeContract, map[string]any{
		"contract_text": "We may modify these Terms at any time without notice.",
		"contract_type": "tos",
		"persona":       "consumer",
		"jurisdiction":  []string{"US-CA"},
	})
	assert.False(t, res.IsError)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &env))
	assert.Equal(t, "gpt-x", env["modelUsed"])
	assert.NotEmpty(t, env["requestId"])
	analysisBody, ok := env["analysis"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 35, analysisBody["overall_risk_score"], 0.001)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestAnalyzeContract_InvalidRequest(t *testing.T) {
	client := &fakeClient{}
	session := connect(t, newTestServer(client))

	res, text := callTool(t, session, ToolAnalyzeContract, map[string]any{"contract_text": "   "})
	assert.True(t, res.IsError)

	var env analysis.ErrorEnvelope
	require.NoError(t, json.Unmarshal([]byte(text), &env))
	assert.Equal(t, analysis.KindInvalidRequest, env.Kind)
	assert.Nil(t, env.PartialMetrics)
	assert.Zero(t, client.calls.Load())
}

func TestAnalyzeContract_URL(t *testing.T) {
	client := &fakeClient{}
	fetcher := &fakeFetcher{text: "We may modify these Terms at any time without notice."}
	session := connect(t, newTestServer(client, WithFetcher(fetcher)))

	res, _ := callTool(t, session, ToolAnalyzeContract, map[string]any{"url": "https://example.com/terms"})
	assert.False(t, res.IsError)

	last := client.last.Load()
	require.NotNil(t, last)
	assert.Contains(t, last.Prompt, "We may modify these Terms")
	assert.Contains(t, last.Prompt, "Terms of Service")
}

func TestAnalyzeContract_URLWithoutFetcher(t *testing.T) {
	client := &fakeClient{}
	session := connect(t, newTestServer(client))

	res, text := callTool(t, session, ToolAnalyzeContract, map[string]any{"url": "https://example.com/terms"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "not enabled")
	assert.Zero(t, client.calls.Load())
}

func TestAnalyzeContract_FetchError(t *testing.T) {
	client := &fakeClient{}
	fetcher := &fakeFetcher{err: errors.New("fetch error for https://example.com/terms: HTTP status 404")}
	session := connect(t, newTestServer(client, WithFetcher(fetcher)))

	res, text := callTool(t, session, ToolAnalyzeContract, map[string]any{"url": "https://example.com/terms"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "404")
	assert.Zero(t, client.calls.Load())
}

func TestListModels(t *testing.T) {
	session := connect(t, newTestServer(&fakeClient{}))

	res, text := callTool(t, session, ToolListModels, map[string]any{})
	assert.False(t, res.IsError)

	var body struct {
		Models []modelEntry `json:"models"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &body))
	require.Len(t, body.Models, 1)
	assert.Equal(t, "gpt-x", body.Models[0].ID)
	assert.Equal(t, "openai", body.Models[0].Provider)
	assert.InDelta(t, 2.0, body.Models[0].OutputPerMillion, 1e-9)
}
