package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/contract-analyzer/internal/llm"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slowReply = 300 * time.Millisecond

const validAnalysis = `{
  "overall_risk_score": 42,
  "clauses": [{
    "title": "Termination on notice",
    "risk_level": "medium",
    "evidence_quotes": [{"quote": "This Agreement may be terminated by either party with 30 days notice.", "location": "Section 1"}],
    "plain_english": "Either side can end the job with a month's warning.",
    "negotiation_language": "Either party may terminate with 60 days written notice."
  }],
  "missing_protections": ["severance"]
}`

// scriptedClient replies with invalid JSON when the prompt contains "UNPARSEABLE"
// and takes slowReply to answer when it contains "SLOW"
type scriptedClient struct {
	mu      sync.Mutex
	calls   atomic.Int32
	prompts []string
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.mu.Unlock()

	if strings.Contains(req.Prompt, "SLOW") {
		select {
		case <-time.After(slowReply):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := validAnalysis
	if strings.Contains(req.Prompt, "UNPARSEABLE") {
		text = "I cannot analyze this."
	}
	return &llm.Response{
		Text:  text,
		Model: req.Model,
		Usage: usage.ProviderUsage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200},
	}, nil
}

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// resetFlags restores every flag to its default so commands can run repeatedly in one process
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command in-process against a scripted client
func execute(t *testing.T, client llm.Client, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CONTRACT_RETRY_MAX_RETRIES", "0")
	t.Chdir(t.TempDir())

	orig := newClient
	newClient = func(context.Context, *llm.Config) (llm.Client, error) { return client, nil }
	t.Cleanup(func() { newClient = orig })

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const offerText = "This Agreement may be terminated by either party with 30 days notice."

func TestAnalyze_FileSummary(t *testing.T) {
	client := &scriptedClient{}
	path := writeFile(t, t.TempDir(), "offer.txt", offerText)

	out, err := execute(t, client, "", "analyze", path, "--type", "employment_offer", "--persona", "employee")
	require.NoError(t, err)

	assert.Contains(t, out, "CONTRACT RISK SUMMARY")
	assert.Contains(t, out, "42 / 100")
	assert.Contains(t, out, "Termination on notice")
	assert.Contains(t, out, "120 in / 80 out / 200 total")
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Contains(t, client.lastPrompt(), "Employment Offer")
}

func TestAnalyze_StdinJSON(t *testing.T) {
	client := &scriptedClient{}

	out, err := execute(t, client, offerText, "analyze", "--json", "-j", "US-CA", "-j", "US-NY")
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "gpt-4o-mini", env["modelUsed"])
	assert.NotEmpty(t, env["requestId"])
	assert.InDelta(t, 0, env["retryCount"], 1e-9)
	assert.Contains(t, client.lastPrompt(), "US-CA")
	assert.Contains(t, client.lastPrompt(), "US-NY")
}

func TestAnalyze_EmptyInput(t *testing.T) {
	client := &scriptedClient{}

	out, err := execute(t, client, "   \n", "analyze", "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_request")

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, "invalid_request", env["kind"])
	assert.NotContains(t, env, "partialMetrics")
	assert.Zero(t, client.calls.Load())
}

func TestAnalyze_ValidationFailure(t *testing.T) {
	client := &scriptedClient{}

	out, err := execute(t, client, "UNPARSEABLE contract text", "analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_failure")
	assert.Contains(t, out, "ANALYSIS FAILED")
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestAnalyze_FileAndURLExclusive(t *testing.T) {
	_, err := execute(t, &scriptedClient{}, "", "analyze", "contract.txt", "--url", "https://example.com/terms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestAnalyze_MissingFile(t *testing.T) {
	client := &scriptedClient{}
	_, err := execute(t, client, "", "analyze", "/does/not/exist.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract file not found")
	assert.Zero(t, client.calls.Load())
}

func TestAnalyze_URL(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><nav>Home</nav><main><p>We may suspend your account at any time for any reason.</p></main></body></html>`))
	}))
	defer page.Close()

	client := &scriptedClient{}
	_, err := execute(t, client, "", "analyze", "--url", page.URL, "--persona", "consumer")
	require.NoError(t, err)

	prompt := client.lastPrompt()
	assert.Contains(t, prompt, "We may suspend your account")
	assert.Contains(t, prompt, "Terms of Service")
	assert.NotContains(t, prompt, "Home")
}

func TestAnalyze_GuardrailBlocks(t *testing.T) {
	client := &scriptedClient{}

	_, err := execute(t, client, "Employee SSN: 123-45-6789. "+offerText, "analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
	assert.Zero(t, client.calls.Load())
}

func TestBatch(t *testing.T) {
	client := &scriptedClient{}
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	good := writeFile(t, dir, "offer.txt", offerText)
	bad := writeFile(t, dir, "lease.txt", "UNPARSEABLE lease text")

	out, err := execute(t, client, "", "batch", good, bad, "--out", outDir, "--concurrency", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 analyses failed")
	assert.Contains(t, out, "BATCH SUMMARY")
	assert.Equal(t, int32(2), client.calls.Load())

	data, err := os.ReadFile(filepath.Join(outDir, "offer.analysis.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"modelUsed"`)

	data, err = os.ReadFile(filepath.Join(outDir, "lease.analysis.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"validation_failure"`)
}

func TestBatch_WriteFailureDoesNotStopOtherRuns(t *testing.T) {
	client := &scriptedClient{}
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "fast.analysis.json"), 0o755))
	fast := writeFile(t, dir, "fast.txt", offerText)
	slow := writeFile(t, dir, "slow.txt", "SLOW "+offerText)

	out, err := execute(t, client, "", "batch", fast, slow, "--out", outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write")
	assert.NotContains(t, err.Error(), "analyses failed")
	assert.Contains(t, out, "BATCH SUMMARY")

	data, err := os.ReadFile(filepath.Join(outDir, "slow.analysis.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"modelUsed"`)
	assert.NotContains(t, string(data), "canceled")
}

func TestBatch_SameBaseNames(t *testing.T) {
	client := &scriptedClient{}
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	first := writeFile(t, filepath.Join(dir, "a"), "offer.txt", offerText)
	second := writeFile(t, filepath.Join(dir, "b"), "offer.txt", "UNPARSEABLE offer")
	lease := writeFile(t, dir, "lease.txt", offerText)

	_, err := execute(t, client, "", "batch", first, second, lease, "--out", outDir)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "offer-1.analysis.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"modelUsed"`)

	data, err = os.ReadFile(filepath.Join(outDir, "offer-2.analysis.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"validation_failure"`)

	assert.FileExists(t, filepath.Join(outDir, "lease.analysis.json"))
	assert.NoFileExists(t, filepath.Join(outDir, "offer.analysis.json"))
}

func TestEnvelopeFileNames(t *testing.T) {
	got := envelopeFileNames([]string{"a/offer.txt", "b/offer.md", "lease.txt", "notes"})
	assert.Equal(t, []string{"offer-1.analysis.json", "offer-2.analysis.json", "lease.analysis.json", "notes.analysis.json"}, got)
}

func TestBatch_MissingFileFailsBeforeAnyCall(t *testing.T) {
	client := &scriptedClient{}
	good := writeFile(t, t.TempDir(), "offer.txt", offerText)

	_, err := execute(t, client, "", "batch", good, "/does/not/exist.txt")
	require.Error(t, err)
	assert.Zero(t, client.calls.Load())
}

func TestBatch_JSON(t *testing.T) {
	client := &scriptedClient{}
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", offerText)
	b := writeFile(t, dir, "b.txt", offerText)

	out, err := execute(t, client, "", "batch", a, b, "--json")
	require.NoError(t, err)

	var bodies map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bodies))
	assert.Len(t, bodies, 2)
	assert.NotEqual(t, bodies[a]["requestId"], bodies[b]["requestId"])
}

func TestModels_JSON(t *testing.T) {
	out, err := execute(t, &scriptedClient{}, "", "models", "--json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)

	found := false
	for _, r := range rows {
		if r["id"] == "gpt-4o-mini" {
			found = true
			assert.Equal(t, true, r["default"])
			assert.Equal(t, "openai", r["provider"])
		}
	}
	assert.True(t, found)
}

func TestModels_Table(t *testing.T) {
	out, err := execute(t, &scriptedClient{}, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL")
	assert.Contains(t, out, "gemini-2.5-flash")
	assert.Contains(t, out, "(default)")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, dir, "good.json", validAnalysis)
		out, err := execute(t, &scriptedClient{}, "", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "is valid")
		assert.Contains(t, out, "CONTRACT RISK SUMMARY")
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeFile(t, dir, "bad.json", strings.Replace(validAnalysis, `"overall_risk_score": 42`, `"overall_risk_score": 150`, 1))
		out, err := execute(t, &scriptedClient{}, "", "validate", path)
		require.Error(t, err)
		assert.Contains(t, out, "is not a valid analysis")
		assert.Contains(t, out, "overall_risk_score")
	})
}

func TestValidate_CustomSchema(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "score.schema.json", `{
  "type": "object",
  "required": ["overall_risk_score"],
  "properties": {"overall_risk_score": {"type": "number", "maximum": 10}}
}`)
	path := writeFile(t, dir, "analysis.json", validAnalysis)

	out, err := execute(t, &scriptedClient{}, "", "validate", path, "--schema", schema)
	require.Error(t, err)
	assert.Contains(t, out, "overall_risk_score")

	_, err = execute(t, &scriptedClient{}, "", "validate", path, "--schema", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestValidate_SchemaFromStdin(t *testing.T) {
	path := writeFile(t, t.TempDir(), "analysis.json", validAnalysis)

	out, err := execute(t, &scriptedClient{}, `{"type": "object", "required": ["clauses"]}`, "validate", path, "--schema", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "valid against the schema on stdin")

	out, err = execute(t, &scriptedClient{}, `{"type": "object", "required": ["governing_law"]}`, "validate", path, "--schema", "-")
	require.Error(t, err)
	assert.Contains(t, out, "is not a valid analysis")
	assert.Contains(t, out, "governing_law")
}

func TestConfigFileNotFound(t *testing.T) {
	_, err := execute(t, &scriptedClient{}, "", "--config", "/does/not/exist.yaml", "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
