package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/contract-analyzer/internal/usage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Generate runs one GenerateContent call with a JSON response schema.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := c.client.GenerativeModel(strings.TrimPrefix(req.Model, "models/"))
	model.SetTemperature(req.Temperature)
	model.ResponseMIMEType = "application/json"
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.Schema != nil {
		schema, err := SchemaFromJSON(req.Schema)
		if err != nil {
			return nil, &ProviderError{Provider: ProviderGemini, Message: "unsupported response schema", Cause: err}
		}
		model.ResponseSchema = schema
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Retryable: true, Message: "malformed response", Cause: err}
	}

	out := &Response{Text: text, Model: req.Model}
	if resp.UsageMetadata != nil {
		out.Usage = usage.ProviderUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// classifyGeminiError maps SDK errors onto the provider error taxonomy
func classifyGeminiError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return &RateLimitError{Provider: ProviderGemini, Message: apiErr.Message, Cause: err}
		}
		return &ProviderError{
			Provider:   ProviderGemini,
			StatusCode: apiErr.Code,
			Retryable:  retryableStatus(apiErr.Code),
			Message:    "generate content failed",
			Cause:      err,
		}
	}

	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return &RateLimitError{Provider: ProviderGemini, Cause: err}
	}
	if strings.Contains(err.Error(), "blocked") {
		return &ProviderError{Provider: ProviderGemini, Message: "response blocked by provider safety filters", Cause: err}
	}
	return &ProviderError{Provider: ProviderGemini, Retryable: true, Message: "generate content failed", Cause: err}
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// SchemaFromJSON converts a JSON Schema document into the subset Gemini understands:
// type, description, enum, properties, required and items.
func SchemaFromJSON(doc map[string]any) (*genai.Schema, error) {
	typeName, _ := doc["type"].(string)
	schema := &genai.Schema{}
	if desc, ok := doc["description"].(string); ok {
		schema.Description = desc
	}

	switch typeName {
	case "object":
		schema.Type = genai.TypeObject
		props, _ := doc["properties"].(map[string]any)
		if len(props) > 0 {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				child, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("property %q is not a schema object", name)
				}
				converted, err := SchemaFromJSON(child)
				if err != nil {
					return nil, fmt.Errorf("property %q: %w", name, err)
				}
				schema.Properties[name] = converted
			}
		}
		schema.Required = stringList(doc["required"])
	case "array":
		schema.Type = genai.TypeArray
		items, ok := doc["items"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("array schema without items")
		}
		converted, err := SchemaFromJSON(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		schema.Items = converted
	case "string":
		schema.Type = genai.TypeString
		schema.Enum = stringList(doc["enum"])
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typeName)
	}
	return schema, nil
}

// stringList converts a decoded JSON array of strings
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
