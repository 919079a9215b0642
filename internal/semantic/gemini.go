package semantic

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

const systemPrompt = "You are a helpful assistant that matches CSV headers to Shopify product import fields. Only return valid JSON objects."

// generator is the slice of the genai client the provider needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini suggests mappings with a Gemini model.
type Gemini struct {
	apiKey string
	model  string

	// gen overrides the SDK client; set by tests.
	gen generator
}

// NewGemini returns a Gemini provider. An empty apiKey leaves it unconfigured.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{apiKey: apiKey, model: model}
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool {
	return g != nil && (g.apiKey != "" || g.gen != nil)
}

// Suggest prompts the model with headers and fields and decodes its answer.
func (g *Gemini) Suggest(ctx context.Context, headers []string, fields []string) (map[string]string, error) {
	gen, err := g.generator(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.3)),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}

	result, err := gen.GenerateContent(ctx, g.model, genai.Text(Prompt(headers, fields)), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	return DecodeMapping(result.Text())
}

func (g *Gemini) generator(ctx context.Context) (generator, error) {
	if g.gen != nil {
		return g.gen, nil
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client.Models, nil
}

// Prompt builds the mapping instruction sent to the model.
func Prompt(headers []string, fields []string) string {
	var b strings.Builder
	b.WriteString("I have a CSV file with the following headers:\n")
	b.WriteString(strings.Join(headers, ", "))
	b.WriteString("\n\nI need to map these to Shopify product import fields:\n")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString("\n\nReturn a JSON object where:\n")
	b.WriteString("- keys are Shopify fields\n")
	b.WriteString("- values are the best matching uploaded headers\n")
	b.WriteString("- if no good match exists, use an empty string\n")
	b.WriteString("- consider semantic similarities, common variations, and abbreviations\n")
	b.WriteString("Only return the JSON object, no other text.")
	return b.String()
}
