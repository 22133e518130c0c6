package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiClient is a client for the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, opts Options) (TextGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	name := opts.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(opts.Temperature)
	model.ResponseMIMEType = "application/json"
	return &geminiClient{client: client, model: model, name: name}, nil
}

// GenerateContent sends a prompt to the Gemini model and returns the generated text.
func (c *geminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return ContentResponse{}, fmt.Errorf("generated content is not text")
	}

	usage := TokenUsage{Model: c.name}
	if md := resp.UsageMetadata; md != nil {
		usage.PromptTokens = int(md.PromptTokenCount)
		usage.CompletionTokens = int(md.CandidatesTokenCount)
		usage.TotalTokens = int(md.TotalTokenCount)
	}
	return ContentResponse{Content: b.String(), Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *geminiClient) Close() error {
	return c.client.Close()
}
