// Package llm holds the clients for the text generation services plans are
// produced by.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Providers.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Options selects and tunes a provider.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// New builds the TextGenerator for opts.Provider. The returned generator
// may also implement Closer.
func New(ctx context.Context, opts Options) (TextGenerator, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderGemini:
		return NewGeminiClient(ctx, opts)
	case ProviderGroq:
		return NewGroqClient(opts), nil
	}
	return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
}

// Close closes g if it holds resources.
func Close(g TextGenerator) error {
	if c, ok := g.(Closer); ok {
		return c.Close()
	}
	return nil
}
