package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	groqAPIURL = "https://api.groq.com/openai/v1/chat/completions"
	groqModel  = "llama-3.3-70b-versatile"
)

// groqClient is a client for the Groq API (OpenAI-compatible chat completions).
type groqClient struct {
	apiKey      string
	url         string
	model       string
	temperature float32
	httpClient  *http.Client
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(opts Options) TextGenerator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	url := opts.BaseURL
	if url == "" {
		url = groqAPIURL
	}
	model := opts.Model
	if model == "" {
		model = groqModel
	}
	return &groqClient{
		apiKey:      opts.APIKey,
		url:         url,
		model:       model,
		temperature: opts.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// APIError is a non-200 answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groq api error: status=%d body=%s", e.Status, e.Body)
}

// GenerateContent sends a prompt to the Groq model and returns the generated text.
func (c *groqClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature":     c.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return ContentResponse{}, &APIError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var groqResp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&groqResp); err != nil {
		return ContentResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(groqResp.Choices) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	model := groqResp.Model
	if model == "" {
		model = c.model
	}
	return ContentResponse{
		Content: groqResp.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     groqResp.Usage.PromptTokens,
			CompletionTokens: groqResp.Usage.CompletionTokens,
			TotalTokens:      groqResp.Usage.TotalTokens,
			Model:            model,
		},
	}, nil
}
