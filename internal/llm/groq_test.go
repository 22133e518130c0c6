package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGroq_GenerateContent(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama-test","choices":[{"message":{"content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`))
	}))
	defer srv.Close()

	g := NewGroqClient(Options{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
	resp, err := g.GenerateContent(context.Background(), "make a plan")
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 || resp.Usage.Model != "llama-test" {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != groqModel {
		t.Errorf("model = %v", gotBody["model"])
	}
}

func TestGroq_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGroqClient(Options{BaseURL: srv.URL})
	_, err := g.GenerateContent(context.Background(), "p")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want APIError 429", err)
	}
}

func TestGroq_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	g := NewGroqClient(Options{BaseURL: srv.URL})
	if _, err := g.GenerateContent(ctx, "p"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Options{Provider: "parrot"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
