package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

func testConfig(endpoint string) config.ClaudeConfig {
	return config.ClaudeConfig{
		Endpoint:     endpoint,
		Model:        "claude-3-haiku-20240307",
		APIKey:       "sk-test",
		SystemPrompt: "You evaluate research papers.",
		MaxTokens:    1000,
	}
}

func TestAssessParsesResponseAndTokens(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		messages, _ := req["messages"].([]any)
		if len(messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(messages))
		}
		first, _ := messages[0].(map[string]any)
		content, _ := first["content"].(string)
		if !strings.Contains(content, "Title: Attention Is All You Need") {
			t.Errorf("prompt missing title: %s", content)
		}

		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "Relevance score: 8/10"}],
			"usage": {"input_tokens": 120, "output_tokens": 80}
		}`))
	}))
	defer server.Close()

	client := NewClaudeClient(testConfig(server.URL))
	resp, err := client.Assess(context.Background(), ports.ScoringRequest{
		Title:    "Attention Is All You Need",
		Abstract: "We propose the Transformer.",
	})
	if err != nil {
		t.Fatalf("Assess returned error: %v", err)
	}
	if resp.Text != "Relevance score: 8/10" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.TokenUsage != 200 {
		t.Fatalf("expected 200 tokens, got %d", resp.TokenUsage)
	}
}

func TestAssessIncludesFullTextPrefix(t *testing.T) {
	t.Parallel()

	var gotContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		messages, _ := req["messages"].([]any)
		first, _ := messages[0].(map[string]any)
		gotContent, _ = first["content"].(string)
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}], "usage": {}}`))
	}))
	defer server.Close()

	client := NewClaudeClient(testConfig(server.URL))
	_, err := client.Assess(context.Background(), ports.ScoringRequest{
		Title:    "T",
		Abstract: "A",
		FullText: "body text here",
	})
	if err != nil {
		t.Fatalf("Assess returned error: %v", err)
	}
	if !strings.Contains(gotContent, "body text here") {
		t.Fatalf("prompt missing full text: %s", gotContent)
	}
}

func TestAssessSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClaudeClient(testConfig(server.URL))
	_, err := client.Assess(context.Background(), ports.ScoringRequest{Title: "T", Abstract: "A"})
	if err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestAssessMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewClaudeClient(config.ClaudeConfig{})
	if _, err := client.Assess(context.Background(), ports.ScoringRequest{}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
