package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

const anthropicVersion = "2023-06-01"

// ClaudeClient implements ports.ScoringClient against the Anthropic
// messages API.
type ClaudeClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxTokens    int
	httpClient   *http.Client
}

var _ ports.ScoringClient = (*ClaudeClient)(nil)

// NewClaudeClient builds a client from configuration.
func NewClaudeClient(cfg config.ClaudeConfig) *ClaudeClient {
	return &ClaudeClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		maxTokens:    cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Assess posts the paper context as a user message and returns the raw
// assessment text plus the total token usage.
func (c *ClaudeClient) Assess(ctx context.Context, req ports.ScoringRequest) (ports.ScoringResponse, error) {
	if c == nil {
		return ports.ScoringResponse{}, fmt.Errorf("claude client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.ScoringResponse{}, fmt.Errorf("claude client misconfigured")
	}

	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		System:      c.systemPrompt,
		Messages: []message{
			{Role: "user", Content: buildContext(req)},
		},
	})
	if err != nil {
		return ports.ScoringResponse{}, fmt.Errorf("marshal claude payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ScoringResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.ScoringResponse{}, fmt.Errorf("assess paper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ports.ScoringResponse{}, fmt.Errorf("claude error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.ScoringResponse{}, fmt.Errorf("decode claude response: %w", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return ports.ScoringResponse{}, fmt.Errorf("claude response contained no text blocks")
	}

	return ports.ScoringResponse{
		Text:       text.String(),
		TokenUsage: decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
	}, nil
}

// buildContext renders the analysis prompt. The full-text prefix, when
// present, is already truncated by the caller.
func buildContext(req ports.ScoringRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nAbstract: %s\n\n", req.Title, req.Abstract)
	if req.FullText != "" {
		fmt.Fprintf(&b, "Full text (may be truncated):\n%s\n\n", req.FullText)
	}
	b.WriteString(`Task: Analyze this research paper and evaluate its relevance to our marketplace business. Consider aspects like:
- E-commerce applications
- Marketplace dynamics
- Search and recommendation systems
- User behavior and psychology
- Economic insights
- Technical innovations applicable to our platform

Please provide:
1. Relevance score (1-10, where 10 is highly relevant)
2. Executive summary (2-3 sentences)
3. Key findings (bullet points)
4. Potential applications (bullet points)`)
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are an expert research analyst evaluating papers for business relevance."
	}
	return prompt
}
