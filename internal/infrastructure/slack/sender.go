// Package slack posts papers to Slack channels via the Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/distribute"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

const defaultEndpoint = "https://slack.com/api/chat.postMessage"

// Sender implements distribute.Sender for the "slack" channel kind.
type Sender struct {
	token    string
	endpoint string
	client   *http.Client
}

var _ distribute.Sender = (*Sender)(nil)

// NewSender registers the bot token.
func NewSender(token string) *Sender {
	return &Sender{
		token:    token,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetEndpoint overrides the Slack API URL, for tests.
func (s *Sender) SetEndpoint(endpoint string) {
	s.endpoint = endpoint
}

// Kind identifies this sender inside the registry.
func (s *Sender) Kind() string {
	return "slack"
}

// Deliver posts the paper to each channel in turn. Channels fail
// independently of each other.
func (s *Sender) Deliver(ctx context.Context, paper domain.Paper, channels []string) []distribute.Delivery {
	deliveries := make([]distribute.Delivery, 0, len(channels))
	message := distribute.SlackMessage(paper)
	for _, channel := range channels {
		deliveries = append(deliveries, distribute.Delivery{
			Recipient: channel,
			Err:       s.post(ctx, channel, message),
		})
	}
	return deliveries
}

func (s *Sender) post(ctx context.Context, channel, message string) error {
	if s.token == "" {
		return fmt.Errorf("slack sender misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"channel":      channel,
		"text":         message,
		"unfurl_links": true,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack error: %s", resp.Status)
	}

	var decoded struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !decoded.OK {
		return fmt.Errorf("slack error: %s", decoded.Error)
	}
	return nil
}
