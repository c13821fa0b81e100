package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

func TestDeliverPostsEachChannel(t *testing.T) {
	t.Parallel()

	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		payloads = append(payloads, payload)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	sender := NewSender("xoxb-test")
	sender.SetEndpoint(srv.URL)

	paper := domain.Paper{ArxivID: "2301.00001", Title: "Ranking Systems", Score: 8}
	deliveries := sender.Deliver(context.Background(), paper, []string{"#research-papers", "#ml"})

	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	for _, d := range deliveries {
		if d.Err != nil {
			t.Fatalf("delivery to %s failed: %v", d.Recipient, d.Err)
		}
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 API calls, got %d", len(payloads))
	}
	if payloads[0]["channel"] != "#research-papers" || payloads[1]["channel"] != "#ml" {
		t.Fatalf("unexpected channels: %v, %v", payloads[0]["channel"], payloads[1]["channel"])
	}
	text, _ := payloads[0]["text"].(string)
	if !strings.Contains(text, "Ranking Systems") {
		t.Fatalf("message missing title: %q", text)
	}
}

func TestDeliverReportsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error": "channel_not_found"}`))
	}))
	defer srv.Close()

	sender := NewSender("xoxb-test")
	sender.SetEndpoint(srv.URL)

	deliveries := sender.Deliver(context.Background(), domain.Paper{ArxivID: "2301.00001"}, []string{"#missing"})
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	if deliveries[0].Err == nil || !strings.Contains(deliveries[0].Err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", deliveries[0].Err)
	}
}

func TestDeliverWithoutToken(t *testing.T) {
	t.Parallel()

	sender := NewSender("")
	deliveries := sender.Deliver(context.Background(), domain.Paper{ArxivID: "2301.00001"}, []string{"#x"})
	if deliveries[0].Err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
