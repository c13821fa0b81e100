package email

import (
	"context"
	"net"
	"testing"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

func TestDeliverSharesConnectionError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := NewSender(config.SMTPConfig{Host: "127.0.0.1", Port: port})
	recipients := []string{"a@example.com", "b@example.com"}
	deliveries := sender.Deliver(context.Background(), domain.Paper{ArxivID: "2301.00001"}, recipients)

	if len(deliveries) != len(recipients) {
		t.Fatalf("expected %d deliveries, got %d", len(recipients), len(deliveries))
	}
	for i, d := range deliveries {
		if d.Recipient != recipients[i] {
			t.Fatalf("unexpected recipient %q", d.Recipient)
		}
		if d.Err == nil {
			t.Fatalf("expected connection error for %s", d.Recipient)
		}
	}
	if deliveries[0].Err.Error() != deliveries[1].Err.Error() {
		t.Fatalf("expected a shared error, got %q and %q",
			deliveries[0].Err, deliveries[1].Err)
	}
}

func TestDeliverWithoutHost(t *testing.T) {
	t.Parallel()

	sender := NewSender(config.SMTPConfig{})
	deliveries := sender.Deliver(context.Background(), domain.Paper{ArxivID: "2301.00001"}, []string{"a@example.com"})
	if len(deliveries) != 1 || deliveries[0].Err == nil {
		t.Fatalf("expected one failed delivery, got %+v", deliveries)
	}
}
