// Package email delivers papers over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/distribute"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

// Sender implements distribute.Sender for the "email" channel kind.
// One SMTP session covers a whole batch of recipients; a session that
// cannot be established yields one failed delivery per recipient with
// the shared connection error.
type Sender struct {
	cfg config.SMTPConfig
}

var _ distribute.Sender = (*Sender)(nil)

// NewSender captures the SMTP settings.
func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Kind identifies this sender inside the registry.
func (s *Sender) Kind() string {
	return "email"
}

// Deliver sends the paper to every recipient over a single session.
func (s *Sender) Deliver(ctx context.Context, paper domain.Paper, recipients []string) []distribute.Delivery {
	client, err := s.connect()
	if err != nil {
		shared := fmt.Errorf("SMTP connection failed: %v", err)
		deliveries := make([]distribute.Delivery, 0, len(recipients))
		for _, recipient := range recipients {
			deliveries = append(deliveries, distribute.Delivery{Recipient: recipient, Err: shared})
		}
		return deliveries
	}
	defer func() { _ = client.Quit() }()

	subject := "New Research Paper: " + paper.Title
	body := distribute.PlainMessage(paper)

	deliveries := make([]distribute.Delivery, 0, len(recipients))
	for _, recipient := range recipients {
		deliveries = append(deliveries, distribute.Delivery{
			Recipient: recipient,
			Err:       s.sendOne(client, recipient, subject, body),
		})
	}
	return deliveries
}

func (s *Sender) connect() (*smtp.Client, error) {
	if s.cfg.Host == "" {
		return nil, fmt.Errorf("smtp sender misconfigured")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, err
	}

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

func (s *Sender) sendOne(client *smtp.Client, recipient, subject, body string) error {
	from := s.cfg.FromEmail
	if from == "" {
		from = "noreply@example.com"
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		_ = client.Reset()
		return fmt.Errorf("rcpt to %s: %w", recipient, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if _, err := wc.Write([]byte(msg.String())); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return nil
}
