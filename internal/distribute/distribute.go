// Package distribute fans a scored paper out to notification channels
// and records every attempt in the distribution log.
package distribute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// Delivery is the outcome of one attempt to one recipient.
type Delivery struct {
	Recipient string
	Err       error
}

// Sender pushes a paper to every recipient of one channel kind. A
// transport that cannot connect at all still reports one Delivery per
// intended recipient, sharing the connection error.
type Sender interface {
	Kind() string
	Deliver(ctx context.Context, paper domain.Paper, recipients []string) []Delivery
}

// Registry keeps a mapping from channel kinds to their senders.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: map[string]Sender{}}
}

// Register adds or replaces a sender implementation.
func (r *Registry) Register(sender Sender) {
	if r.senders == nil {
		r.senders = map[string]Sender{}
	}
	r.senders[sender.Kind()] = sender
}

// Resolve returns a sender by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Sender, error) {
	if sender, ok := r.senders[kind]; ok {
		return sender, nil
	}
	return nil, fmt.Errorf("channel kind %s is not registered", kind)
}

// Distributor routes papers to channels. Send failures are logged, not
// returned; only a failure to write the log itself surfaces.
type Distributor struct {
	registry *Registry
	store    ports.PaperStore
	logger   *slog.Logger
}

// NewDistributor wires the channel registry with the store.
func NewDistributor(registry *Registry, store ports.PaperStore, logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{registry: registry, store: store, logger: logger}
}

// Distribute delivers the paper to every slack channel and email
// recipient, logging one attempt row per recipient per channel.
func (d *Distributor) Distribute(ctx context.Context, paper domain.Paper, slackChannels, emailRecipients []string) error {
	if err := d.send(ctx, paper, "slack", slackChannels); err != nil {
		return err
	}
	return d.send(ctx, paper, "email", emailRecipients)
}

func (d *Distributor) send(ctx context.Context, paper domain.Paper, kind string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	sender, err := d.registry.Resolve(kind)
	if err != nil {
		d.logger.Warn("channel not configured", "kind", kind)
		return nil
	}

	for _, delivery := range sender.Deliver(ctx, paper, recipients) {
		channel := kind + ":" + delivery.Recipient
		if delivery.Err != nil {
			d.logger.Error("distribution failed",
				"paper", paper.ArxivID, "channel", channel, "error", delivery.Err)
			if logErr := d.store.LogDistribution(ctx, paper.ArxivID, channel, false, delivery.Err.Error()); logErr != nil {
				return fmt.Errorf("log failed attempt: %w", logErr)
			}
			continue
		}

		d.logger.Info("paper distributed", "paper", paper.ArxivID, "channel", channel)
		if logErr := d.store.LogDistribution(ctx, paper.ArxivID, channel, true, ""); logErr != nil {
			return fmt.Errorf("log attempt: %w", logErr)
		}
	}
	return nil
}
