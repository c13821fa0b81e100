package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/analysis"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// Processor scores one paper and persists the result. Scoring never
// aborts the record: a failed or unparseable assessment degrades to the
// sentinel fields and the paper is saved anyway, so it is not retried
// on the next scan.
type Processor struct {
	store         ports.PaperStore
	scorer        ports.ScoringClient
	fullTextLimit int
	logger        *slog.Logger
}

// NewProcessor wires the scoring client with the store. fullTextLimit
// caps how much body text reaches the model; zero disables full text.
func NewProcessor(store ports.PaperStore, scorer ports.ScoringClient, fullTextLimit int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:         store,
		scorer:        scorer,
		fullTextLimit: fullTextLimit,
		logger:        logger.With("component", "processor"),
	}
}

// ProcessOptions tunes a single Process call.
type ProcessOptions struct {
	// Force reprocesses a paper that already has a record, replacing it.
	Force bool
	// FullText is optional body text included in the scoring prompt.
	FullText string
	// PDFPath is recorded on the saved paper when set.
	PDFPath string
}

// Process checks for an existing record, scores the seed and saves the
// result. When the paper was already processed and Force is off, the
// stored record is returned without touching the scoring client.
func (p *Processor) Process(ctx context.Context, seed domain.PaperSeed, opts ProcessOptions) (*domain.Paper, error) {
	if !opts.Force {
		processed, err := p.store.IsPaperProcessed(ctx, seed.ArxivID)
		if err != nil {
			return nil, fmt.Errorf("check paper %s: %w", seed.ArxivID, err)
		}
		if processed {
			p.logger.Info("paper already processed", "paper", seed.ArxivID)
			existing, err := p.store.GetPaper(ctx, seed.ArxivID)
			if err != nil {
				return nil, fmt.Errorf("load paper %s: %w", seed.ArxivID, err)
			}
			if existing != nil {
				return existing, nil
			}
		}
	}

	result := p.assess(ctx, seed, opts.FullText)

	paper := domain.Paper{
		ArxivID:      seed.ArxivID,
		Title:        seed.Title,
		Authors:      seed.Authors,
		Abstract:     seed.Abstract,
		Score:        result.Score,
		Summary:      result.Summary,
		KeyFindings:  result.KeyFindings,
		Applications: result.Applications,
		ArxivURL:     seed.ArxivURL,
		PDFPath:      opts.PDFPath,
		TokenUsage:   result.TokenUsage,
	}

	saved, err := p.store.SavePaper(ctx, paper)
	if err != nil {
		return nil, fmt.Errorf("save paper %s: %w", seed.ArxivID, err)
	}
	p.logger.Info("paper processed",
		"paper", saved.ArxivID, "score", saved.Score, "tokens", saved.TokenUsage)
	return &saved, nil
}

func (p *Processor) assess(ctx context.Context, seed domain.PaperSeed, fullText string) analysis.Analysis {
	if p.fullTextLimit > 0 && len(fullText) > p.fullTextLimit {
		fullText = fullText[:p.fullTextLimit]
	}

	resp, err := p.scorer.Assess(ctx, ports.ScoringRequest{
		Title:    seed.Title,
		Abstract: seed.Abstract,
		FullText: fullText,
	})
	if err != nil {
		p.logger.Warn("scoring failed", "paper", seed.ArxivID, "error", err)
		return analysis.Degraded()
	}

	result, err := analysis.Parse(resp.Text)
	if err != nil {
		p.logger.Warn("unparseable model response", "paper", seed.ArxivID, "error", err)
		return analysis.Degraded()
	}
	result.TokenUsage = resp.TokenUsage
	return result
}
