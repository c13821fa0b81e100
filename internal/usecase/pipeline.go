package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/arxivid"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// FeedMonitor scans all configured feeds and returns the new seeds.
type FeedMonitor interface {
	MonitorFeeds(ctx context.Context, feedURLs []string) ([]domain.PaperSeed, error)
}

// Notifier fans a paper out to the configured channels.
type Notifier interface {
	Distribute(ctx context.Context, paper domain.Paper, slackChannels, emailRecipients []string) error
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Monitor    FeedMonitor
	Processor  *Processor
	Pages      ports.PageReader
	Downloader ports.PDFDownloader
	Notifier   Notifier
	Logger     *slog.Logger

	Feeds           []string
	MinRelevance    int
	SlackChannels   []string
	EmailRecipients []string
	DownloadDir     string
}

// Pipeline implements the scan-score-distribute workflow.
type Pipeline struct {
	monitor    FeedMonitor
	processor  *Processor
	pages      ports.PageReader
	downloader ports.PDFDownloader
	notifier   Notifier
	logger     *slog.Logger

	feeds           []string
	minRelevance    int
	slackChannels   []string
	emailRecipients []string
	downloadDir     string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		monitor:         deps.Monitor,
		processor:       deps.Processor,
		pages:           deps.Pages,
		downloader:      deps.Downloader,
		notifier:        deps.Notifier,
		logger:          logger.With("component", "pipeline"),
		feeds:           deps.Feeds,
		minRelevance:    deps.MinRelevance,
		slackChannels:   deps.SlackChannels,
		emailRecipients: deps.EmailRecipients,
		downloadDir:     deps.DownloadDir,
	}
}

// RunReport summarizes one pipeline pass.
type RunReport struct {
	Scanned     int
	Processed   int
	Distributed int
}

// Run scans every configured feed, scores the new papers one at a time
// and distributes those at or above the relevance cutoff. Individual
// paper failures are logged and skipped; only a context cancellation
// stops the pass.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	var report RunReport

	seeds, err := p.monitor.MonitorFeeds(ctx, p.feeds)
	if err != nil {
		return report, fmt.Errorf("scan feeds: %w", err)
	}
	report.Scanned = len(seeds)

	for _, seed := range seeds {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		paper, err := p.processor.Process(ctx, seed, ProcessOptions{})
		if err != nil {
			p.logger.Error("processing failed", "paper", seed.ArxivID, "error", err)
			continue
		}
		report.Processed++

		if p.distribute(ctx, *paper) {
			report.Distributed++
		}
	}

	p.logger.Info("pipeline pass finished",
		"scanned", report.Scanned, "processed", report.Processed, "distributed", report.Distributed)
	return report, nil
}

// SingleOptions tunes ProcessSingle.
type SingleOptions struct {
	Force      bool
	Distribute bool
	Download   bool
}

// ProcessSingle scores one paper given a URL or bare identifier. Unlike
// the feed path it reads the abstract page, so the model also sees the
// page body text, and it can fetch the PDF.
func (p *Pipeline) ProcessSingle(ctx context.Context, ref string, opts SingleOptions) (*domain.Paper, error) {
	id := arxivid.Normalize(ref)
	if id == "" {
		return nil, fmt.Errorf("%q is not an arXiv paper URL or identifier", ref)
	}

	if !opts.Force {
		existing, err := p.processor.store.GetPaper(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load paper %s: %w", id, err)
		}
		if existing != nil {
			p.logger.Info("paper already processed", "paper", id)
			return existing, nil
		}
	}

	page, err := p.pages.ReadAbstractPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read abstract page for %s: %w", id, err)
	}

	seed := domain.PaperSeed{
		ArxivID:  id,
		Title:    page.Title,
		Authors:  page.Authors,
		Abstract: page.Abstract,
		ArxivURL: arxivid.AbsURL(id),
	}

	var pdfPath string
	if opts.Download && p.downloader != nil {
		pdfPath, err = p.downloader.DownloadPDF(ctx, id, p.downloadDir)
		if err != nil {
			p.logger.Warn("pdf download failed", "paper", id, "error", err)
			pdfPath = ""
		}
	}

	paper, err := p.processor.Process(ctx, seed, ProcessOptions{
		Force:    opts.Force,
		FullText: page.BodyText,
		PDFPath:  pdfPath,
	})
	if err != nil {
		return nil, err
	}

	if opts.Distribute {
		p.distribute(ctx, *paper)
	}
	return paper, nil
}

// Redistribute pushes an already-stored paper to the given channels.
// The relevance cutoff does not apply; the caller chose the paper.
func (p *Pipeline) Redistribute(ctx context.Context, paper domain.Paper, slackChannels, emailRecipients []string) error {
	if p.notifier == nil {
		return fmt.Errorf("no notification channels configured")
	}
	return p.notifier.Distribute(ctx, paper, slackChannels, emailRecipients)
}

func (p *Pipeline) distribute(ctx context.Context, paper domain.Paper) bool {
	if p.notifier == nil || paper.Score < p.minRelevance {
		return false
	}
	if err := p.notifier.Distribute(ctx, paper, p.slackChannels, p.emailRecipients); err != nil {
		p.logger.Error("distribution failed", "paper", paper.ArxivID, "error", err)
		return false
	}
	return true
}
