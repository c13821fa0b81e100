package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// EntryFetcher is what the monitor needs from a Fetcher.
type EntryFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]RawEntry, error)
}

// Monitor walks feeds one at a time: fetch, normalize, deduplicate
// against the store, cap per feed, record provenance, update health.
type Monitor struct {
	fetcher       EntryFetcher
	store         ports.PaperStore
	papersPerFeed int
	requestDelay  time.Duration
	warnThreshold int
	sleep         SleepFunc
	logger        *slog.Logger
}

// MonitorOptions tunes a Monitor.
type MonitorOptions struct {
	PapersPerFeed         int
	RequestDelay          time.Duration
	EmptyWarningThreshold int
	Sleep                 SleepFunc
}

// NewMonitor wires the feed monitor.
func NewMonitor(fetcher EntryFetcher, store ports.PaperStore, opts MonitorOptions, logger *slog.Logger) *Monitor {
	if opts.PapersPerFeed <= 0 {
		opts.PapersPerFeed = 10
	}
	if opts.EmptyWarningThreshold <= 0 {
		opts.EmptyWarningThreshold = 3
	}
	if opts.Sleep == nil {
		opts.Sleep = Wait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		fetcher:       fetcher,
		store:         store,
		papersPerFeed: opts.PapersPerFeed,
		requestDelay:  opts.RequestDelay,
		warnThreshold: opts.EmptyWarningThreshold,
		sleep:         opts.Sleep,
		logger:        logger,
	}
}

// MonitorFeeds scans every feed in order and returns the new paper
// seeds across all of them. A failing feed degrades to zero entries;
// it never aborts the batch.
func (m *Monitor) MonitorFeeds(ctx context.Context, feedURLs []string) ([]domain.PaperSeed, error) {
	var all []domain.PaperSeed
	for i, feedURL := range feedURLs {
		seeds, err := m.FetchFeed(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			m.logger.Error("feed scan failed", "feed", feedURL, "error", err)
			continue
		}
		m.logger.Info("feed scanned", "feed", feedURL, "new_papers", len(seeds))
		all = append(all, seeds...)

		if i < len(feedURLs)-1 {
			if err := m.sleep(ctx, m.requestDelay); err != nil {
				return all, err
			}
		}
	}
	return all, nil
}

// FetchFeed fetches one feed and returns its new, capped paper seeds.
// Exactly one health update is recorded per call: the raw entry count
// on success, zero after exhausted retries.
func (m *Monitor) FetchFeed(ctx context.Context, feedURL string) ([]domain.PaperSeed, error) {
	m.logger.Info("fetching feed", "feed", feedURL)

	entries, fetchErr := m.fetcher.Fetch(ctx, feedURL)
	if fetchErr != nil {
		m.logger.Error("feed fetch exhausted retries", "feed", feedURL, "error", fetchErr)
		if err := m.store.UpdateFeedHealth(ctx, feedURL, 0); err != nil {
			return nil, fmt.Errorf("record feed failure: %w", err)
		}
		return nil, nil
	}

	var seeds []domain.PaperSeed
	for _, entry := range entries {
		seed, ok := normalizeEntry(entry)
		if !ok {
			m.logger.Warn("could not extract ArXiv ID", "link", entry.Link)
			continue
		}

		processed, err := m.store.IsPaperProcessed(ctx, seed.ArxivID)
		if err != nil {
			return nil, fmt.Errorf("dedupe %s: %w", seed.ArxivID, err)
		}
		if processed {
			continue
		}

		seed.FeedURL = feedURL
		if err := m.store.RecordFeedPaper(ctx, seed.ArxivID, feedURL); err != nil {
			return nil, fmt.Errorf("record provenance %s: %w", seed.ArxivID, err)
		}
		seeds = append(seeds, seed)

		if len(seeds) >= m.papersPerFeed {
			m.logger.Info("reached per-feed cap", "feed", feedURL, "cap", m.papersPerFeed)
			break
		}
	}

	if err := m.store.UpdateFeedHealth(ctx, feedURL, len(entries)); err != nil {
		return nil, fmt.Errorf("record feed health: %w", err)
	}
	return seeds, nil
}

// CheckHealth derives a feed's status from its stored health row. It
// reads only; no counters move.
func (m *Monitor) CheckHealth(ctx context.Context, feedURL string) (domain.HealthReport, error) {
	health, err := m.store.GetFeedHealth(ctx, feedURL)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("load feed health: %w", err)
	}
	if health == nil {
		return domain.HealthReport{
			Status:  domain.HealthUnknown,
			Message: "No health data available",
		}, nil
	}

	report := domain.HealthReport{
		Status:                  domain.HealthHealthy,
		Message:                 "Feed is operating normally",
		LastCheck:               health.LastSuccessfulFetch,
		ConsecutiveEmptyFetches: health.ConsecutiveEmptyFetches,
	}
	if health.ConsecutiveEmptyFetches > m.warnThreshold {
		report.Status = domain.HealthWarning
		report.Message = fmt.Sprintf("Feed has been empty for %d consecutive checks", health.ConsecutiveEmptyFetches)
	}
	return report, nil
}
