// Package app assembles the monitor from configuration.
package app

import (
	"log/slog"

	"github.com/mmcdole/gofeed"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/distribute"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/arxivpage"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/email"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/feed"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/llm"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/scheduler"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/slack"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/storage"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/logging"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/usecase"
)

// Application wires configuration to use cases and owns the store.
type Application struct {
	Config   config.Config
	Store    *storage.SQLiteStore
	Monitor  *feed.Monitor
	Pipeline *usecase.Pipeline
	Queries  *usecase.QueryService
	Logger   *slog.Logger
}

// New opens the database and assembles every component. The caller is
// responsible for Close.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewFetcher(gofeed.NewParser(),
		cfg.Monitor.MaxRetries, cfg.Monitor.FetchBaseDelay(), nil,
		baseLogger.With("component", "fetcher"))

	monitor := feed.NewMonitor(fetcher, store, feed.MonitorOptions{
		PapersPerFeed:         cfg.Monitor.PapersPerFeed,
		RequestDelay:          cfg.Monitor.RequestDelay(),
		EmptyWarningThreshold: cfg.Monitor.EmptyWarningThreshold,
	}, baseLogger)

	processor := usecase.NewProcessor(store, llm.NewClaudeClient(cfg.Claude),
		cfg.Claude.FullTextLimit, baseLogger)

	registry := distribute.NewRegistry()
	if cfg.Distribution.Slack.Token != "" {
		registry.Register(slack.NewSender(cfg.Distribution.Slack.Token))
	}
	if cfg.Distribution.SMTP.Host != "" {
		registry.Register(email.NewSender(cfg.Distribution.SMTP))
	}
	distributor := distribute.NewDistributor(registry, store, baseLogger)

	pages := arxivpage.NewReader(nil,
		cfg.Monitor.MaxRetries, cfg.Monitor.LookupBaseDelay(), nil,
		baseLogger.With("component", "pages"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Monitor:         monitor,
		Processor:       processor,
		Pages:           pages,
		Downloader:      arxivpage.NewDownloader(nil),
		Notifier:        distributor,
		Logger:          baseLogger,
		Feeds:           cfg.Monitor.Feeds,
		MinRelevance:    cfg.Distribution.MinRelevance,
		SlackChannels:   cfg.Distribution.Slack.Channels,
		EmailRecipients: cfg.Distribution.EmailRecipients,
		DownloadDir:     cfg.Downloads.Dir,
	})

	return &Application{
		Config:   cfg,
		Store:    store,
		Monitor:  monitor,
		Pipeline: pipeline,
		Queries:  usecase.NewQueryService(store),
		Logger:   baseLogger,
	}, nil
}

// Watcher builds the recurring driver for watch mode.
func (a *Application) Watcher() *usecase.Watcher {
	driver := scheduler.NewIntervalScheduler(a.Config.Monitor.WatchInterval())
	return usecase.NewWatcher(driver, a.Pipeline, a.Logger)
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
