package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/app"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/config"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/storage"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/logging"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "arxivmonitor",
		Usage: "Monitor arXiv RSS feeds, score papers for marketplace relevance and distribute the hits",
		Commands: []*cli.Command{
			rssCommand(),
			processCommand(),
			queryCommand(),
			distributeCommand(),
			dbCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp loads configuration and assembles the application.
func newApp() (*app.Application, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(cfg, logging.New(cfg.Logging.Level))
}

func rssCommand() *cli.Command {
	return &cli.Command{
		Name:  "rss",
		Usage: "Feed monitoring pipeline",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Scan all feeds once, score and distribute new papers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					report, err := application.Pipeline.Run(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Scanned %d new papers, processed %d, distributed %d\n",
						report.Scanned, report.Processed, report.Distributed)
					return nil
				},
			},
			{
				Name:      "feed",
				Usage:     "Scan a single feed URL and list the new papers",
				ArgsUsage: "<feed-url>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					feedURL := cmd.Args().First()
					if feedURL == "" {
						return fmt.Errorf("a feed URL is required")
					}
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					seeds, err := application.Monitor.FetchFeed(ctx, feedURL)
					if err != nil {
						return err
					}
					for _, seed := range seeds {
						fmt.Printf("%s  %s\n", seed.ArxivID, seed.Title)
					}
					fmt.Printf("%d new papers\n", len(seeds))
					return nil
				},
			},
			{
				Name:  "health",
				Usage: "Report the health of every configured feed",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					for _, feedURL := range application.Config.Monitor.Feeds {
						report, err := application.Monitor.CheckHealth(ctx, feedURL)
						if err != nil {
							return err
						}
						fmt.Printf("%-10s %s\n           %s\n", report.Status, feedURL, report.Message)
					}
					return nil
				},
			},
			{
				Name:  "recent",
				Usage: "List recently processed papers",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: 7, Usage: "window in days"},
					&cli.IntFlag{Name: "min-relevance", Value: 0, Usage: "minimum relevance score"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					papers, err := application.Queries.Recent(ctx,
						int(cmd.Int("days")), int(cmd.Int("min-relevance")))
					if err != nil {
						return err
					}
					printPapers(papers)
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "Run the pipeline on the configured interval until interrupted",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					watcher := application.Watcher()
					if err := watcher.Start(ctx); err != nil {
						return err
					}
					<-ctx.Done()
					return watcher.Stop(context.Background())
				},
			},
		},
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Score and store a single paper by URL or identifier",
		ArgsUsage: "<url-or-arxiv-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "arXiv paper URL"},
			&cli.StringFlag{Name: "arxiv-id", Usage: "bare arXiv identifier"},
			&cli.BoolFlag{Name: "force", Usage: "reprocess even if a record exists"},
			&cli.BoolFlag{Name: "save-only", Usage: "skip distribution"},
			&cli.BoolFlag{Name: "download", Usage: "also download the PDF"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ref := cmd.Args().First()
			if ref == "" {
				ref = cmd.String("url")
			}
			if ref == "" {
				ref = cmd.String("arxiv-id")
			}
			if ref == "" {
				return fmt.Errorf("a paper URL or arXiv identifier is required")
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			paper, err := application.Pipeline.ProcessSingle(ctx, ref, usecase.SingleOptions{
				Force:      cmd.Bool("force"),
				Distribute: !cmd.Bool("save-only"),
				Download:   cmd.Bool("download"),
			})
			if err != nil {
				return err
			}
			printPapers([]domain.Paper{*paper})
			return nil
		},
	}
}

func queryCommand() *cli.Command {
	daysFlag := &cli.IntFlag{Name: "days", Value: 7, Usage: "window in days"}
	minFlag := &cli.IntFlag{Name: "min-relevance", Value: 0, Usage: "minimum relevance score"}

	return &cli.Command{
		Name:  "query",
		Usage: "Inspect the processed-paper database",
		Commands: []*cli.Command{
			{
				Name:  "recent",
				Usage: "List papers in the window",
				Flags: []cli.Flag{daysFlag, minFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					papers, err := application.Queries.Recent(ctx,
						int(cmd.Int("days")), int(cmd.Int("min-relevance")))
					if err != nil {
						return err
					}
					printPapers(papers)
					return nil
				},
			},
			{
				Name:      "range",
				Usage:     "List papers processed between two dates",
				ArgsUsage: "<from YYYY-MM-DD> <to YYYY-MM-DD>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("a from and to date are required")
					}
					from, err := time.Parse("2006-01-02", cmd.Args().Get(0))
					if err != nil {
						return fmt.Errorf("invalid from date: %w", err)
					}
					to, err := time.Parse("2006-01-02", cmd.Args().Get(1))
					if err != nil {
						return fmt.Errorf("invalid to date: %w", err)
					}
					to = to.Add(24*time.Hour - time.Second)

					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					papers, err := application.Queries.Range(ctx, from, to)
					if err != nil {
						return err
					}
					printPapers(papers)
					return nil
				},
			},
			{
				Name:      "search",
				Usage:     "Search titles, abstracts and summaries",
				ArgsUsage: "<keyword>",
				Flags:     []cli.Flag{daysFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					keyword := cmd.Args().First()
					if keyword == "" {
						return fmt.Errorf("a search keyword is required")
					}
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					papers, err := application.Queries.Search(ctx, keyword, int(cmd.Int("days")))
					if err != nil {
						return err
					}
					printPapers(papers)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "Export papers in the window as CSV",
				Flags: []cli.Flag{
					daysFlag, minFlag,
					&cli.StringFlag{Name: "out", Usage: "output file (default stdout)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					out := os.Stdout
					if path := cmd.String("out"); path != "" {
						f, err := os.Create(path)
						if err != nil {
							return err
						}
						defer f.Close()
						out = f
					}
					return application.Queries.ExportCSV(ctx, out,
						int(cmd.Int("days")), int(cmd.Int("min-relevance")))
				},
			},
			{
				Name:  "stats",
				Usage: "Aggregate statistics for the window",
				Flags: []cli.Flag{daysFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					application, err := newApp()
					if err != nil {
						return err
					}
					defer application.Close()

					stats, err := application.Queries.Summarize(ctx, int(cmd.Int("days")))
					if err != nil {
						return err
					}
					fmt.Printf("Papers:        %d\n", stats.Total)
					fmt.Printf("Degraded:      %d\n", stats.Degraded)
					fmt.Printf("Average score: %.2f\n", stats.AverageScore)
					fmt.Printf("Tokens used:   %d\n", stats.TokenUsage)
					for score := 10; score >= 0; score-- {
						if n := stats.ByScore[score]; n > 0 {
							fmt.Printf("  score %2d: %d\n", score, n)
						}
					}
					return nil
				},
			},
		},
	}
}

func distributeCommand() *cli.Command {
	return &cli.Command{
		Name:  "distribute",
		Usage: "Push stored papers to notification channels",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "arxiv-id", Usage: "distribute one stored paper"},
			&cli.BoolFlag{Name: "recent", Usage: "distribute recent relevant papers"},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "window for --recent"},
			&cli.IntFlag{Name: "min-relevance", Value: -1, Usage: "score cutoff for --recent (default from config)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "list the papers without sending"},
			&cli.BoolFlag{Name: "slack-only", Usage: "skip email delivery"},
			&cli.BoolFlag{Name: "email-only", Usage: "skip Slack delivery"},
			&cli.StringSliceFlag{Name: "channel", Usage: "override Slack channels"},
			&cli.StringSliceFlag{Name: "email", Usage: "override email recipients"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Close()

			papers, err := papersToDistribute(ctx, cmd, application)
			if err != nil {
				return err
			}
			if len(papers) == 0 {
				fmt.Println("Nothing to distribute")
				return nil
			}

			if cmd.Bool("dry-run") {
				printPapers(papers)
				return nil
			}

			slackChannels := application.Config.Distribution.Slack.Channels
			if override := cmd.StringSlice("channel"); len(override) > 0 {
				slackChannels = override
			}
			emailRecipients := application.Config.Distribution.EmailRecipients
			if override := cmd.StringSlice("email"); len(override) > 0 {
				emailRecipients = override
			}
			if cmd.Bool("slack-only") {
				emailRecipients = nil
			}
			if cmd.Bool("email-only") {
				slackChannels = nil
			}

			for _, paper := range papers {
				if err := application.Pipeline.Redistribute(ctx, paper, slackChannels, emailRecipients); err != nil {
					return err
				}
			}
			fmt.Printf("Distributed %d papers\n", len(papers))
			return nil
		},
	}
}

func papersToDistribute(ctx context.Context, cmd *cli.Command, application *app.Application) ([]domain.Paper, error) {
	if id := cmd.String("arxiv-id"); id != "" {
		paper, err := application.Store.GetPaper(ctx, id)
		if err != nil {
			return nil, err
		}
		if paper == nil {
			return nil, fmt.Errorf("paper %s has not been processed", id)
		}
		return []domain.Paper{*paper}, nil
	}

	if !cmd.Bool("recent") {
		return nil, fmt.Errorf("either --arxiv-id or --recent is required")
	}

	min := int(cmd.Int("min-relevance"))
	if min < 0 {
		min = application.Config.Distribution.MinRelevance
	}
	return application.Queries.Recent(ctx, int(cmd.Int("days")), min)
}

func dbCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database maintenance",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Move the database aside into the backups directory",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					dest, err := storage.Backup(cfg.Database.Path)
					if err != nil {
						return err
					}
					if dest == "" {
						fmt.Println("No database to back up")
						return nil
					}
					fmt.Println("Database backed up to", dest)
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "Back up the current database and start a fresh one",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					dest, err := storage.Backup(cfg.Database.Path)
					if err != nil {
						return err
					}
					if dest != "" {
						fmt.Println("Previous database backed up to", dest)
					}

					store, err := storage.Open(cfg.Database.Path)
					if err != nil {
						return err
					}
					defer store.Close()
					fmt.Println("Fresh database created at", cfg.Database.Path)
					return nil
				},
			},
		},
	}
}

func printPapers(papers []domain.Paper) {
	for _, paper := range papers {
		fmt.Printf("%s  [%d/10]  %s\n", paper.ArxivID, paper.Score, paper.Title)
		if paper.Summary != "" {
			fmt.Printf("    %s\n", paper.Summary)
		}
		fmt.Printf("    %s\n", paper.ArxivURL)
	}
	fmt.Printf("%d papers\n", len(papers))
}
