package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
)

// RawEntry is one syndication entry before normalization. Authors may
// arrive as a single string, a list of names, or neither.
type RawEntry struct {
	Link      string
	Title     string
	Summary   string
	Author    string
	Authors   []string
	Published string
}

// SleepFunc pauses between retries; tests inject their own to keep the
// backoff schedule observable without waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Wait is the production SleepFunc: a blocking, context-aware delay.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Parser is the slice of gofeed the fetcher needs.
type Parser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Fetcher retrieves and parses one feed URL, retrying transient
// failures with exponential backoff. A malformed feed and a transport
// error are the same thing to it: a failed fetch.
type Fetcher struct {
	parser     Parser
	maxRetries int
	baseDelay  time.Duration
	sleep      SleepFunc
	logger     *slog.Logger
}

// NewFetcher wires a fetcher. A nil parser gets a fresh gofeed parser;
// a nil sleep gets the blocking Wait.
func NewFetcher(parser Parser, maxRetries int, baseDelay time.Duration, sleep SleepFunc, logger *slog.Logger) *Fetcher {
	if parser == nil {
		parser = gofeed.NewParser()
	}
	if sleep == nil {
		sleep = Wait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		parser:     parser,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleep,
		logger:     logger,
	}
}

// Fetch returns the feed's entries, or an error once all retries are
// exhausted. The backoff before retry N is baseDelay * 2^N.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]RawEntry, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err == nil {
			return convertEntries(parsed), nil
		}
		lastErr = err

		if attempt >= f.maxRetries {
			break
		}

		delay := f.baseDelay * (1 << attempt)
		f.logger.Info("retrying feed fetch",
			"feed", feedURL,
			"attempt", attempt+1,
			"max_retries", f.maxRetries,
			"delay", delay)
		if sleepErr := f.sleep(ctx, delay); sleepErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", feedURL, sleepErr)
		}
	}
	return nil, fmt.Errorf("fetch %s after %d retries: %w", feedURL, f.maxRetries, lastErr)
}

func convertEntries(parsed *gofeed.Feed) []RawEntry {
	if parsed == nil {
		return nil
	}
	entries := make([]RawEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry := RawEntry{
			Link:      item.Link,
			Title:     item.Title,
			Summary:   item.Description,
			Published: item.Published,
		}
		if entry.Summary == "" {
			entry.Summary = item.Content
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		for _, person := range item.Authors {
			if person != nil && person.Name != "" {
				entry.Authors = append(entry.Authors, person.Name)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
