package arxivpage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/arxivid"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/infrastructure/feed"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

const userAgent = "arxiv-research-monitor/1.0"

// Reader scrapes abstract pages for the single-paper processing path,
// where no feed entry supplies the metadata. Lookups retry with a
// shorter backoff than feed fetches.
type Reader struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	sleep      feed.SleepFunc
	baseURL    string
	logger     *slog.Logger
}

var _ ports.PageReader = (*Reader)(nil)

// NewReader wires an HTTP client; nil gets a 20s-timeout default.
func NewReader(client *http.Client, maxRetries int, baseDelay time.Duration, sleep feed.SleepFunc, logger *slog.Logger) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if sleep == nil {
		sleep = feed.Wait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      sleep,
		logger:     logger,
	}
}

// SetBaseURL overrides the arxiv.org origin, for tests.
func (r *Reader) SetBaseURL(base string) {
	r.baseURL = strings.TrimSuffix(base, "/")
}

func (r *Reader) absURL(arxivID string) string {
	if r.baseURL != "" {
		return r.baseURL + "/abs/" + arxivID
	}
	return arxivid.AbsURL(arxivID)
}

// ReadAbstractPage fetches and extracts one abstract page.
func (r *Reader) ReadAbstractPage(ctx context.Context, arxivID string) (ports.PageData, error) {
	pageURL := r.absURL(arxivID)

	var lastErr error
	for attempt := 0; ; attempt++ {
		doc, err := r.fetchDocument(ctx, pageURL)
		if err == nil {
			return extractPage(doc), nil
		}
		lastErr = err

		if attempt >= r.maxRetries {
			break
		}
		delay := r.baseDelay * (1 << attempt)
		r.logger.Info("retrying abstract page", "id", arxivID, "attempt", attempt+1, "delay", delay)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return ports.PageData{}, fmt.Errorf("read %s: %w", pageURL, sleepErr)
		}
	}
	return ports.PageData{}, fmt.Errorf("read %s after %d retries: %w", pageURL, r.maxRetries, lastErr)
}

func (r *Reader) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractPage(doc *goquery.Document) ports.PageData {
	title := strings.TrimSpace(doc.Find("h1.title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := strings.TrimSpace(doc.Find("blockquote.abstract").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	var authors []string
	doc.Find("div.authors a").Each(func(i int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	body := strings.TrimSpace(doc.Find("#abs").First().Text())
	if body == "" {
		body = strings.TrimSpace(doc.Find("body").First().Text())
	}

	return ports.PageData{
		Title:    title,
		Authors:  strings.Join(authors, ", "),
		Abstract: abstract,
		BodyText: body,
	}
}
