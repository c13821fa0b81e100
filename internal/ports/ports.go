package ports

import (
	"context"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

// PaperStore owns all persisted state: processed papers, feed health,
// feed-paper provenance and the distribution log. It is the sole
// mutator; every other component goes through it.
type PaperStore interface {
	IsPaperProcessed(ctx context.Context, arxivID string) (bool, error)
	SavePaper(ctx context.Context, paper domain.Paper) (domain.Paper, error)
	GetPaper(ctx context.Context, arxivID string) (*domain.Paper, error)
	RecentPapers(ctx context.Context, days int) ([]domain.Paper, error)

	UpdateFeedHealth(ctx context.Context, feedURL string, entryCount int) error
	GetFeedHealth(ctx context.Context, feedURL string) (*domain.FeedHealth, error)
	RecordFeedPaper(ctx context.Context, arxivID, feedURL string) error

	LogDistribution(ctx context.Context, arxivID, channel string, success bool, errorMessage string) error
	DistributionHistory(ctx context.Context, arxivID string) ([]domain.DistributionAttempt, error)
}

// ScoringRequest is what the model sees: title and abstract, plus an
// optional full-text prefix on the richer single-paper path.
type ScoringRequest struct {
	Title    string
	Abstract string
	FullText string
}

// ScoringResponse carries the unstructured assessment text and the
// token count the call consumed.
type ScoringResponse struct {
	Text       string
	TokenUsage int
}

// ScoringClient evaluates a paper's business relevance. Transport
// failures are expected; callers degrade, never abort.
type ScoringClient interface {
	Assess(ctx context.Context, req ScoringRequest) (ScoringResponse, error)
}

// PageData is the metadata scraped from an abstract page.
type PageData struct {
	Title    string
	Authors  string
	Abstract string
	BodyText string
}

// PageReader fetches and extracts an abstract page for one identifier.
type PageReader interface {
	ReadAbstractPage(ctx context.Context, arxivID string) (PageData, error)
}

// PDFDownloader saves the paper's PDF locally and returns the path.
type PDFDownloader interface {
	DownloadPDF(ctx context.Context, arxivID, destDir string) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
