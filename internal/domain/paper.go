package domain

import "time"

// PaperSeed is the raw material for processing: feed or page metadata
// plus the canonical ArXiv identifier, before any scoring happened.
type PaperSeed struct {
	ArxivID       string
	Title         string
	Authors       string
	Abstract      string
	ArxivURL      string
	PublishedDate string
	FeedURL       string
}

// Paper is the persisted record of a processed paper. Exactly one row
// exists per ArxivID; reprocessing with force replaces it in place.
type Paper struct {
	ArxivID       string
	Title         string
	Authors       string
	Abstract      string
	Score         int
	Summary       string
	KeyFindings   string
	Applications  string
	ArxivURL      string
	PDFPath       string
	TokenUsage    int
	ProcessedDate time.Time
}

// FeedHealth mirrors one feed_health row.
type FeedHealth struct {
	FeedURL                 string
	LastSuccessfulFetch     time.Time
	LastEntryCount          int
	ConsecutiveEmptyFetches int
}

// HealthStatus classifies a feed for reporting.
type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
)

// HealthReport is the derived, read-only view returned by health checks.
type HealthReport struct {
	Status                  HealthStatus
	Message                 string
	LastCheck               time.Time
	ConsecutiveEmptyFetches int
}

// DistributionAttempt is one append-only distribution_log row. The
// channel string is "kind:address", e.g. "slack:#research-papers".
type DistributionAttempt struct {
	ID           int64
	ArxivID      string
	Channel      string
	Success      bool
	ErrorMessage string
	Date         time.Time
}
