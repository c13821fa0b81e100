package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// timeLayout keeps stored timestamps comparable with SQLite's own
// datetime() arithmetic used by the recent-papers window query.
const timeLayout = "2006-01-02 15:04:05"

// SQLiteStore persists papers, feed health and distribution history.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ ports.PaperStore = (*SQLiteStore)(nil)

// Open creates or connects to the database file, applies pragmas and
// bootstraps the schema.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// IsPaperProcessed reports whether the identifier exists in storage.
func (s *SQLiteStore) IsPaperProcessed(ctx context.Context, arxivID string) (bool, error) {
	query, args, err := sq.Select("1").
		From("processed_papers").
		Where(sq.Eq{"arxiv_id": arxivID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// SavePaper upserts by identifier, stamping processed_date, and returns
// the stored record.
func (s *SQLiteStore) SavePaper(ctx context.Context, paper domain.Paper) (domain.Paper, error) {
	stamp := s.timestamp()

	query, args, err := sq.Insert("processed_papers").
		Columns("arxiv_id", "processed_date", "relevance_score", "title", "authors",
			"abstract", "summary", "key_findings", "business_applications",
			"arxiv_url", "pdf_path", "token_usage").
		Values(paper.ArxivID, stamp, paper.Score, paper.Title, paper.Authors,
			paper.Abstract, paper.Summary, paper.KeyFindings, paper.Applications,
			paper.ArxivURL, paper.PDFPath, paper.TokenUsage).
		Suffix(`ON CONFLICT (arxiv_id) DO UPDATE SET
            processed_date = excluded.processed_date,
            relevance_score = excluded.relevance_score,
            title = excluded.title,
            authors = excluded.authors,
            abstract = excluded.abstract,
            summary = excluded.summary,
            key_findings = excluded.key_findings,
            business_applications = excluded.business_applications,
            arxiv_url = excluded.arxiv_url,
            pdf_path = excluded.pdf_path,
            token_usage = excluded.token_usage`).
		ToSql()
	if err != nil {
		return domain.Paper{}, fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Paper{}, fmt.Errorf("upsert paper %s: %w", paper.ArxivID, err)
	}

	stored, err := s.GetPaper(ctx, paper.ArxivID)
	if err != nil {
		return domain.Paper{}, err
	}
	if stored == nil {
		return domain.Paper{}, fmt.Errorf("paper %s vanished after upsert", paper.ArxivID)
	}
	return *stored, nil
}

const paperColumns = "arxiv_id, processed_date, relevance_score, title, authors, " +
	"abstract, summary, key_findings, business_applications, arxiv_url, pdf_path, token_usage"

// GetPaper fetches one record by identifier; nil when absent.
func (s *SQLiteStore) GetPaper(ctx context.Context, arxivID string) (*domain.Paper, error) {
	query, args, err := sq.Select(paperColumns).
		From("processed_papers").
		Where(sq.Eq{"arxiv_id": arxivID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	paper, err := scanPaper(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paper %s: %w", arxivID, err)
	}
	return &paper, nil
}

// RecentPapers returns papers processed within the last N days, newest
// first.
func (s *SQLiteStore) RecentPapers(ctx context.Context, days int) ([]domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM processed_papers
        WHERE processed_date >= datetime('now', '-' || ? || ' days')
        ORDER BY processed_date DESC`, paperColumns)

	rows, err := s.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("query recent papers: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return papers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (domain.Paper, error) {
	var (
		paper domain.Paper
		stamp string
	)
	if err := row.Scan(&paper.ArxivID, &stamp, &paper.Score, &paper.Title,
		&paper.Authors, &paper.Abstract, &paper.Summary, &paper.KeyFindings,
		&paper.Applications, &paper.ArxivURL, &paper.PDFPath, &paper.TokenUsage); err != nil {
		return domain.Paper{}, err
	}

	processed, err := time.ParseInLocation(timeLayout, stamp, time.UTC)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("parse processed_date %q: %w", stamp, err)
	}
	paper.ProcessedDate = processed
	return paper, nil
}

// UpdateFeedHealth records one fetch outcome. An entry count of zero
// increments the consecutive-empty counter; any nonzero count resets it.
func (s *SQLiteStore) UpdateFeedHealth(ctx context.Context, feedURL string, entryCount int) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO feed_health (feed_url, last_successful_fetch, last_entry_count, consecutive_empty_fetches)
        VALUES (?, ?, ?, CASE WHEN ? = 0 THEN 1 ELSE 0 END)
        ON CONFLICT (feed_url) DO UPDATE SET
            last_successful_fetch = excluded.last_successful_fetch,
            last_entry_count = excluded.last_entry_count,
            consecutive_empty_fetches = CASE
                WHEN excluded.last_entry_count = 0 THEN feed_health.consecutive_empty_fetches + 1
                ELSE 0
            END`,
		feedURL, s.timestamp(), entryCount, entryCount)
	if err != nil {
		return fmt.Errorf("update feed health %s: %w", feedURL, err)
	}
	return nil
}

// GetFeedHealth fetches the health row for a feed; nil when the feed
// has never been fetched.
func (s *SQLiteStore) GetFeedHealth(ctx context.Context, feedURL string) (*domain.FeedHealth, error) {
	query, args, err := sq.Select("feed_url", "last_successful_fetch", "last_entry_count", "consecutive_empty_fetches").
		From("feed_health").
		Where(sq.Eq{"feed_url": feedURL}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		health domain.FeedHealth
		stamp  string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&health.FeedURL, &stamp, &health.LastEntryCount, &health.ConsecutiveEmptyFetches)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feed health %s: %w", feedURL, err)
	}

	fetched, err := time.ParseInLocation(timeLayout, stamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse last_successful_fetch %q: %w", stamp, err)
	}
	health.LastSuccessfulFetch = fetched
	return &health, nil
}

// RecordFeedPaper appends provenance linking a paper to the feed that
// surfaced it. Duplicate inserts are silently ignored.
func (s *SQLiteStore) RecordFeedPaper(ctx context.Context, arxivID, feedURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO feed_paper_mapping (arxiv_id, feed_url) VALUES (?, ?)`,
		arxivID, feedURL)
	if err != nil {
		return fmt.Errorf("record feed paper %s: %w", arxivID, err)
	}
	return nil
}

// FeedPaperCount returns the number of mapping rows for a feed.
func (s *SQLiteStore) FeedPaperCount(ctx context.Context, feedURL string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("feed_paper_mapping").
		Where(sq.Eq{"feed_url": feedURL}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count feed papers: %w", err)
	}
	return count, nil
}

// LogDistribution appends one delivery attempt. Rows are never updated
// or deleted.
func (s *SQLiteStore) LogDistribution(ctx context.Context, arxivID, channel string, success bool, errorMessage string) error {
	query, args, err := sq.Insert("distribution_log").
		Columns("arxiv_id", "channel", "distribution_date", "success", "error_message").
		Values(arxivID, channel, s.timestamp(), success, errorMessage).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("log distribution %s: %w", arxivID, err)
	}
	return nil
}

// DistributionHistory returns all logged attempts for one paper in
// insertion order.
func (s *SQLiteStore) DistributionHistory(ctx context.Context, arxivID string) ([]domain.DistributionAttempt, error) {
	query, args, err := sq.Select("id", "arxiv_id", "channel", "distribution_date", "success", "error_message").
		From("distribution_log").
		Where(sq.Eq{"arxiv_id": arxivID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query distribution log: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DistributionAttempt
	for rows.Next() {
		var (
			attempt domain.DistributionAttempt
			stamp   string
		)
		if err := rows.Scan(&attempt.ID, &attempt.ArxivID, &attempt.Channel,
			&stamp, &attempt.Success, &attempt.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		when, err := time.ParseInLocation(timeLayout, stamp, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse distribution_date %q: %w", stamp, err)
		}
		attempt.Date = when
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return attempts, nil
}
