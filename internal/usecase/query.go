package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/analysis"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// QueryService answers read-only questions about the processed papers.
type QueryService struct {
	store ports.PaperStore
}

// NewQueryService wraps a store for reporting.
func NewQueryService(store ports.PaperStore) *QueryService {
	return &QueryService{store: store}
}

// Recent returns papers processed within the window, filtered by a
// minimum relevance score. minScore 0 includes degraded records.
func (q *QueryService) Recent(ctx context.Context, days, minScore int) ([]domain.Paper, error) {
	papers, err := q.store.RecentPapers(ctx, days)
	if err != nil {
		return nil, err
	}
	if minScore <= 0 {
		return papers, nil
	}
	filtered := papers[:0]
	for _, p := range papers {
		if p.Score >= minScore {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Range returns papers whose processed date falls inside [from, to].
func (q *QueryService) Range(ctx context.Context, from, to time.Time) ([]domain.Paper, error) {
	days := int(time.Since(from).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	papers, err := q.store.RecentPapers(ctx, days)
	if err != nil {
		return nil, err
	}
	var inRange []domain.Paper
	for _, p := range papers {
		if p.ProcessedDate.Before(from) || p.ProcessedDate.After(to) {
			continue
		}
		inRange = append(inRange, p)
	}
	return inRange, nil
}

// Search returns papers in the window whose title, abstract or summary
// contains keyword, case-insensitively.
func (q *QueryService) Search(ctx context.Context, keyword string, days int) ([]domain.Paper, error) {
	papers, err := q.store.RecentPapers(ctx, days)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	var matched []domain.Paper
	for _, p := range papers {
		haystack := strings.ToLower(p.Title + "\n" + p.Abstract + "\n" + p.Summary)
		if strings.Contains(haystack, needle) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// ExportCSV writes the window's papers as CSV rows.
func (q *QueryService) ExportCSV(ctx context.Context, w io.Writer, days, minScore int) error {
	papers, err := q.Recent(ctx, days, minScore)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"arxiv_id", "title", "authors", "relevance_score",
		"summary", "key_findings", "business_applications", "arxiv_url", "processed_date"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range papers {
		row := []string{
			p.ArxivID, p.Title, p.Authors, strconv.Itoa(p.Score),
			p.Summary, p.KeyFindings, p.Applications, p.ArxivURL,
			p.ProcessedDate.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Stats summarizes a window of processed papers.
type Stats struct {
	Total        int
	Degraded     int
	AverageScore float64
	TokenUsage   int
	ByScore      map[int]int
}

// Summarize computes aggregate statistics for the window. Degraded
// records count toward the total but not the average score.
func (q *QueryService) Summarize(ctx context.Context, days int) (Stats, error) {
	papers, err := q.store.RecentPapers(ctx, days)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(papers), ByScore: map[int]int{}}
	scored := 0
	sum := 0
	for _, p := range papers {
		stats.TokenUsage += p.TokenUsage
		if p.Summary == analysis.SentinelText {
			stats.Degraded++
			continue
		}
		stats.ByScore[p.Score]++
		sum += p.Score
		scored++
	}
	if scored > 0 {
		stats.AverageScore = float64(sum) / float64(scored)
	}
	return stats, nil
}
