package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "monitor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSavePaperUpsertsAndStamps(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.SavePaper(ctx, domain.Paper{
		ArxivID:  "2301.00001",
		Title:    "Original title",
		Score:    4,
		ArxivURL: "https://arxiv.org/abs/2301.00001",
	})
	if err != nil {
		t.Fatalf("save paper: %v", err)
	}
	if first.ProcessedDate.IsZero() {
		t.Fatal("store did not stamp processed_date")
	}

	processed, err := store.IsPaperProcessed(ctx, "2301.00001")
	if err != nil {
		t.Fatalf("is processed: %v", err)
	}
	if !processed {
		t.Fatal("expected paper to be marked processed")
	}

	// Re-save with new scored fields: row is replaced, timestamp does
	// not move backwards.
	second, err := store.SavePaper(ctx, domain.Paper{
		ArxivID: "2301.00001",
		Title:   "Updated title",
		Score:   9,
		Summary: "new summary",
	})
	if err != nil {
		t.Fatalf("re-save paper: %v", err)
	}
	if second.Title != "Updated title" || second.Score != 9 {
		t.Fatalf("upsert did not replace fields: %+v", second)
	}
	if second.ProcessedDate.Before(first.ProcessedDate) {
		t.Fatalf("processed_date regressed: %v -> %v", first.ProcessedDate, second.ProcessedDate)
	}

	count := 0
	papers, err := store.RecentPapers(ctx, 1)
	if err != nil {
		t.Fatalf("recent papers: %v", err)
	}
	for _, p := range papers {
		if p.ArxivID == "2301.00001" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one row per identifier, got %d", count)
	}
}

func TestGetPaperAbsent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	paper, err := store.GetPaper(context.Background(), "9999.99999")
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if paper != nil {
		t.Fatalf("expected nil for unknown id, got %+v", paper)
	}
}

func TestRecentPapersWindow(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	store.now = func() time.Time { return old }
	if _, err := store.SavePaper(ctx, domain.Paper{ArxivID: "2201.00001", Title: "old"}); err != nil {
		t.Fatalf("save old: %v", err)
	}

	store.now = time.Now
	if _, err := store.SavePaper(ctx, domain.Paper{ArxivID: "2301.00002", Title: "fresh"}); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	papers, err := store.RecentPapers(ctx, 7)
	if err != nil {
		t.Fatalf("recent papers: %v", err)
	}
	if len(papers) != 1 || papers[0].ArxivID != "2301.00002" {
		t.Fatalf("expected only the fresh paper, got %+v", papers)
	}
}

func TestFeedHealthCounter(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	feed := "http://export.arxiv.org/rss/cs.IR"

	for i := 0; i < 3; i++ {
		if err := store.UpdateFeedHealth(ctx, feed, 0); err != nil {
			t.Fatalf("update health: %v", err)
		}
	}

	health, err := store.GetFeedHealth(ctx, feed)
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if health == nil {
		t.Fatal("expected health row")
	}
	if health.ConsecutiveEmptyFetches != 3 {
		t.Fatalf("expected counter 3, got %d", health.ConsecutiveEmptyFetches)
	}

	// A nonzero count resets the streak.
	if err := store.UpdateFeedHealth(ctx, feed, 12); err != nil {
		t.Fatalf("update health: %v", err)
	}
	health, err = store.GetFeedHealth(ctx, feed)
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if health.ConsecutiveEmptyFetches != 0 {
		t.Fatalf("expected counter reset, got %d", health.ConsecutiveEmptyFetches)
	}
	if health.LastEntryCount != 12 {
		t.Fatalf("expected entry count 12, got %d", health.LastEntryCount)
	}
}

func TestGetFeedHealthUnknownFeed(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	health, err := store.GetFeedHealth(context.Background(), "http://example.org/rss")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if health != nil {
		t.Fatalf("expected nil health for unknown feed, got %+v", health)
	}
}

func TestRecordFeedPaperIdempotent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()
	feed := "http://export.arxiv.org/rss/cs.LG"

	for i := 0; i < 3; i++ {
		if err := store.RecordFeedPaper(ctx, "2301.00001", feed); err != nil {
			t.Fatalf("record mapping: %v", err)
		}
	}

	count, err := store.FeedPaperCount(ctx, feed)
	if err != nil {
		t.Fatalf("count mappings: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 mapping row, got %d", count)
	}
}

func TestDistributionLogAppendOnly(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.SavePaper(ctx, domain.Paper{ArxivID: "2301.00001", Score: 8}); err != nil {
		t.Fatalf("save paper: %v", err)
	}

	if err := store.LogDistribution(ctx, "2301.00001", "slack:#research-papers", true, ""); err != nil {
		t.Fatalf("log success: %v", err)
	}
	if err := store.LogDistribution(ctx, "2301.00001", "email:a@example.com", false, "connection refused"); err != nil {
		t.Fatalf("log failure: %v", err)
	}

	attempts, err := store.DistributionHistory(ctx, "2301.00001")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if !attempts[0].Success || attempts[0].Channel != "slack:#research-papers" {
		t.Fatalf("unexpected first attempt: %+v", attempts[0])
	}
	if attempts[1].Success || attempts[1].ErrorMessage != "connection refused" {
		t.Fatalf("unexpected second attempt: %+v", attempts[1])
	}
}

func TestBackupMovesDatabase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	backupPath, err := Backup(path)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if backupPath == "" {
		t.Fatal("expected backup path")
	}

	// A fresh store opens cleanly over the vacated path.
	fresh, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer fresh.Close()

	processed, err := fresh.IsPaperProcessed(context.Background(), "2301.00001")
	if err != nil {
		t.Fatalf("is processed: %v", err)
	}
	if processed {
		t.Fatal("fresh database should be empty")
	}
}

func TestBackupMissingDatabase(t *testing.T) {
	t.Parallel()

	path, err := Backup(filepath.Join(t.TempDir(), "absent.db"))
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if path != "" {
		t.Fatalf("expected empty path for missing db, got %s", path)
	}
}
