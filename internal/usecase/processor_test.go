package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/analysis"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/logging"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

const wellFormedResponse = `Relevance score: 9/10

Summary: Strong fit for marketplace search ranking.

Key findings: Embedding retrieval beats lexical baselines.

Applications: Could improve recommendation quality.`

// memStore is an in-memory ports.PaperStore for orchestration tests.
type memStore struct {
	papers map[string]domain.Paper
	saves  int
}

func newMemStore() *memStore {
	return &memStore{papers: map[string]domain.Paper{}}
}

func (s *memStore) IsPaperProcessed(ctx context.Context, id string) (bool, error) {
	_, ok := s.papers[id]
	return ok, nil
}

func (s *memStore) SavePaper(ctx context.Context, p domain.Paper) (domain.Paper, error) {
	s.saves++
	p.ProcessedDate = time.Now().UTC()
	s.papers[p.ArxivID] = p
	return p, nil
}

func (s *memStore) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	if p, ok := s.papers[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memStore) RecentPapers(ctx context.Context, days int) ([]domain.Paper, error) {
	out := make([]domain.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) UpdateFeedHealth(ctx context.Context, url string, count int) error { return nil }
func (s *memStore) GetFeedHealth(ctx context.Context, url string) (*domain.FeedHealth, error) {
	return nil, nil
}
func (s *memStore) RecordFeedPaper(ctx context.Context, id, url string) error { return nil }
func (s *memStore) LogDistribution(ctx context.Context, id, channel string, success bool, errMsg string) error {
	return nil
}
func (s *memStore) DistributionHistory(ctx context.Context, id string) ([]domain.DistributionAttempt, error) {
	return nil, nil
}

// fakeScorer counts calls and replays a canned response or error.
type fakeScorer struct {
	calls   int
	lastReq ports.ScoringRequest
	resp    ports.ScoringResponse
	err     error
}

func (f *fakeScorer) Assess(ctx context.Context, req ports.ScoringRequest) (ports.ScoringResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

func seed(id string) domain.PaperSeed {
	return domain.PaperSeed{
		ArxivID:  id,
		Title:    "Neural Ranking for Marketplaces",
		Authors:  "Ada Lovelace, Alan Turing",
		Abstract: "We study ranking.",
		ArxivURL: "https://arxiv.org/abs/" + id,
	}
}

func TestProcessParsesAndPersists(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	scorer := &fakeScorer{resp: ports.ScoringResponse{Text: wellFormedResponse, TokenUsage: 321}}
	proc := NewProcessor(store, scorer, 0, logging.Discard())

	paper, err := proc.Process(context.Background(), seed("2301.00001"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if paper.Score != 9 {
		t.Fatalf("expected score 9, got %d", paper.Score)
	}
	if paper.TokenUsage != 321 {
		t.Fatalf("expected token usage 321, got %d", paper.TokenUsage)
	}
	if paper.Summary != "Strong fit for marketplace search ranking." {
		t.Fatalf("unexpected summary %q", paper.Summary)
	}
	if paper.ProcessedDate.IsZero() {
		t.Fatal("expected a processed date stamp")
	}
	if store.saves != 1 {
		t.Fatalf("expected 1 save, got %d", store.saves)
	}
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.papers["2301.00001"] = domain.Paper{ArxivID: "2301.00001", Score: 8, Summary: "stored"}
	scorer := &fakeScorer{resp: ports.ScoringResponse{Text: wellFormedResponse}}
	proc := NewProcessor(store, scorer, 0, logging.Discard())

	paper, err := proc.Process(context.Background(), seed("2301.00001"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if scorer.calls != 0 {
		t.Fatalf("expected no scoring calls, got %d", scorer.calls)
	}
	if paper.Summary != "stored" {
		t.Fatalf("expected the stored record, got %+v", paper)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save, got %d", store.saves)
	}
}

func TestProcessForceReplacesRecord(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.papers["2301.00001"] = domain.Paper{ArxivID: "2301.00001", Score: 2, Summary: "old"}
	scorer := &fakeScorer{resp: ports.ScoringResponse{Text: wellFormedResponse, TokenUsage: 10}}
	proc := NewProcessor(store, scorer, 0, logging.Discard())

	paper, err := proc.Process(context.Background(), seed("2301.00001"), ProcessOptions{Force: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if scorer.calls != 1 {
		t.Fatalf("expected 1 scoring call, got %d", scorer.calls)
	}
	if paper.Score != 9 {
		t.Fatalf("expected replaced score 9, got %d", paper.Score)
	}
	if got := store.papers["2301.00001"]; got.Summary == "old" {
		t.Fatal("expected the stored record to be replaced")
	}
}

func TestProcessDegradesOnScoringError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	scorer := &fakeScorer{err: errors.New("api unavailable")}
	proc := NewProcessor(store, scorer, 0, logging.Discard())

	paper, err := proc.Process(context.Background(), seed("2301.00002"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if paper.Score != 0 || paper.Summary != analysis.SentinelText {
		t.Fatalf("expected degraded record, got %+v", paper)
	}
	if paper.TokenUsage != 0 {
		t.Fatalf("expected zero token usage, got %d", paper.TokenUsage)
	}
	if _, ok := store.papers["2301.00002"]; !ok {
		t.Fatal("degraded record must still be persisted")
	}
}

func TestProcessDegradesOnMalformedResponse(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	scorer := &fakeScorer{resp: ports.ScoringResponse{Text: "no labeled sections here", TokenUsage: 50}}
	proc := NewProcessor(store, scorer, 0, logging.Discard())

	paper, err := proc.Process(context.Background(), seed("2301.00003"), ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if paper.KeyFindings != analysis.SentinelText || paper.TokenUsage != 0 {
		t.Fatalf("expected degraded record, got %+v", paper)
	}
}

func TestProcessTruncatesFullText(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{resp: ports.ScoringResponse{Text: wellFormedResponse}}
	proc := NewProcessor(newMemStore(), scorer, 10, logging.Discard())

	long := "0123456789abcdefghij"
	_, err := proc.Process(context.Background(), seed("2301.00004"), ProcessOptions{FullText: long})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if scorer.lastReq.FullText != "0123456789" {
		t.Fatalf("expected truncated full text, got %q", scorer.lastReq.FullText)
	}
}
