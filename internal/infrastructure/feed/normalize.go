package feed

import (
	"strings"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/arxivid"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

// normalizeEntry converts a raw feed entry into a paper seed. Entries
// whose link matches neither accepted ArXiv URL shape are dropped; the
// second return value reports whether the entry survived.
func normalizeEntry(entry RawEntry) (domain.PaperSeed, bool) {
	id := arxivid.FromURL(entry.Link)
	if id == "" {
		return domain.PaperSeed{}, false
	}

	return domain.PaperSeed{
		ArxivID:       id,
		Title:         entry.Title,
		Authors:       joinAuthors(entry),
		Abstract:      entry.Summary,
		ArxivURL:      entry.Link,
		PublishedDate: entry.Published,
	}, true
}

// joinAuthors prefers the structured author list, falling back to the
// single-string field. Neither present yields "", never a nil-ish hole.
func joinAuthors(entry RawEntry) string {
	if len(entry.Authors) > 0 {
		return strings.Join(entry.Authors, ", ")
	}
	return entry.Author
}
