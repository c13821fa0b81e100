// Package analysis turns the free-text relevance assessment coming back
// from the language model into structured fields.
package analysis

import (
	"fmt"
	"strings"
)

// SentinelText fills the generated fields when scoring failed or the
// response could not be parsed.
const SentinelText = "Error analyzing paper"

// Analysis is the structured result extracted from a model response.
type Analysis struct {
	Score        int
	Summary      string
	KeyFindings  string
	Applications string
	TokenUsage   int
}

// Degraded is the sentinel result persisted when the scoring step
// failed. Score 0 is reserved for this case.
func Degraded() Analysis {
	return Analysis{
		Score:        0,
		Summary:      SentinelText,
		KeyFindings:  SentinelText,
		Applications: SentinelText,
	}
}

// MalformedResponseError reports a response missing one of the required
// labeled sections. A malformed response yields no partial record; the
// caller falls back to Degraded.
type MalformedResponseError struct {
	Missing string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("model response missing %q section", e.Missing)
}

// Markers located case-insensitively, one block each.
const (
	markerScore        = "relevance score"
	markerSummary      = "summary"
	markerFindings     = "findings"
	markerApplications = "applications"
)

// Parse splits text into paragraph blocks and extracts the relevance
// score plus the three prose sections. Every marker must be present;
// otherwise a *MalformedResponseError is returned and the result is
// unusable.
func Parse(text string) (Analysis, error) {
	blocks := splitBlocks(text)

	scoreBlock, ok := findBlock(blocks, markerScore)
	if !ok {
		return Analysis{}, &MalformedResponseError{Missing: markerScore}
	}
	score, err := extractScore(scoreBlock)
	if err != nil {
		return Analysis{}, err
	}

	result := Analysis{Score: score}
	for _, section := range []struct {
		marker string
		dst    *string
	}{
		{markerSummary, &result.Summary},
		{markerFindings, &result.KeyFindings},
		{markerApplications, &result.Applications},
	} {
		block, ok := findBlock(blocks, section.marker)
		if !ok {
			return Analysis{}, &MalformedResponseError{Missing: section.marker}
		}
		*section.dst = sectionBody(block)
	}

	return result, nil
}

func splitBlocks(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			blocks = append(blocks, trimmed)
		}
	}
	return blocks
}

// findBlock returns the first block containing marker, case-insensitive.
func findBlock(blocks []string, marker string) (string, bool) {
	for _, b := range blocks {
		if strings.Contains(strings.ToLower(b), marker) {
			return b, true
		}
	}
	return "", false
}

// extractScore strips non-digits from the segment between the score
// marker and the first "/" delimiter, so "1. Relevance score: 9/10"
// yields 9, not 19.
func extractScore(block string) (int, error) {
	if idx := strings.Index(strings.ToLower(block), markerScore); idx >= 0 {
		block = block[idx+len(markerScore):]
	}
	head, _, found := strings.Cut(block, "/")
	if !found {
		head = block
	}
	var digits strings.Builder
	for _, r := range head {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, &MalformedResponseError{Missing: markerScore}
	}
	score := 0
	for _, r := range digits.String() {
		score = score*10 + int(r-'0')
	}
	if score < 0 || score > 10 {
		return 0, &MalformedResponseError{Missing: markerScore}
	}
	return score, nil
}

// sectionBody drops the leading label up to the first colon, matching
// how the model formats "Executive summary: ..." blocks.
func sectionBody(block string) string {
	if _, body, found := strings.Cut(block, ":"); found {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(block)
}
