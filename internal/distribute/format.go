package distribute

import (
	"fmt"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/domain"
)

// SlackMessage renders a paper with Slack's mrkdwn emphasis.
func SlackMessage(paper domain.Paper) string {
	return fmt.Sprintf(`*New Relevant Research Paper*
*Title*: %s
*Authors*: %s
*Relevance Score*: %d/10
*ArXiv Link*: %s

*Executive Summary*
%s

*Key Findings*
%s

*Potential Applications*
%s`,
		paper.Title, paper.Authors, paper.Score, paper.ArxivURL,
		paper.Summary, paper.KeyFindings, paper.Applications)
}

// PlainMessage renders a paper for email bodies.
func PlainMessage(paper domain.Paper) string {
	return fmt.Sprintf(`New Relevant Research Paper

Title: %s
Authors: %s
Relevance Score: %d/10
ArXiv Link: %s

Executive Summary
%s

Key Findings
%s

Potential Applications
%s`,
		paper.Title, paper.Authors, paper.Score, paper.ArxivURL,
		paper.Summary, paper.KeyFindings, paper.Applications)
}
