// Package arxivid extracts canonical ArXiv identifiers from paper URLs.
package arxivid

import "regexp"

// The two URL shapes ArXiv publishes: abstract pages and PDF links.
// The optional version suffix is part of the identifier; the .pdf
// extension is not.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`arxiv\.org/abs/(\d{4}\.\d{4,5}(?:v\d+)?)`),
	regexp.MustCompile(`arxiv\.org/pdf/(\d{4}\.\d{4,5}(?:v\d+)?)(?:\.pdf)?`),
}

var bareID = regexp.MustCompile(`^\d{4}\.\d{4,5}(?:v\d+)?$`)

// FromURL returns the canonical identifier embedded in url, or "" when
// the URL matches neither accepted shape.
func FromURL(url string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// Normalize accepts either a paper URL or a bare identifier and returns
// the canonical identifier, or "" when ref is neither.
func Normalize(ref string) string {
	if bareID.MatchString(ref) {
		return ref
	}
	return FromURL(ref)
}

// AbsURL builds the abstract-page URL for an identifier.
func AbsURL(id string) string {
	return "https://arxiv.org/abs/" + id
}

// PDFURL builds the PDF URL for an identifier.
func PDFURL(id string) string {
	return "https://arxiv.org/pdf/" + id
}
