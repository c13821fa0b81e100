package arxivpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rafeco-etsy/arxiv-research-monitor/internal/arxivid"
	"github.com/rafeco-etsy/arxiv-research-monitor/internal/ports"
)

// Downloader saves paper PDFs as local artifacts.
type Downloader struct {
	client  *http.Client
	baseURL string
}

var _ ports.PDFDownloader = (*Downloader)(nil)

// NewDownloader wires an HTTP client; nil gets a 60s-timeout default
// since PDFs run large.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{client: client}
}

// SetBaseURL overrides the arxiv.org origin, for tests.
func (d *Downloader) SetBaseURL(base string) {
	d.baseURL = strings.TrimSuffix(base, "/")
}

func (d *Downloader) pdfURL(arxivID string) string {
	if d.baseURL != "" {
		return d.baseURL + "/pdf/" + arxivID
	}
	return arxivid.PDFURL(arxivID)
}

// DownloadPDF fetches the paper's PDF into destDir and returns the
// written path. The file is named after the identifier.
func (d *Downloader) DownloadPDF(ctx context.Context, arxivID, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.pdfURL(arxivID), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("arxiv returned %s", resp.Status)
	}

	// Version suffixes stay in the filename so forced reprocessing of
	// a new revision does not clobber the old artifact.
	path := filepath.Join(destDir, arxivID+".pdf")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
