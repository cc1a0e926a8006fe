package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/k3a/html2text"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// maxScrapeBytes caps the response body read per URL, mirroring fetch.go's 1MB guard.
const maxScrapeBytes = 1 << 20

// maxScrapeChars is the per-document truncation limit from spec §4.8.
const maxScrapeChars = 10000

// PageScrape fetches rawURL and returns its content converted to markdown-first text,
// truncated at maxScrapeChars. Grounded on the page-fetch adapter's Accept-header
// negotiation and size cap.
func (e *Enricher) PageScrape(ctx context.Context, rawURL string) gateway.EnrichmentResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Accept", "text/markdown, text/html;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", "polaris-gateway/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return gateway.EnrichmentResult{Success: false, Error: fmt.Sprintf("scrape request returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBytes))
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}

	contentType := resp.Header.Get("Content-Type")
	var content string
	if strings.Contains(contentType, "text/html") {
		content = htmlToMarkdown(string(body))
	} else {
		content = string(body)
	}

	if len(content) > maxScrapeChars {
		content = content[:maxScrapeChars] + "... [content truncated]"
	}

	return gateway.EnrichmentResult{Success: true, PayloadText: fmt.Sprintf("Source: %s\n\n%s", rawURL, content)}
}

// htmlToMarkdown prefers a markdown rendering, since it preserves link and heading
// structure for the LLM context; html2text.HTML2Text is a plain-text fallback for
// malformed markup the markdown converter rejects, per fetch.go's two-stage approach.
func htmlToMarkdown(html string) string {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html2text.HTML2Text(html)
	}
	return markdown
}

var _ gateway.Enricher = (*Enricher)(nil)
