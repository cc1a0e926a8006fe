// Package enrichment implements the external tool adapters (C8): web search, video
// transcript retrieval, and page scraping, normalized into labeled text blocks. The web
// search provider is configuration-driven with graceful fallback across configured
// providers (tavily/linkup), grounded on the source's unified_search.get_preferred_search_tool.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// SearchProvider performs a web search and returns raw result items.
type SearchProvider interface {
	Name() string
	HasCredential() bool
	Search(ctx context.Context, query string) ([]SearchItem, error)
}

// SearchItem is one normalized search result, matching the union of Tavily's and
// Linkup's result shapes.
type SearchItem struct {
	Title   string
	URL     string
	Content string
}

// Enricher implements gateway.Enricher.
type Enricher struct {
	preferred string
	providers []SearchProvider
	client    *http.Client
	firecrawlKey string
}

// Config controls provider selection and credentials.
type Config struct {
	PreferredSearchProvider string
	FirecrawlAPIKey         string
}

// New constructs an Enricher. providers is tried in preference order: the configured
// preferred provider first (if it has a credential), then any other configured
// provider, per spec §4.8.
func New(cfg Config, providers []SearchProvider, client *http.Client) *Enricher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Enricher{preferred: strings.ToLower(cfg.PreferredSearchProvider), providers: providers, client: client, firecrawlKey: cfg.FirecrawlAPIKey}
}

func (e *Enricher) pickProvider() SearchProvider {
	var fallback SearchProvider
	for _, p := range e.providers {
		if !p.HasCredential() {
			continue
		}
		if strings.EqualFold(p.Name(), e.preferred) {
			return p
		}
		if fallback == nil {
			fallback = p
		}
	}
	return fallback
}

// WebSearch performs a search with the preferred provider, falling back to any other
// configured provider, and {success:false} if none are configured.
func (e *Enricher) WebSearch(ctx context.Context, query string) gateway.EnrichmentResult {
	provider := e.pickProvider()
	if provider == nil {
		return gateway.EnrichmentResult{Success: false, Error: "no web search provider configured"}
	}
	items, err := provider.Search(ctx, query)
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}
	return gateway.EnrichmentResult{Success: true, PayloadText: formatSearchResults(items)}
}

func formatSearchResults(items []SearchItem) string {
	var b strings.Builder
	if len(items) == 0 {
		return "No results found."
	}
	for i, it := range items {
		fmt.Fprintf(&b, "%d. **%s**\n   URL: %s\n   %s\n\n", i+1, it.Title, it.URL, it.Content)
	}
	return b.String()
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|\/)([0-9A-Za-z_-]{11}).*`),
	regexp.MustCompile(`youtu\.be\/([0-9A-Za-z_-]{11})`),
}

// extractVideoID pulls the 11-character YouTube video id out of several URL shapes
// (watch?v=, youtu.be/, embed/).
func extractVideoID(rawURL string) string {
	for _, re := range youtubeIDPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

type transcriptSegment struct {
	Text string `json:"text"`
}

// VideoTranscript fetches a transcript for the video id extracted from url, via a
// fixed YouTube timedtext endpoint (not configurable); this adapter degrades to failure
// if that endpoint is unreachable or returns no transcript.
func (e *Enricher) VideoTranscript(ctx context.Context, rawURL string) gateway.EnrichmentResult {
	videoID := extractVideoID(rawURL)
	if videoID == "" {
		return gateway.EnrichmentResult{Success: false, Error: "could not extract video id from url"}
	}

	endpoint := fmt.Sprintf("https://www.youtube.com/api/timedtext?lang=en&v=%s&fmt=json3", url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return gateway.EnrichmentResult{Success: false, Error: fmt.Sprintf("transcript api returned %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.EnrichmentResult{Success: false, Error: err.Error()}
	}

	var parsed struct {
		Events []struct {
			Segs []transcriptSegment `json:"segs"`
		} `json:"events"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Events) == 0 {
		return gateway.EnrichmentResult{Success: false, Error: "no transcript available"}
	}

	var text strings.Builder
	for _, ev := range parsed.Events {
		for _, seg := range ev.Segs {
			text.WriteString(seg.Text)
			text.WriteString(" ")
		}
	}
	return gateway.EnrichmentResult{Success: true, PayloadText: fmt.Sprintf("Video ID: %s\n\n%s", videoID, strings.TrimSpace(text.String()))}
}
