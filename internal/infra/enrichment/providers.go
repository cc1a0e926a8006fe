package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TavilyProvider calls the Tavily search API.
type TavilyProvider struct {
	apiKey string
	client *http.Client
}

// NewTavilyProvider constructs a Tavily-backed SearchProvider. An empty apiKey yields a
// provider that reports no credential and is skipped by Enricher.pickProvider.
func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{apiKey: apiKey, client: &http.Client{Timeout: 20 * time.Second}}
}

func (p *TavilyProvider) Name() string         { return "tavily" }
func (p *TavilyProvider) HasCredential() bool  { return strings.TrimSpace(p.apiKey) != "" }

func (p *TavilyProvider) Search(ctx context.Context, query string) ([]SearchItem, error) {
	reqBody, _ := json.Marshal(map[string]any{
		"api_key":        p.apiKey,
		"query":          query,
		"max_results":    5,
		"search_depth":   "basic",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]SearchItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, SearchItem{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return out, nil
}

// LinkupProvider calls the Linkup search API.
type LinkupProvider struct {
	apiKey string
	client *http.Client
}

// NewLinkupProvider constructs a Linkup-backed SearchProvider.
func NewLinkupProvider(apiKey string) *LinkupProvider {
	return &LinkupProvider{apiKey: apiKey, client: &http.Client{Timeout: 20 * time.Second}}
}

func (p *LinkupProvider) Name() string        { return "linkup" }
func (p *LinkupProvider) HasCredential() bool { return strings.TrimSpace(p.apiKey) != "" }

func (p *LinkupProvider) Search(ctx context.Context, query string) ([]SearchItem, error) {
	reqBody, _ := json.Marshal(map[string]any{
		"q":            query,
		"depth":        "standard",
		"outputType":   "searchResults",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.linkup.so/v1/search", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("linkup returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]SearchItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, SearchItem{Title: r.Name, URL: r.URL, Content: r.Content})
	}
	return out, nil
}
