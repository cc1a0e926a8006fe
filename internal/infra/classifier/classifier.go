// Package classifier implements the tool-use classifier (C7): a schema-constrained LLM
// call that decides whether a query needs web search, video transcription, or page
// scraping, with the normalization rules ported from the source's own
// SearchIndicator._normalize_result.
package classifier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/pkg/logger"
)

const systemInstruction = `You are an expert at tools indicator. You have access to the following tools:

1. web_search
   - When the user's request requires up-to-date or real-time information.
   - Parameters:
     - query (string) - A concise query describing the information to be retrieved.

2. video
   - When the user provides valid video URLs (e.g., YouTube links) that require video related processing.
   - Parameters:
     - urls (string[]) - An array of video URLs.

3. web_scrap
   - When the user provides non-video URLs (e.g., GitHub, Reddit, news articles) that require direct content extraction.
   - Parameters:
     - urls (string[]) - An array of webpage URLs to scrape.

Respond with a single JSON object with keys "tool" (array of strings), "web_search" (string, optional),
"videos" (array of strings, optional), "web_scrap" (array of strings, optional). Respond with JSON only.`

// Classifier calls an LLM to classify a query, then normalizes its response.
type Classifier struct {
	llm   gateway.LLM
	model string
}

// New constructs a Classifier backed by the given LLM and model name.
func New(llm gateway.LLM, model string) *Classifier {
	return &Classifier{llm: llm, model: model}
}

// rawResult is the loosely-typed shape an LLM's JSON response is first decoded into,
// before normalization.
type rawResult struct {
	Tool      []string `json:"tool"`
	WebSearch *string  `json:"web_search"`
	Videos    []string `json:"videos"`
	WebScrap  []string `json:"web_scrap"`
}

// Classify short-circuits queries under 3 non-whitespace characters to {tools: []}; for
// everything else it prompts the LLM and normalizes the result, falling back to a
// default web_search recommendation if the LLM call fails or its output cannot be
// parsed as JSON.
func (c *Classifier) Classify(ctx context.Context, query string) (gateway.ToolSet, error) {
	if len([]rune(strings.Join(strings.Fields(query), ""))) < 3 {
		return gateway.ToolSet{Tools: []string{}}, nil
	}

	if c.llm == nil {
		return defaultWebSearch(query), nil
	}

	resp, err := c.llm.Complete(ctx, c.model, []gateway.CompletionMessage{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: query},
	})
	if err != nil {
		logger.FromContext(ctx).Warn("classifier llm call failed, defaulting to web_search", "error", err)
		return defaultWebSearch(query), nil
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &raw); err != nil {
		logger.FromContext(ctx).Warn("classifier response not valid JSON, defaulting to web_search")
		return defaultWebSearch(query), nil
	}

	return normalize(raw, query), nil
}

// defaultWebSearch is the fallback recommendation used whenever classification itself
// fails (LLM error, malformed JSON) per the source's _create_default_web_search.
func defaultWebSearch(query string) gateway.ToolSet {
	return gateway.ToolSet{Tools: []string{"web_search"}, WebSearch: query}
}

// normalize ports SearchIndicator._normalize_result: it guarantees that either Tools is
// empty or every named tool's arguments are populated (P7).
func normalize(raw rawResult, query string) gateway.ToolSet {
	hasTool := len(raw.Tool) > 0
	hasWebSearch := raw.WebSearch != nil && strings.TrimSpace(*raw.WebSearch) != ""
	hasVideos := len(raw.Videos) > 0
	hasWebScrap := len(raw.WebScrap) > 0

	switch {
	case hasWebSearch && !hasTool:
		return gateway.ToolSet{Tools: []string{"web_search"}, WebSearch: *raw.WebSearch}

	case hasVideos && !hasTool:
		return gateway.ToolSet{Tools: []string{"video"}, Videos: raw.Videos}

	case hasWebScrap && !hasTool:
		return gateway.ToolSet{Tools: []string{"web_scrap"}, WebScrap: raw.WebScrap}

	case hasTool:
		out := gateway.ToolSet{Tools: raw.Tool}
		if contains(raw.Tool, "web_search") {
			if hasWebSearch {
				out.WebSearch = *raw.WebSearch
			} else {
				out.WebSearch = query
			}
		}
		if contains(raw.Tool, "video") {
			out.Videos = raw.Videos
			if out.Videos == nil {
				out.Videos = []string{}
			}
		}
		if contains(raw.Tool, "web_scrap") {
			out.WebScrap = raw.WebScrap
			if out.WebScrap == nil {
				out.WebScrap = []string{}
			}
		}
		return out

	default:
		return gateway.ToolSet{Tools: []string{}}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// extractJSON strips any markdown code fences an LLM wraps its JSON reply in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ gateway.Classifier = (*Classifier)(nil)
