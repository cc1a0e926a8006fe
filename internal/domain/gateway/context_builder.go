package gateway

import (
	"context"

	"github.com/polaris/gateway/pkg/logger"
)

// Weights is the (p_A, p_B, p_C) priority triple for query/query_context/local_context
// capacity allocation, defaulting to (2, 2, 2).
type Weights struct {
	Query        int
	QueryContext int
	LocalContext int
}

// DefaultWeights matches spec §4.10's default.
func DefaultWeights() Weights { return Weights{Query: 2, QueryContext: 2, LocalContext: 2} }

// ContextBuilder implements C10: fit (query, query_context, local_context) within
// max_tokens using weighted capacity allocation with leftover cascade and
// summarize-or-truncate compression.
type ContextBuilder struct {
	counter    TokenCounter
	summarizer Summarizer
}

// NewContextBuilder constructs a ContextBuilder.
func NewContextBuilder(counter TokenCounter, summarizer Summarizer) *ContextBuilder {
	return &ContextBuilder{counter: counter, summarizer: summarizer}
}

// Build ensures count(query)+count(queryContext)+count(localContext) <= maxTokens on
// exit (P4), and is idempotent (P8): re-running it on its own output returns the same
// strings and counts.
func (b *ContextBuilder) Build(ctx context.Context, query, queryContext, localContext string, maxTokens int, provider, model string, weights Weights, useSummarization bool) ContextBundle {
	log := logger.FromContext(ctx)

	queryTokens := b.count(ctx, query, provider, model)
	queryCtxTokens := b.count(ctx, queryContext, provider, model)
	localCtxTokens := b.count(ctx, localContext, provider, model)

	total := queryTokens + queryCtxTokens + localCtxTokens
	if total <= maxTokens {
		log.Debug("context fits without adjustment", "total", total, "max_tokens", maxTokens)
		return ContextBundle{
			Query: query, QueryContext: queryContext, LocalContext: localContext,
			QueryTokens: queryTokens, QueryCtxTokens: queryCtxTokens, LocalCtxTokens: localCtxTokens,
		}
	}

	// Query alone exceeds the entire budget: summarize it and discard the others.
	if queryTokens > maxTokens {
		finalQuery := b.compress(ctx, query, maxTokens, provider, model, useSummarization, queryTokens)
		finalTokens := b.count(ctx, finalQuery, provider, model)
		log.Info("query alone exceeded budget, discarding other segments", "final_tokens", finalTokens, "max_tokens", maxTokens)
		return ContextBundle{Query: finalQuery, QueryTokens: finalTokens}
	}

	weightSum := weights.Query + weights.QueryContext + weights.LocalContext
	if weightSum <= 0 {
		weightSum = 6
		weights = DefaultWeights()
	}
	capA := float64(weights.Query) / float64(weightSum) * float64(maxTokens)
	capB := float64(weights.QueryContext) / float64(weightSum) * float64(maxTokens)
	capC := float64(weights.LocalContext) / float64(weightSum) * float64(maxTokens)

	finalQuery := query
	if float64(queryTokens) <= capA {
		capB += capA - float64(queryTokens)
	} else {
		finalQuery = b.compress(ctx, query, int(capA), provider, model, useSummarization, queryTokens)
	}
	finalQueryTokens := b.count(ctx, finalQuery, provider, model)

	finalQueryContext := queryContext
	if float64(queryCtxTokens) <= capB {
		capC += capB - float64(queryCtxTokens)
	} else {
		finalQueryContext = b.compress(ctx, queryContext, int(capB), provider, model, useSummarization, queryCtxTokens)
	}
	finalQueryCtxTokens := b.count(ctx, finalQueryContext, provider, model)

	finalLocalContext := localContext
	if float64(localCtxTokens) > capC {
		finalLocalContext = b.compress(ctx, localContext, int(capC), provider, model, useSummarization, localCtxTokens)
	}
	finalLocalCtxTokens := b.count(ctx, finalLocalContext, provider, model)

	log.Info("context trimmed to budget",
		"final_total", finalQueryTokens+finalQueryCtxTokens+finalLocalCtxTokens, "max_tokens", maxTokens)

	return ContextBundle{
		Query: finalQuery, QueryContext: finalQueryContext, LocalContext: finalLocalContext,
		QueryTokens: finalQueryTokens, QueryCtxTokens: finalQueryCtxTokens, LocalCtxTokens: finalLocalCtxTokens,
	}
}

func (b *ContextBuilder) count(ctx context.Context, text, provider, model string) int {
	n, err := b.counter.Count(ctx, text, provider, model)
	if err != nil {
		return len([]rune(text)) / 4
	}
	return n
}

// compress summarizes text to capacity, falling back to proportional character
// truncation on summarizer failure or when summarization is disabled.
func (b *ContextBuilder) compress(ctx context.Context, text string, capacity int, provider, model string, useSummarization bool, currentTokens int) string {
	if capacity <= 0 {
		return ""
	}
	if useSummarization && b.summarizer != nil {
		result, err := b.summarizer.Summarize(ctx, text, capacity, provider, model)
		if err == nil && (result.Status == "ok" || result.Status == "unchanged") {
			return result.Content
		}
	}
	if currentTokens <= 0 {
		return text
	}
	ratio := float64(capacity) / float64(currentTokens)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	cut := int(float64(len(text)) * ratio)
	if cut > len(text) {
		cut = len(text)
	}
	if cut < 0 {
		cut = 0
	}
	return text[:cut]
}
