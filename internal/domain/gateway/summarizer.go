package gateway

import (
	"context"
	"fmt"

	apperrors "github.com/polaris/gateway/pkg/errors"
)

// MaxSummarizeInput is the hard ceiling on input size for a summarization request.
const MaxSummarizeInput = 1_000_000

// maxSummarizePasses bounds the iterative compression loop.
const maxSummarizePasses = 3

// LLMSummarizer implements C6: iteratively compress text to a target token budget via
// an LLM, adapted from the teacher's one-shot summarizer service into the spec's
// multi-pass budget-compression loop.
type LLMSummarizer struct {
	llm     LLM
	counter TokenCounter
}

// NewLLMSummarizer constructs a Summarizer backed by llm and counter.
func NewLLMSummarizer(llm LLM, counter TokenCounter) *LLMSummarizer {
	return &LLMSummarizer{llm: llm, counter: counter}
}

// Summarize distills text to targetTokens or fewer, in at most maxSummarizePasses LLM
// calls. If still over budget after all passes, it returns the best-effort result with
// status "partial" rather than failing.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string, targetTokens int, provider, model string) (SummaryResult, error) {
	if targetTokens <= 0 {
		return SummaryResult{}, apperrors.Validation("target_tokens must be > 0", nil)
	}

	originalSize, err := s.counter.Count(ctx, text, provider, model)
	if err != nil {
		originalSize = len([]rune(text)) / 4
	}
	if originalSize > MaxSummarizeInput {
		return SummaryResult{}, apperrors.Validation("input exceeds maximum summarizable size", nil)
	}
	if originalSize <= targetTokens {
		return SummaryResult{Status: "unchanged", Content: text, OriginalSize: originalSize, ReducedSize: originalSize}, nil
	}

	current := text
	currentSize := originalSize
	for pass := 0; pass < maxSummarizePasses; pass++ {
		resp, err := s.llm.Complete(ctx, model, []CompletionMessage{
			{Role: "system", Content: summarizePrompt(targetTokens)},
			{Role: "user", Content: current},
		})
		if err != nil {
			break
		}
		current = resp.Content
		currentSize, err = s.counter.Count(ctx, current, provider, model)
		if err != nil {
			currentSize = len([]rune(current)) / 4
		}
		if currentSize <= targetTokens {
			return SummaryResult{Status: "ok", Content: current, OriginalSize: originalSize, ReducedSize: currentSize}, nil
		}
	}

	return SummaryResult{Status: "partial", Content: current, OriginalSize: originalSize, ReducedSize: currentSize}, nil
}

func summarizePrompt(targetTokens int) string {
	return fmt.Sprintf(
		"Distill the following text to approximately %d tokens. Preserve all important details, facts, and nuance. Return only the distilled text.",
		targetTokens,
	)
}

var _ Summarizer = (*LLMSummarizer)(nil)
