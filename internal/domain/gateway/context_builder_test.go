package gateway_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// charCounter counts one token per character, making budget math easy to reason about
// in tests without pulling in a real tokenizer.
type charCounter struct{}

func (charCounter) Count(ctx context.Context, text, provider, model string) (int, error) {
	return len(text), nil
}

func TestContextBuilder_Build_FitsWithoutAdjustment(t *testing.T) {
	b := gateway.NewContextBuilder(charCounter{}, nil)
	bundle := b.Build(context.Background(), "q", "qc", "lc", 100, "openai", "gpt-4o-mini", gateway.DefaultWeights(), false)

	require.Equal(t, "q", bundle.Query)
	require.Equal(t, "qc", bundle.QueryContext)
	require.Equal(t, "lc", bundle.LocalContext)
	require.Equal(t, 1+2+2, bundle.QueryTokens+bundle.QueryCtxTokens+bundle.LocalCtxTokens)
}

func TestContextBuilder_Build_TrimsWithinBudget(t *testing.T) {
	b := gateway.NewContextBuilder(charCounter{}, nil)
	query := "q"
	queryContext := strings.Repeat("b", 60)
	localContext := strings.Repeat("c", 60)

	bundle := b.Build(context.Background(), query, queryContext, localContext, 30, "openai", "gpt-4o-mini", gateway.DefaultWeights(), false)

	total := bundle.QueryTokens + bundle.QueryCtxTokens + bundle.LocalCtxTokens
	require.LessOrEqual(t, total, 30)
}

func TestContextBuilder_Build_QueryAloneExceedsBudgetDiscardsRest(t *testing.T) {
	b := gateway.NewContextBuilder(charCounter{}, nil)
	query := strings.Repeat("q", 200)

	bundle := b.Build(context.Background(), query, "some context", "more context", 50, "openai", "gpt-4o-mini", gateway.DefaultWeights(), false)

	require.Empty(t, bundle.QueryContext)
	require.Empty(t, bundle.LocalContext)
	require.LessOrEqual(t, bundle.QueryTokens, 50)
}

func TestContextBuilder_Build_IdempotentOnOwnOutput(t *testing.T) {
	b := gateway.NewContextBuilder(charCounter{}, nil)
	query := "q"
	queryContext := strings.Repeat("b", 60)
	localContext := strings.Repeat("c", 60)

	first := b.Build(context.Background(), query, queryContext, localContext, 30, "openai", "gpt-4o-mini", gateway.DefaultWeights(), false)
	second := b.Build(context.Background(), first.Query, first.QueryContext, first.LocalContext, 30, "openai", "gpt-4o-mini", gateway.DefaultWeights(), false)

	require.Equal(t, first.Query, second.Query)
	require.Equal(t, first.QueryContext, second.QueryContext)
	require.Equal(t, first.LocalContext, second.LocalContext)
	require.Equal(t, first.QueryTokens, second.QueryTokens)
	require.Equal(t, first.QueryCtxTokens, second.QueryCtxTokens)
	require.Equal(t, first.LocalCtxTokens, second.LocalCtxTokens)
}
