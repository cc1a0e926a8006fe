package gateway_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/embedder"
	gatewaymemory "github.com/polaris/gateway/internal/infra/gateway/memory"
)

type stubTopKLLM struct {
	content string
	err     error
}

func (s *stubTopKLLM) Complete(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
	if s.err != nil {
		return gateway.CompletionResult{}, s.err
	}
	return gateway.CompletionResult{Content: s.content}, nil
}

func (s *stubTopKLLM) Name() string { return "stub-topk" }

func seedVector(t *testing.T, repo *gatewaymemory.Repository, threadID uuid.UUID, text, fileName string, emb []float32) {
	t.Helper()
	v := &gateway.Vector{
		VectorID:  uuid.New(),
		ThreadID:  threadID,
		Embedding: emb,
		Content:   text,
		Metadata:  gateway.VectorMetadata{Namespace: gateway.NamespaceFiles, FileName: fileName},
	}
	require.NoError(t, repo.CreateVector(context.Background(), v))
}

func TestRetriever_Retrieve_EmptyQueryReturnsEmpty(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	r := gateway.NewRetriever(repo, emb, nil, "")

	result := r.Retrieve(context.Background(), uuid.New(), "   ", gateway.NamespaceFiles)
	require.Empty(t, result)
}

func TestRetriever_Retrieve_FormatsChunksWithSource(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	threadID := uuid.New()

	queryEmbedding, err := emb.Embed(context.Background(), "fox", 8)
	require.NoError(t, err)
	seedVector(t, repo, threadID, "the quick brown fox", "story.txt", queryEmbedding)

	r := gateway.NewRetriever(repo, emb, nil, "")
	result := r.Retrieve(context.Background(), threadID, "fox", gateway.NamespaceFiles)

	require.Contains(t, result, "Chunk #1")
	require.Contains(t, result, "Source: story.txt")
	require.Contains(t, result, "the quick brown fox")
}

func TestRetriever_Retrieve_NoMatchesReturnsEmpty(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	r := gateway.NewRetriever(repo, emb, nil, "")

	result := r.Retrieve(context.Background(), uuid.New(), "anything", gateway.NamespaceFiles)
	require.Empty(t, result)
}

func TestRetriever_ResolveTopK_FallsBackOnMalformedResponse(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	threadID := uuid.New()

	queryEmbedding, err := emb.Embed(context.Background(), "query", 8)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		seedVector(t, repo, threadID, "chunk text", "doc.txt", queryEmbedding)
	}

	r := gateway.NewRetriever(repo, emb, &stubTopKLLM{content: "not json"}, "classifier-model")
	result := r.Retrieve(context.Background(), threadID, "query", gateway.NamespaceFiles)

	require.Contains(t, result, "Chunk #5")
	require.NotContains(t, result, "Chunk #6")
}

func TestRetriever_ResolveTopK_HonorsClassifierValue(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	threadID := uuid.New()

	queryEmbedding, err := emb.Embed(context.Background(), "query", 8)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		seedVector(t, repo, threadID, "chunk text", "doc.txt", queryEmbedding)
	}

	r := gateway.NewRetriever(repo, emb, &stubTopKLLM{content: `{"top_k": 3}`}, "classifier-model")
	result := r.Retrieve(context.Background(), threadID, "query", gateway.NamespaceFiles)

	require.Contains(t, result, "Chunk #3")
	require.NotContains(t, result, "Chunk #4")
}
