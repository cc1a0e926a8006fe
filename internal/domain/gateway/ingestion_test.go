package gateway_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/chunker"
	"github.com/polaris/gateway/internal/infra/embedder"
	gatewaymemory "github.com/polaris/gateway/internal/infra/gateway/memory"
	"github.com/polaris/gateway/internal/infra/parser"
	"github.com/polaris/gateway/internal/infra/storage"
)

func newTestIngestor() (*gateway.Ingestor, *gatewaymemory.Repository) {
	repo := gatewaymemory.New()
	store := storage.NewMemory()
	parsers := parser.NewRegistry(nil)
	chunk := chunker.New()
	emb := embedder.NewDeterministic(16)
	ig := gateway.NewIngestor(repo, store, parsers, chunk, emb)
	ig.WithChunking(50, 10)
	ig.WithDimensions(16)
	return ig, repo
}

func TestIngestor_Ingest_NewFile(t *testing.T) {
	ig, _ := newTestIngestor()
	threadID := uuid.New()

	result, err := ig.Ingest(context.Background(), threadID, "notes.txt", "text/plain", []byte("hello world"), gateway.Author{})
	require.NoError(t, err)
	require.False(t, result.Deduplicated)
	require.False(t, result.Restored)
	require.Equal(t, "notes.txt", result.File.Filename)
	require.Equal(t, "hello world", result.File.ContentText)
}

func TestIngestor_Ingest_DedupsSameBytes(t *testing.T) {
	ig, _ := newTestIngestor()
	threadID := uuid.New()
	data := []byte("identical payload")

	first, err := ig.Ingest(context.Background(), threadID, "a.txt", "text/plain", data, gateway.Author{})
	require.NoError(t, err)

	second, err := ig.Ingest(context.Background(), threadID, "b.txt", "text/plain", data, gateway.Author{})
	require.NoError(t, err)

	require.True(t, second.Deduplicated)
	require.Equal(t, first.File.FileID, second.File.FileID)
}

func TestIngestor_Ingest_RestoresSoftDeletedFile(t *testing.T) {
	ig, repo := newTestIngestor()
	threadID := uuid.New()
	data := []byte("restorable payload")

	first, err := ig.Ingest(context.Background(), threadID, "a.txt", "text/plain", data, gateway.Author{})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateFileAddress(context.Background(), first.File.ContentHash, gateway.AddressDeleted))

	second, err := ig.Ingest(context.Background(), threadID, "a.txt", "text/plain", data, gateway.Author{})
	require.NoError(t, err)
	require.True(t, second.Restored)
	require.Equal(t, first.File.FileID, second.File.FileID)
	require.NotEqual(t, gateway.AddressDeleted, second.File.Address)
}

func TestIngestor_VectorizeFile_EmbedsChunks(t *testing.T) {
	ig, repo := newTestIngestor()
	threadID := uuid.New()

	longText := ""
	for i := 0; i < 20; i++ {
		longText += "the quick brown fox jumps over the lazy dog. "
	}

	result, err := ig.Ingest(context.Background(), threadID, "story.txt", "text/plain", []byte(longText), gateway.Author{})
	require.NoError(t, err)

	embedded := ig.VectorizeFile(context.Background(), threadID, &result.File)
	require.Positive(t, embedded)

	vectors, err := repo.SearchVectors(context.Background(), make([]float32, 16), gateway.NamespaceFiles, threadID, -1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, vectors)
}

func TestIngestor_VectorizeFile_NoContentTextIsNoop(t *testing.T) {
	ig, _ := newTestIngestor()
	threadID := uuid.New()

	file := &gateway.File{FileID: uuid.New(), ContentText: ""}
	embedded := ig.VectorizeFile(context.Background(), threadID, file)
	require.Zero(t, embedded)
}
