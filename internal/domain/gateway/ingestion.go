package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/polaris/gateway/pkg/errors"
)

// defaultEmbedConcurrency bounds how many chunks of one file are embedded in parallel,
// mirroring the source's bounded worker pool over per-chunk embedding calls.
const defaultEmbedConcurrency = 4

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// IngestionResult reports what C11 did with one uploaded file.
type IngestionResult struct {
	File          File
	Deduplicated  bool
	Restored      bool
	ChunksTotal   int
	ChunksEmbedded int
}

// Ingestor implements C11: hash-dedup a file against existing records, restore a
// previously soft-deleted file under its original FileID, or store and parse a
// genuinely new file; VectorizeFile separately chunks and embeds a file's content into
// a thread's vector index.
type Ingestor struct {
	repo     Repository
	store    ObjectStore
	parsers  ParserRegistry
	chunker  Chunker
	embedder Embedder

	chunkSize    int
	chunkOverlap int
	concurrency  int
	dimensions   int
}

// NewIngestor constructs an Ingestor with the teacher's chunk defaults (1000/200) and a
// bounded embedding fan-out of 4.
func NewIngestor(repo Repository, store ObjectStore, parsers ParserRegistry, chunker Chunker, embedder Embedder) *Ingestor {
	return &Ingestor{
		repo:         repo,
		store:        store,
		parsers:      parsers,
		chunker:      chunker,
		embedder:     embedder,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		concurrency:  defaultEmbedConcurrency,
	}
}

// WithChunking overrides the chunk size/overlap used for new files.
func (ig *Ingestor) WithChunking(size, overlap int) *Ingestor {
	ig.chunkSize, ig.chunkOverlap = size, overlap
	return ig
}

// WithDimensions sets the embedding dimensionality requested for every chunk.
func (ig *Ingestor) WithDimensions(dim int) *Ingestor {
	ig.dimensions = dim
	return ig
}

// Ingest dedups by content hash (P1), restores a soft-deleted file under its original
// FileID if the same bytes reappear (P2), and otherwise stores the bytes, parses them
// into ContentText, and creates the file record. It does not chunk or embed; that is
// VectorizeFile's job.
func (ig *Ingestor) Ingest(ctx context.Context, threadID uuid.UUID, filename, mime string, data []byte, author Author) (IngestionResult, error) {
	hash := contentHash(data)

	existing, err := ig.repo.FindFileByHash(ctx, hash)
	if err != nil && !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return IngestionResult{}, apperrors.Internal("lookup file by hash failed", err)
	}

	if existing != nil && !existing.IsDeleted() {
		if err := ig.repo.TouchFile(ctx, existing.FileID); err != nil {
			return IngestionResult{}, apperrors.Internal("touch existing file failed", err)
		}
		return IngestionResult{File: *existing, Deduplicated: true}, nil
	}

	if existing != nil && existing.IsDeleted() {
		return ig.restore(ctx, existing, data)
	}

	return ig.ingestNew(ctx, threadID, filename, mime, data, author, hash)
}

func (ig *Ingestor) restore(ctx context.Context, existing *File, data []byte) (IngestionResult, error) {
	storedName := storedFileName(existing.FileID, existing.Filename)
	if err := ig.store.Save(ctx, storedName, bytes.NewReader(data), int64(len(data))); err != nil {
		return IngestionResult{}, apperrors.Internal("restore file bytes failed", err)
	}
	if err := ig.repo.UpdateFileAddress(ctx, existing.ContentHash, storedName); err != nil {
		return IngestionResult{}, apperrors.Internal("restore file address failed", err)
	}
	restored := *existing
	restored.Address = storedName
	restored.UpdatedAt = time.Now().UTC()
	return IngestionResult{File: restored, Restored: true}, nil
}

func (ig *Ingestor) ingestNew(ctx context.Context, threadID uuid.UUID, filename, mime string, data []byte, author Author, hash string) (IngestionResult, error) {
	fileID := uuid.New()
	storedName := storedFileName(fileID, filename)

	if err := ig.store.Save(ctx, storedName, bytes.NewReader(data), int64(len(data))); err != nil {
		return IngestionResult{}, apperrors.Internal("save file bytes failed", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	text, ok := ig.parsers.Parse(ctx, filename, ext, mime, data)
	if !ok {
		text = ""
	}

	now := time.Now().UTC()
	file := File{
		FileID:      fileID,
		Filename:    filename,
		Mime:        mime,
		SizeBytes:   int64(len(data)),
		ContentHash: hash,
		ContentText: text,
		Address:     storedName,
		Author:      author,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ig.repo.CreateFile(ctx, &file); err != nil {
		return IngestionResult{}, apperrors.Internal("create file record failed", err)
	}

	result := IngestionResult{File: file}
	return result, nil
}

// VectorizeFile runs the vectorization sub-pipeline (spec §4.11, driven by C12 during
// message ingestion) over a file already persisted by Ingest: chunk its content_text and
// embed each chunk into threadID's vector index. A file with no content_text is a no-op
// (e.g. binary files with nothing extracted). Errors are logged by the caller's choice;
// a failure here must not abort the surrounding completion request, so this returns
// nothing for the caller to check beyond the embedded count.
func (ig *Ingestor) VectorizeFile(ctx context.Context, threadID uuid.UUID, file *File) int {
	if file == nil || strings.TrimSpace(file.ContentText) == "" {
		return 0
	}
	chunks := ig.chunker.Chunk(file.ContentText, ig.chunkSize, ig.chunkOverlap)
	embedded, err := ig.embedChunks(ctx, threadID, file, chunks)
	if err != nil {
		return 0
	}
	return embedded
}

func (ig *Ingestor) embedChunks(ctx context.Context, threadID uuid.UUID, file *File, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	concurrency := ig.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	embedded := make([]bool, len(chunks))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vec, err := ig.embedder.Embed(gctx, chunk.Text, ig.dimensions)
			if err != nil {
				// A single chunk's embedding failure does not fail the whole file; it
				// is simply skipped from the index (the source's per-chunk try/except).
				return nil
			}
			if vec == nil {
				return nil
			}
			idx := chunk.Index
			v := Vector{
				VectorID:  uuid.New(),
				ThreadID:  threadID,
				Embedding: vec,
				Content:   chunk.Text,
				Metadata: VectorMetadata{
					Namespace:  NamespaceFiles,
					Source:     VectorSourceFile,
					FileID:     &file.FileID,
					FileName:   file.Filename,
					ChunkIndex: &idx,
				},
				EmbedTool: ig.embedder.Name(),
				CreatedAt: time.Now().UTC(),
			}
			if err := ig.repo.CreateVector(gctx, &v); err != nil {
				return err
			}
			embedded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, apperrors.Internal("embed chunks failed", err)
	}

	count := 0
	for _, ok := range embedded {
		if ok {
			count++
		}
	}
	return count, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func storedFileName(id uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	return "file-" + id.String() + ext
}
