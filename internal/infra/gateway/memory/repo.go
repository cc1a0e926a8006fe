// Package memory is the in-process fallback persistence gateway: used when no Postgres
// DSN is configured, and as the in-process vector-search fallback path exercised by the
// Postgres-backed repository when the similarity RPC is unavailable.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/polaris/gateway/pkg/errors"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// Repository is a sync.RWMutex-guarded, map-backed implementation of gateway.Repository.
type Repository struct {
	mu sync.RWMutex

	threads  map[uuid.UUID]*gateway.Thread
	messages map[uuid.UUID][]*gateway.Message
	files    map[uuid.UUID]*gateway.File
	filesByHash map[string]uuid.UUID
	vectors  map[uuid.UUID][]*gateway.Vector
}

// New constructs an empty in-memory repository.
func New() *Repository {
	return &Repository{
		threads:     make(map[uuid.UUID]*gateway.Thread),
		messages:    make(map[uuid.UUID][]*gateway.Message),
		files:       make(map[uuid.UUID]*gateway.File),
		filesByHash: make(map[string]uuid.UUID),
		vectors:     make(map[uuid.UUID][]*gateway.Vector),
	}
}

func (r *Repository) CreateThread(ctx context.Context, t *gateway.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.threads[t.ThreadID] = &cp
	return nil
}

func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (*gateway.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, apperrors.NotFound("thread not found", nil)
	}
	cp := *t
	return &cp, nil
}

func (r *Repository) UpdateThread(ctx context.Context, t *gateway.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[t.ThreadID]; !ok {
		return apperrors.NotFound("thread not found", nil)
	}
	cp := *t
	r.threads[t.ThreadID] = &cp
	return nil
}

func (r *Repository) DeleteThread(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[id]; !ok {
		return apperrors.NotFound("thread not found", nil)
	}
	delete(r.threads, id)
	delete(r.messages, id)
	delete(r.vectors, id)
	return nil
}

func (r *Repository) CreateMessage(ctx context.Context, m *gateway.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages[m.ThreadID] = append(r.messages[m.ThreadID], &cp)
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, threadID uuid.UUID) ([]gateway.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gateway.Message, 0, len(r.messages[threadID]))
	for _, m := range r.messages[threadID] {
		out = append(out, *m)
	}
	return out, nil
}

func (r *Repository) FindFileByHash(ctx context.Context, hash string) (*gateway.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.filesByHash[hash]
	if !ok {
		return nil, apperrors.NotFound("file not found", nil)
	}
	cp := *r.files[id]
	return &cp, nil
}

func (r *Repository) CreateFile(ctx context.Context, f *gateway.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.FileID] = &cp
	r.filesByHash[f.ContentHash] = f.FileID
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*gateway.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, apperrors.NotFound("file not found", nil)
	}
	cp := *f
	return &cp, nil
}

func (r *Repository) UpdateFile(ctx context.Context, f *gateway.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[f.FileID]; !ok {
		return apperrors.NotFound("file not found", nil)
	}
	cp := *f
	r.files[f.FileID] = &cp
	return nil
}

func (r *Repository) UpdateFileAddress(ctx context.Context, hash, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.filesByHash[hash]
	if !ok {
		return apperrors.NotFound("file not found", nil)
	}
	f := r.files[id]
	f.Address = address
	f.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) TouchFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return apperrors.NotFound("file not found", nil)
	}
	f.UpdatedAt = time.Now()
	return nil
}

func (r *Repository) CreateVector(ctx context.Context, v *gateway.Vector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.vectors[v.ThreadID] = append(r.vectors[v.ThreadID], &cp)
	return nil
}

// SearchVectors ranks a thread's vectors in namespace by cosine similarity against
// embedding, descending, truncated to k, filtered at >= threshold. This is the
// in-process fallback path the repository uses in place of a backend RPC; the Postgres
// repository delegates here when its similarity RPC is unavailable, which is how P5
// (retrieval determinism) is upheld.
func (r *Repository) SearchVectors(ctx context.Context, embedding []float32, namespace gateway.Namespace, threadID uuid.UUID, threshold float64, k int) ([]gateway.ScoredVector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scored := make([]gateway.ScoredVector, 0, len(r.vectors[threadID]))
	for _, v := range r.vectors[threadID] {
		if v.Metadata.Namespace != namespace {
			continue
		}
		sim := cosineSimilarity(embedding, v.Embedding)
		if sim < threshold {
			continue
		}
		scored = append(scored, gateway.ScoredVector{Vector: *v, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *Repository) ListThreadVectors(ctx context.Context, threadID uuid.UUID, namespace gateway.Namespace, limit int) ([]gateway.Vector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gateway.Vector, 0, len(r.vectors[threadID]))
	for _, v := range r.vectors[threadID] {
		if v.Metadata.Namespace != namespace {
			continue
		}
		out = append(out, *v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0 if either is a
// zero vector or their lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
