// Package postgres is the production persistence gateway backed by Postgres + pgvector.
// Vector similarity search prefers the database's search_vectors stored procedure and
// falls back to an in-process scan (via internal/infra/gateway/memory) when that RPC
// errors, so results are observationally identical either way (P5).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/polaris/gateway/internal/domain/gateway"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// Repository persists the gateway domain model in Postgres.
type Repository struct {
	pool     *pgxpool.Pool
	fallback gateway.Repository
}

// New constructs the Postgres-backed repository. fallback is used for similarity
// search if the search_vectors stored procedure call fails.
func New(pool *pgxpool.Pool, fallback gateway.Repository) *Repository {
	return &Repository{pool: pool, fallback: fallback}
}

func (r *Repository) CreateThread(ctx context.Context, t *gateway.Thread) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO threads (thread_id, model, provider, purpose, author_type, author_user_id, author_name, tokens_spent, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ThreadID, t.Model, t.Provider, t.Purpose, t.Author.Type, t.Author.UserID, t.Author.Name, t.TokensSpent, t.Cost, t.CreatedAt)
	return err
}

func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (*gateway.Thread, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT thread_id, model, provider, purpose, author_type, author_user_id, author_name, tokens_spent, cost, created_at
		FROM threads WHERE thread_id = $1
	`, id)
	var t gateway.Thread
	if err := row.Scan(&t.ThreadID, &t.Model, &t.Provider, &t.Purpose, &t.Author.Type, &t.Author.UserID, &t.Author.Name, &t.TokensSpent, &t.Cost, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("thread not found", err)
		}
		return nil, apperrors.UpstreamTransient("query thread failed", err)
	}
	return &t, nil
}

func (r *Repository) UpdateThread(ctx context.Context, t *gateway.Thread) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE threads SET tokens_spent = $1, cost = $2 WHERE thread_id = $3
	`, t.TokensSpent, t.Cost, t.ThreadID)
	if err != nil {
		return apperrors.UpstreamTransient("update thread failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("thread not found", nil)
	}
	return nil
}

func (r *Repository) DeleteThread(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.UpstreamTransient("begin cascade delete failed", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vectors WHERE thread_id = $1`, id); err != nil {
		return apperrors.UpstreamTransient("delete vectors failed", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE thread_id = $1`, id); err != nil {
		return apperrors.UpstreamTransient("delete messages failed", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM threads WHERE thread_id = $1`, id)
	if err != nil {
		return apperrors.UpstreamTransient("delete thread failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("thread not found", nil)
	}
	return tx.Commit(ctx)
}

func (r *Repository) CreateMessage(ctx context.Context, m *gateway.Message) error {
	refs := make([]uuid.UUID, len(m.FileRefs))
	copy(refs, m.FileRefs)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (message_id, thread_id, role, content_type, content_text, author_type, author_user_id, author_name, file_refs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.MessageID, m.ThreadID, m.Role, m.Content.Type, m.Content.Text, m.Author.Type, m.Author.UserID, m.Author.Name, refs, m.CreatedAt)
	return err
}

func (r *Repository) ListMessages(ctx context.Context, threadID uuid.UUID) ([]gateway.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT message_id, thread_id, role, content_type, content_text, author_type, author_user_id, author_name, file_refs, created_at
		FROM messages WHERE thread_id = $1 ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, apperrors.UpstreamTransient("list messages failed", err)
	}
	defer rows.Close()

	var out []gateway.Message
	for rows.Next() {
		var m gateway.Message
		if err := rows.Scan(&m.MessageID, &m.ThreadID, &m.Role, &m.Content.Type, &m.Content.Text, &m.Author.Type, &m.Author.UserID, &m.Author.Name, &m.FileRefs, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) FindFileByHash(ctx context.Context, hash string) (*gateway.File, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT file_id, filename, mime, size_bytes, content_hash, content_text, address, author_type, author_user_id, author_name, created_at, updated_at
		FROM files WHERE content_hash = $1
	`, hash)
	var f gateway.File
	if err := row.Scan(&f.FileID, &f.Filename, &f.Mime, &f.SizeBytes, &f.ContentHash, &f.ContentText, &f.Address, &f.Author.Type, &f.Author.UserID, &f.Author.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("file not found", err)
		}
		return nil, apperrors.UpstreamTransient("query file by hash failed", err)
	}
	return &f, nil
}

func (r *Repository) CreateFile(ctx context.Context, f *gateway.File) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO files (file_id, filename, mime, size_bytes, content_hash, content_text, address, author_type, author_user_id, author_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, f.FileID, f.Filename, f.Mime, f.SizeBytes, f.ContentHash, f.ContentText, f.Address, f.Author.Type, f.Author.UserID, f.Author.Name, f.CreatedAt, f.UpdatedAt)
	return err
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*gateway.File, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT file_id, filename, mime, size_bytes, content_hash, content_text, address, author_type, author_user_id, author_name, created_at, updated_at
		FROM files WHERE file_id = $1
	`, id)
	var f gateway.File
	if err := row.Scan(&f.FileID, &f.Filename, &f.Mime, &f.SizeBytes, &f.ContentHash, &f.ContentText, &f.Address, &f.Author.Type, &f.Author.UserID, &f.Author.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("file not found", err)
		}
		return nil, apperrors.UpstreamTransient("query file failed", err)
	}
	return &f, nil
}

func (r *Repository) UpdateFile(ctx context.Context, f *gateway.File) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE files SET filename=$1, mime=$2, content_text=$3, address=$4, updated_at=$5 WHERE file_id=$6
	`, f.Filename, f.Mime, f.ContentText, f.Address, f.UpdatedAt, f.FileID)
	return err
}

func (r *Repository) UpdateFileAddress(ctx context.Context, hash, address string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET address = $1, updated_at = NOW() WHERE content_hash = $2`, address, hash)
	if err != nil {
		return apperrors.UpstreamTransient("update file address failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("file not found", nil)
	}
	return nil
}

func (r *Repository) TouchFile(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE files SET updated_at = NOW() WHERE file_id = $1`, id)
	return err
}

func (r *Repository) CreateVector(ctx context.Context, v *gateway.Vector) error {
	meta, err := json.Marshal(v.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO vectors (vector_id, thread_id, embedding, content, metadata, embed_tool, namespace, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.VectorID, v.ThreadID, pgvector.NewVector(v.Embedding), v.Content, meta, v.EmbedTool, v.Metadata.Namespace, v.CreatedAt)
	return err
}

// SearchVectors calls the search_vectors stored procedure. On any error it falls back
// to an in-process ranking over ListThreadVectors so the observable ordering matches
// the RPC path (P5, scenario 6).
func (r *Repository) SearchVectors(ctx context.Context, embedding []float32, namespace gateway.Namespace, threadID uuid.UUID, threshold float64, k int) ([]gateway.ScoredVector, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT vector_id, thread_id, embedding, content, metadata, embed_tool, created_at, similarity
		FROM search_vectors($1, $2, $3, $4, $5)
	`, pgvector.NewVector(embedding), string(namespace), threadID, threshold, k)
	if err != nil {
		return r.fallback.SearchVectors(ctx, embedding, namespace, threadID, threshold, k)
	}
	defer rows.Close()

	var out []gateway.ScoredVector
	for rows.Next() {
		var sv gateway.ScoredVector
		var embeddingRaw any
		var metaRaw []byte
		if err := rows.Scan(&sv.VectorID, &sv.ThreadID, &embeddingRaw, &sv.Content, &metaRaw, &sv.EmbedTool, &sv.CreatedAt, &sv.Similarity); err != nil {
			return r.fallback.SearchVectors(ctx, embedding, namespace, threadID, threshold, k)
		}
		parsed, err := normalizeEmbedding(embeddingRaw)
		if err != nil {
			return r.fallback.SearchVectors(ctx, embedding, namespace, threadID, threshold, k)
		}
		sv.Embedding = parsed
		_ = json.Unmarshal(metaRaw, &sv.Metadata)
		out = append(out, sv)
	}
	if err := rows.Err(); err != nil {
		return r.fallback.SearchVectors(ctx, embedding, namespace, threadID, threshold, k)
	}
	return out, nil
}

func (r *Repository) ListThreadVectors(ctx context.Context, threadID uuid.UUID, namespace gateway.Namespace, limit int) ([]gateway.Vector, error) {
	query := `
		SELECT vector_id, thread_id, embedding, content, metadata, embed_tool, created_at
		FROM vectors WHERE thread_id = $1 AND namespace = $2 ORDER BY created_at ASC
	`
	args := []any{threadID, string(namespace)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.UpstreamTransient("list thread vectors failed", err)
	}
	defer rows.Close()

	var out []gateway.Vector
	for rows.Next() {
		var v gateway.Vector
		var embeddingRaw any
		var metaRaw []byte
		if err := rows.Scan(&v.VectorID, &v.ThreadID, &embeddingRaw, &v.Content, &metaRaw, &v.EmbedTool, &v.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := normalizeEmbedding(embeddingRaw)
		if err != nil {
			return nil, err
		}
		v.Embedding = parsed
		_ = json.Unmarshal(metaRaw, &v.Metadata)
		out = append(out, v)
	}
	return out, rows.Err()
}

var _ gateway.Repository = (*Repository)(nil)

// normalizeEmbedding handles the several wire shapes pgx may hand back for a vector
// column depending on driver registration, per the teacher's own guard.
func normalizeEmbedding(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case pgvector.Vector:
		return append([]float32(nil), v.Slice()...), nil
	case []float32:
		return append([]float32(nil), v...), nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimSuffix(trimmed, "]")
		if trimmed == "" {
			return nil, nil
		}
		parts := strings.Split(trimmed, ",")
		out := make([]float32, 0, len(parts))
		for _, p := range parts {
			numStr := strings.TrimSpace(p)
			if numStr == "" {
				continue
			}
			f, err := strconv.ParseFloat(numStr, 32)
			if err != nil {
				return nil, err
			}
			out = append(out, float32(f))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported embedding type %T", raw)
	}
}
