// Package gateway implements the retrieval-augmented completion pipeline: thread and
// message persistence, file ingestion, vector retrieval, context assembly, tool-use
// classification, external enrichment, and LLM invocation.
package gateway

import (
	"time"

	"github.com/google/uuid"
)

// Role is a message's author role within a thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Namespace partitions a thread's vector index.
type Namespace string

const (
	NamespaceFiles    Namespace = "files"
	NamespaceMessages Namespace = "messages"
)

// VectorSource names the kind of record a vector was derived from.
type VectorSource string

const (
	VectorSourceFile    VectorSource = "file"
	VectorSourceMessage VectorSource = "message"
)

// AddressDeleted is the sentinel File.Address value marking a file's bytes as removed
// from disk while its metadata record (and content hash) survives for dedup/restore.
const AddressDeleted = "deleted"

// Author identifies who produced a thread or message.
type Author struct {
	Type   string `json:"type"`
	UserID string `json:"user-id"`
	Name   string `json:"name"`
}

// Thread is a persisted conversation scope. It owns its Messages and Vectors; deleting
// a thread cascades to both (P6).
type Thread struct {
	ThreadID     uuid.UUID `json:"thread_id"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Purpose      string    `json:"purpose"`
	Author       Author    `json:"author"`
	TokensSpent  int64     `json:"tokens_spent"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// ContentBlock is the structured shape a message's content is persisted as.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Message is immutable once created along the core completion path.
type Message struct {
	MessageID uuid.UUID      `json:"message_id"`
	ThreadID  uuid.UUID      `json:"thread_id"`
	Role      Role           `json:"role"`
	Content   ContentBlock   `json:"content"`
	Author    Author         `json:"author"`
	FileRefs  []uuid.UUID    `json:"file_refs"`
	CreatedAt time.Time      `json:"created_at"`
}

// File is deduplicated by ContentHash: two uploads with identical bytes MUST reuse the
// same FileID (P1), and re-uploading a file whose Address is AddressDeleted restores it
// under the same FileID (P2).
type File struct {
	FileID      uuid.UUID `json:"file_id"`
	Filename    string    `json:"filename"`
	Mime        string    `json:"mime"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash"`
	ContentText string    `json:"content_text"`
	Address     string    `json:"address"`
	Author      Author    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsDeleted reports whether the file's bytes are absent from disk.
func (f *File) IsDeleted() bool { return f.Address == AddressDeleted }

// VectorMetadata carries provenance for a stored embedding.
type VectorMetadata struct {
	Namespace   Namespace    `json:"namespace"`
	Source      VectorSource `json:"source"`
	FileID      *uuid.UUID   `json:"file_id,omitempty"`
	FileName    string       `json:"file_name,omitempty"`
	MessageID   *uuid.UUID   `json:"message_id,omitempty"`
	ChunkIndex  *int         `json:"chunk_index,omitempty"`
	Role        string       `json:"role,omitempty"`
}

// Vector is owned by its thread; cascade-deleted with it (P6). Dimension is fixed per
// embedding model.
type Vector struct {
	VectorID  uuid.UUID      `json:"vector_id"`
	ThreadID  uuid.UUID      `json:"thread_id"`
	Embedding []float32      `json:"embedding"`
	Content   string         `json:"content"`
	Metadata  VectorMetadata `json:"metadata"`
	EmbedTool string         `json:"embed_tool"`
	CreatedAt time.Time      `json:"created_at"`
}

// ScoredVector pairs a Vector with its similarity to a query embedding.
type ScoredVector struct {
	Vector
	Similarity float64 `json:"similarity"`
}

// Chunk is transient: produced by the chunker, never persisted on its own.
type Chunk struct {
	Text  string
	Index int
}

// ContextBundle is the transient triple assembled by the context builder.
type ContextBundle struct {
	Query         string
	QueryContext  string
	LocalContext  string
	QueryTokens   int
	QueryCtxTokens int
	LocalCtxTokens int
}

// Total returns the combined token count across all three segments.
func (b ContextBundle) Total() int {
	return b.QueryTokens + b.QueryCtxTokens + b.LocalCtxTokens
}
