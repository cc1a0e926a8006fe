package gateway

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by ObjectStore.Open when storedName has no blob.
var ErrObjectNotFound = errors.New("gateway: object not found")

// Repository is the persistence gateway (C1): uniform CRUD over Thread/Message/File/
// Vector, hash-based file dedup, and vector similarity search with an in-process
// fallback when the backend RPC is unavailable.
type Repository interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, id uuid.UUID) (*Thread, error)
	UpdateThread(ctx context.Context, t *Thread) error
	DeleteThread(ctx context.Context, id uuid.UUID) error

	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]Message, error)

	FindFileByHash(ctx context.Context, hash string) (*File, error)
	CreateFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)
	UpdateFile(ctx context.Context, f *File) error
	UpdateFileAddress(ctx context.Context, hash, address string) error
	TouchFile(ctx context.Context, id uuid.UUID) error

	CreateVector(ctx context.Context, v *Vector) error
	SearchVectors(ctx context.Context, embedding []float32, namespace Namespace, threadID uuid.UUID, threshold float64, k int) ([]ScoredVector, error)
	ListThreadVectors(ctx context.Context, threadID uuid.UUID, namespace Namespace, limit int) ([]Vector, error)
}

// Parser extracts plain text from one file format family (C2).
type Parser interface {
	// SupportedExtensions lists the lowercase extensions (without dot) this parser
	// handles.
	SupportedExtensions() []string
	// Parse returns extracted text and the parser's own name for provenance.
	Parse(ctx context.Context, filename, mime string, data []byte) (ParseResult, error)
}

// ParseResult is what a Parser returns for one file.
type ParseResult struct {
	Status string
	Text   string
	Tool   string
}

// ParserRegistry resolves a file extension to its ordered parser family and extracts
// text, stopping at the first parser that reports success (C2).
type ParserRegistry interface {
	Parse(ctx context.Context, filename, ext, mime string, data []byte) (text string, ok bool)
}

// Chunker splits text into overlapping chunks (C3).
type Chunker interface {
	Chunk(text string, chunkSize, chunkOverlap int) []Chunk
}

// Embedder produces a fixed-dimensional vector for a text (C4). A nil result with a nil
// error means "skip this chunk" per the provider-error contract.
type Embedder interface {
	Embed(ctx context.Context, text string, dimensions int) ([]float32, error)
	Name() string
}

// TokenCounter counts tokens for a (provider, model) pair (C5).
type TokenCounter interface {
	Count(ctx context.Context, text, provider, model string) (int, error)
}

// Summarizer compresses text to a token budget via an LLM (C6).
type Summarizer interface {
	Summarize(ctx context.Context, text string, targetTokens int, provider, model string) (SummaryResult, error)
}

// SummaryResult is the outcome of a Summarizer call.
type SummaryResult struct {
	Status       string // "ok" | "unchanged" | "partial"
	Content      string
	OriginalSize int
	ReducedSize  int
}

// ToolSet is the subset of external tools a classifier recommends.
type ToolSet struct {
	Tools     []string `json:"tools"`
	WebSearch string   `json:"web_search,omitempty"`
	Videos    []string `json:"videos,omitempty"`
	WebScrap  []string `json:"web_scrap,omitempty"`
}

// Classifier decides which external tools, if any, a query needs (C7).
type Classifier interface {
	Classify(ctx context.Context, query string) (ToolSet, error)
}

// EnrichmentResult is one tool adapter's normalized output (C8).
type EnrichmentResult struct {
	Success    bool
	PayloadText string
	Error      string
}

// Enricher executes external tool calls and normalizes their results (C8).
type Enricher interface {
	WebSearch(ctx context.Context, query string) EnrichmentResult
	VideoTranscript(ctx context.Context, url string) EnrichmentResult
	PageScrape(ctx context.Context, url string) EnrichmentResult
}

// CompletionMessage is one message in the request to an LLM chat-completion call.
type CompletionMessage struct {
	Role    string
	Content string
	Images  []ImageBlock
}

// ImageBlock carries an inline image for multimodal prompts. URL is always the literal
// data URL (never the string "data_url" — see design notes on the source bug).
type ImageBlock struct {
	URL string
}

// CompletionResult is a provider's answer plus usage accounting.
type CompletionResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLM is a per-(provider) chat-completion backend (C9/C12 domain stack multi-provider
// dispatch); embeddings go through the separate Embedder interface.
type LLM interface {
	Complete(ctx context.Context, model string, messages []CompletionMessage) (CompletionResult, error)
	Name() string
}

// LLMRegistry resolves a provider name to an LLM implementation.
type LLMRegistry interface {
	Get(provider string) (LLM, error)
}

// ObjectStore persists uploaded file bytes to durable storage and locates them again
// across a configured search-path list.
type ObjectStore interface {
	Save(ctx context.Context, storedName string, r io.Reader, size int64) error
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
	Locate(storedName string) (string, bool)
}
