// Package embedder implements C4: request an embedding vector from a provider's
// embeddings endpoint, truncate it to the requested dimensionality (Matryoshka
// representation learning lets a prefix of a larger embedding serve as a valid
// lower-dimensional embedding), and guard against malformed values. Adapted from the
// teacher's embedder.ChatGPTEmbedder (single-text call, provider-agnostic client swap).
package embedder

import (
	"context"
	"fmt"
	"math"

	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/llm/openaicompat"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// Client is the subset of openaicompat.Client this package depends on.
type Client interface {
	CreateEmbedding(ctx context.Context, req openaicompat.EmbeddingRequest) (openaicompat.EmbeddingResponse, error)
}

// Embedder requests a single embedding per call, truncating to the caller's requested
// dimensionality per Matryoshka semantics.
type Embedder struct {
	client Client
	model  string
	name   string
}

// New constructs an Embedder backed by an OpenAI-compatible embeddings client.
func New(name string, client Client, model string) *Embedder {
	return &Embedder{client: client, model: model, name: name}
}

func (e *Embedder) Name() string { return e.name }

// Embed requests an embedding for text and truncates it to dimensions (0 means "use the
// provider's native size"). It rejects vectors containing NaN or Inf values, per the
// source's embedding sanity check over the first ~10 components.
func (e *Embedder) Embed(ctx context.Context, text string, dimensions int) ([]float32, error) {
	resp, err := e.client.CreateEmbedding(ctx, openaicompat.EmbeddingRequest{
		Model:      e.model,
		Input:      []string{text},
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.UpstreamTransient(fmt.Sprintf("%s: embedding response had no data", e.name), nil)
	}

	vec := resp.Data[0].Embedding
	if err := validateEmbedding(vec); err != nil {
		return nil, err
	}

	if dimensions > 0 && dimensions < len(vec) {
		vec = vec[:dimensions]
	}
	return vec, nil
}

// validateEmbedding checks the leading components of vec for NaN/Inf, mirroring the
// original's defensive scan over the first ~10 values rather than the whole vector.
func validateEmbedding(vec []float32) error {
	limit := len(vec)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		v := float64(vec[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Integrity("embedding contains NaN or Inf values", nil)
		}
	}
	return nil
}

var _ gateway.Embedder = (*Embedder)(nil)
