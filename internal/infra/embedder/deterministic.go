package embedder

import (
	"context"
	"hash/fnv"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// Deterministic avoids network calls by hashing text into a reproducible vector. Used in
// tests and as an offline fallback, adapted from the teacher's DeterministicEmbedder.
type Deterministic struct {
	dim int
}

// NewDeterministic constructs the embedder with a fixed output dimensionality.
func NewDeterministic(dim int) *Deterministic {
	if dim <= 0 {
		dim = 32
	}
	return &Deterministic{dim: dim}
}

func (e *Deterministic) Name() string { return "deterministic" }

func (e *Deterministic) Embed(_ context.Context, text string, dimensions int) ([]float32, error) {
	dim := e.dim
	if dimensions > 0 && dimensions < dim {
		dim = dimensions
	}
	vec := make([]float32, dim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	seed := hash.Sum64()
	for j := 0; j < dim; j++ {
		seed = seed*1099511628211 + 1469598103934665603
		vec[j] = float32(seed%997) / 997.0
	}
	return vec, nil
}

var _ gateway.Embedder = (*Deterministic)(nil)
