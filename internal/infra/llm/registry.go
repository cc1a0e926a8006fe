// Package llm provides the multi-provider LLM registry (C9/C12 domain stack): a single
// lookup keyed by provider name, generalized from the teacher's single hard-wired
// chatgpt.Client the way bbiangul-go-reason's llm/provider.go dispatches by a string
// switch over provider names.
package llm

import (
	"fmt"

	"github.com/polaris/gateway/internal/domain/gateway"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// Registry resolves a provider name to its LLM backend.
type Registry struct {
	backends map[string]gateway.LLM
}

// NewRegistry builds an empty registry; callers wire in backends with Register.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]gateway.LLM)}
}

// Register binds name to backend. Get matches names exactly; no case folding is applied.
func (r *Registry) Register(name string, backend gateway.LLM) {
	r.backends[name] = backend
}

// Get returns the backend for provider, or a NotFound AppError if unconfigured.
func (r *Registry) Get(provider string) (gateway.LLM, error) {
	backend, ok := r.backends[provider]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("no llm backend configured for provider %q", provider), nil)
	}
	return backend, nil
}

var _ gateway.LLMRegistry = (*Registry)(nil)
