// Package tokenizer implements the (provider, model) -> token counter registry (C5),
// generalizing the teacher's single hard-coded cl100k_base encoding into a lookup keyed
// by provider/model, with a length-based estimate when the real tokenizer errors.
package tokenizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// ErrUnknownProvider and ErrUnknownModel are returned when (provider, model) cannot be
// resolved to a concrete encoding.
var (
	ErrUnknownProvider = fmt.Errorf("tokenizer: unknown provider")
	ErrUnknownModel    = fmt.Errorf("tokenizer: unknown model")
)

// encodingFor maps a provider to the tiktoken encoding its models use. Anthropic and
// gemini have no public tiktoken-compatible encoding; known providers without an entry
// here fall through to the length/4 estimate, while providers absent from knownProviders
// entirely are rejected outright.
var encodingFor = map[string]string{
	"openai":     "cl100k_base",
	"chatgpt":    "cl100k_base",
	"openrouter": "cl100k_base",
	"groq":       "cl100k_base",
	"xai":        "cl100k_base",
}

// knownProviders is the full set of providers the LLM registry can dispatch to,
// including the ones without a local tokenizer encoding.
var knownProviders = map[string]bool{
	"openai":     true,
	"chatgpt":    true,
	"openrouter": true,
	"groq":       true,
	"xai":        true,
	"anthropic":  true,
	"gemini":     true,
}

// Registry resolves (provider, model) to a token counter, caching loaded encodings.
type Registry struct {
	encoders map[string]*tiktoken.Tiktoken
}

// New constructs an empty registry; encodings are loaded lazily on first use.
func New() *Registry {
	return &Registry{encoders: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count for text under (provider, model). If the provider is
// unrecognized, ErrUnknownProvider is returned. If the model is empty,
// ErrUnknownModel is returned. If the underlying tokenizer itself errors (e.g. the
// encoding table failed to load), Count falls back to a length-based estimate
// (len(text)/4) with a nil error, per the registry's uniform error surface contract.
func (r *Registry) Count(ctx context.Context, text, provider, model string) (int, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.ToLower(strings.TrimSpace(model))
	if provider == "" {
		return 0, ErrUnknownProvider
	}
	if model == "" {
		return 0, ErrUnknownModel
	}
	if !knownProviders[provider] {
		return 0, ErrUnknownProvider
	}

	encodingName, ok := encodingFor[provider]
	if !ok {
		// Known provider, but no local tiktoken-compatible encoding (anthropic, gemini):
		// the tokenizer itself "errors" in the registry's terms, so fall back to the
		// advisory length estimate rather than failing the caller.
		return estimate(text), nil
	}

	enc, err := r.encoderFor(encodingName)
	if err != nil {
		return estimate(text), nil
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (r *Registry) encoderFor(name string) (*tiktoken.Tiktoken, error) {
	if enc, ok := r.encoders[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	r.encoders[name] = enc
	return enc, nil
}

// estimate is the length-based fallback: len(text)/4 runes.
func estimate(text string) int {
	n := len([]rune(text)) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

var _ gateway.TokenCounter = (*Registry)(nil)
