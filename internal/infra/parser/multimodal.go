package parser

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// errNoExtractor is returned when a multimodal parser is wired with no LLM backend.
var errNoExtractor = errors.New("parser: no multimodal extractor configured")

// MultimodalExtractor sends an inline file (as a data URL) to a vision/audio capable
// LLM with an instruction prompt and returns its extracted text. Grounded on
// bbiangul-go-reason's pdf_vision.go, which builds the image block as
// ImageURL{URL: "data:application/pdf;base64," + b64} — never the literal string
// "data_url" that the source sometimes assigns by mistake (spec design notes).
type MultimodalExtractor interface {
	Extract(ctx context.Context, mime string, data []byte, prompt string) (string, error)
}

// LLMMultimodalExtractor implements MultimodalExtractor via a chat-completion LLM that
// accepts inline image/document blocks.
type LLMMultimodalExtractor struct {
	llm   gateway.LLM
	model string
}

// NewLLMMultimodalExtractor constructs an extractor bound to a specific provider model.
func NewLLMMultimodalExtractor(llm gateway.LLM, model string) *LLMMultimodalExtractor {
	return &LLMMultimodalExtractor{llm: llm, model: model}
}

func (e *LLMMultimodalExtractor) Extract(ctx context.Context, mime string, data []byte, prompt string) (string, error) {
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	resp, err := e.llm.Complete(ctx, e.model, []gateway.CompletionMessage{
		{
			Role:    "user",
			Content: prompt,
			Images:  []gateway.ImageBlock{{URL: dataURL}},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// MultimodalParser adapts a MultimodalExtractor to the Parser interface with a fixed
// instruction prompt for its format family (document, image, audio, video).
type MultimodalParser struct {
	extractor MultimodalExtractor
	prompt    string
}

// NewMultimodalParser binds an extractor to the prompt used for one format family.
func NewMultimodalParser(extractor MultimodalExtractor, prompt string) *MultimodalParser {
	return &MultimodalParser{extractor: extractor, prompt: prompt}
}

func (p *MultimodalParser) SupportedExtensions() []string { return nil }

func (p *MultimodalParser) Parse(ctx context.Context, filename, mime string, data []byte) (gateway.ParseResult, error) {
	if p.extractor == nil {
		return gateway.ParseResult{Status: "error", Tool: "multimodal"}, errNoExtractor
	}
	text, err := p.extractor.Extract(ctx, mime, data, p.prompt)
	if err != nil {
		return gateway.ParseResult{Status: "error", Tool: "multimodal"}, err
	}
	return gateway.ParseResult{Status: "ok", Text: text, Tool: "multimodal"}, nil
}

var (
	_ gateway.Parser = (*TextParser)(nil)
	_ gateway.Parser = (*TableParser)(nil)
	_ gateway.Parser = (*MultimodalParser)(nil)
)
