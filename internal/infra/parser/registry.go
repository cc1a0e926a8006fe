// Package parser implements the format-specific extractor registry (C2): each file
// extension maps to an ordered list of parsers, tried in order until one succeeds.
// Generalized from bbiangul-go-reason's one-parser-per-format Registry into a 1:many
// registry, since ambiguous extensions (.mp4, .webm, .mpeg) must try more than one
// family (video, then audio).
package parser

import (
	"context"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// Registry dispatches a file to its format family's parsers in order.
type Registry struct {
	byExtension map[string][]gateway.Parser
}

// NewRegistry builds the registry wiring every format family from spec §4.2.
func NewRegistry(multimodal MultimodalExtractor) *Registry {
	r := &Registry{byExtension: make(map[string][]gateway.Parser)}

	textParser := &TextParser{}
	tableParser := &TableParser{}
	spreadsheetParser := &SpreadsheetParser{}
	nativePDF := &NativePDFParser{}
	multimodalDoc := NewMultimodalParser(multimodal, "extract all original content as plain text")
	multimodalImage := NewMultimodalParser(multimodal, "describe and OCR this image in detail")
	multimodalAudio := NewMultimodalParser(multimodal, "transcribe this audio")
	multimodalVideo := NewMultimodalParser(multimodal, "analyze this video and describe its content")

	register := func(parsers []gateway.Parser, exts ...string) {
		for _, ext := range exts {
			r.byExtension[ext] = append(r.byExtension[ext], parsers...)
		}
	}

	// Native extraction first: scanned/image-only PDFs report "skip" and fall through
	// to the multimodal document parser (spec §4.2).
	register([]gateway.Parser{nativePDF, multimodalDoc}, "pdf")
	register([]gateway.Parser{multimodalDoc}, "doc", "docx", "rtf", "dot", "dotx", "hwp", "hwpx")
	register([]gateway.Parser{multimodalImage}, "png", "jpg", "jpeg", "webp")
	register([]gateway.Parser{multimodalAudio}, "aac", "flac", "mp3", "m4a", "mpga", "opus", "pcm", "wav")
	register([]gateway.Parser{multimodalVideo}, "flv", "mov", "mpg", "mpegps", "wmv", "3gpp")

	// Ambiguous extensions try video first, then audio (spec §4.2).
	register([]gateway.Parser{multimodalVideo, multimodalAudio}, "mp4", "webm", "mpeg")

	register([]gateway.Parser{tableParser}, "csv", "tsv")
	register([]gateway.Parser{spreadsheetParser}, "xlsx", "xls")
	register([]gateway.Parser{textParser}, "txt", "py", "java", "js", "html", "css", "c", "cpp", "h", "hpp",
		"cs", "php", "rb", "go", "rs", "sql", "ts", "swift", "kt", "json", "xml", "yaml", "yml")

	return r
}

// Register adds a parser at the front of ext's parser list, letting a caller override
// or extend the default family assignment.
func (r *Registry) Register(ext string, p gateway.Parser) {
	r.byExtension[ext] = append([]gateway.Parser{p}, r.byExtension[ext]...)
}

// ParseOutcome is the registry's result shape per spec §4.2.
type ParseOutcome struct {
	Status    string
	Text      string
	ToolsUsed []string
}

// ParseDetailed tries ext's parsers in order, stopping at the first ok result, and
// reports which tool(s) were attempted along the way.
func (r *Registry) ParseDetailed(ctx context.Context, filename, ext, mime string, data []byte) ParseOutcome {
	parsers := r.byExtension[ext]
	var tried []string
	for _, p := range parsers {
		result, err := p.Parse(ctx, filename, mime, data)
		tried = append(tried, result.Tool)
		if err == nil && result.Status == "ok" {
			return ParseOutcome{Status: "ok", Text: result.Text, ToolsUsed: tried}
		}
	}
	return ParseOutcome{Status: "error", ToolsUsed: tried}
}

// Parse implements gateway.ParserRegistry.
func (r *Registry) Parse(ctx context.Context, filename, ext, mime string, data []byte) (string, bool) {
	outcome := r.ParseDetailed(ctx, filename, ext, mime, data)
	return outcome.Text, outcome.Status == "ok"
}

// IsKnownExtension reports whether the registry has any parser registered for ext.
func (r *Registry) IsKnownExtension(ext string) bool {
	return len(r.byExtension[ext]) > 0
}

var _ gateway.ParserRegistry = (*Registry)(nil)
