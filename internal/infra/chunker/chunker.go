// Package chunker splits ingested text into overlapping chunks for embedding (C3).
//
// Two algorithms are implemented, mirroring the source's own two-path design: a
// recursive-separator splitter is the primary path; a linear-window splitter with
// soft boundary preference is the fallback, used only if the recursive split returns
// nil. Because the recursive separator list ends with "" (per-character splitting), the
// recursive split always produces pieces, so in practice Chunk never reaches the fallback.
package chunker

import (
	"strings"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// recursiveSeparators is tried in priority order: paragraph breaks first, then line
// breaks, then spaces, then raw character splitting.
var recursiveSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker implements gateway.Chunker.
type Chunker struct{}

// New constructs a Chunker.
func New() *Chunker { return &Chunker{} }

// Chunk splits text into chunks of at most chunkSize characters with chunkOverlap
// characters of overlap between consecutive chunks (P3).
func (c *Chunker) Chunk(text string, chunkSize, chunkOverlap int) []gateway.Chunk {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	pieces := recursiveSplit(text, chunkSize, chunkOverlap, recursiveSeparators)
	if pieces == nil {
		pieces = basicSplit(text, chunkSize, chunkOverlap)
	}

	chunks := make([]gateway.Chunk, 0, len(pieces))
	for i, p := range pieces {
		if p == "" {
			continue
		}
		chunks = append(chunks, gateway.Chunk{Text: p, Index: i})
	}
	return chunks
}

// recursiveSplit implements a RecursiveCharacterTextSplitter-equivalent: split on the
// highest-priority separator present, merge the resulting pieces back into chunks up to
// chunkSize, recursing into any piece that is still too long using the remaining
// separators. The "" separator splits per character, so a separator list ending in ""
// always makes progress and the result is never nil.
func recursiveSplit(text string, chunkSize, chunkOverlap int, separators []string) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var sep string
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = splitEvery(text, 1)
	} else {
		splits = strings.Split(text, sep)
	}

	// Re-expand any piece still longer than chunkSize using the remaining separator
	// priority list.
	var expanded []string
	for _, piece := range splits {
		if len(piece) > chunkSize && len(rest) > 0 {
			expanded = append(expanded, recursiveSplit(piece, chunkSize, chunkOverlap, rest)...)
		} else {
			expanded = append(expanded, piece)
		}
	}

	return mergeSplits(expanded, sep, chunkSize, chunkOverlap)
}

// mergeSplits greedily packs adjacent pieces (rejoined by sep) into chunks no longer
// than chunkSize, carrying chunkOverlap characters of trailing context from one chunk
// into the start of the next.
func mergeSplits(pieces []string, sep string, chunkSize, chunkOverlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}
	}

	for _, p := range pieces {
		candidate := p
		if current.Len() > 0 {
			candidate = current.String() + sep + p
		}
		if len(candidate) <= chunkSize || current.Len() == 0 {
			current.Reset()
			current.WriteString(candidate)
			continue
		}
		flush()
		tail := overlapTail(current.String(), chunkOverlap)
		current.Reset()
		if tail != "" && len(tail)+len(sep)+len(p) <= chunkSize {
			current.WriteString(tail)
			current.WriteString(sep)
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}

// overlapTail returns the last n characters of s, rune-safe.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func splitEvery(s string, n int) []string {
	r := []rune(s)
	var out []string
	for i := 0; i < len(r); i += n {
		end := i + n
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}

// basicSplit is the linear-window fallback: a soft-boundary scan on each window before
// falling back to a hard cut at chunkSize, stepping by chunkSize-chunkOverlap.
func basicSplit(text string, chunkSize, chunkOverlap int) []string {
	var chunks []string
	start := 0
	length := len(text)

	for start < length {
		end := start + chunkSize
		if end > length {
			end = length
		}

		if end < length {
			window := text[start:end]
			if idx := strings.LastIndex(window, "\n\n"); idx != -1 && idx > len(window)/2 {
				end = start + idx + 2
			} else if idx := strings.LastIndex(window, ". "); idx != -1 && idx > len(window)/3 {
				end = start + idx + 2
			}
		}

		chunks = append(chunks, text[start:end])

		next := start + chunkSize - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
		if start >= length {
			break
		}
	}
	return chunks
}

var _ gateway.Chunker = (*Chunker)(nil)
