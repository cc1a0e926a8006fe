package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	text    string
	err     error
	prompts []string
}

func (s *stubExtractor) Extract(ctx context.Context, mime string, data []byte, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func TestRegistry_PDFFallsThroughToMultimodalWhenNoTextLayer(t *testing.T) {
	r := NewRegistry(&stubExtractor{text: "described by vision model"})

	outcome := r.ParseDetailed(context.Background(), "scan.pdf", "pdf", "application/pdf", []byte("not a real pdf"))

	require.Equal(t, "ok", outcome.Status)
	require.Equal(t, "described by vision model", outcome.Text)
	require.Equal(t, []string{"pdf", "multimodal"}, outcome.ToolsUsed)
}

func TestRegistry_UnknownExtension(t *testing.T) {
	r := NewRegistry(nil)
	require.False(t, r.IsKnownExtension("exe"))
	require.True(t, r.IsKnownExtension("csv"))
	require.True(t, r.IsKnownExtension("xlsx"))
	require.True(t, r.IsKnownExtension("pdf"))
}

func TestRegistry_Register_OverridesFamily(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("csv", &TextParser{})

	outcome := r.ParseDetailed(context.Background(), "data.csv", "csv", "text/csv", []byte("a,b\n1,2\n"))
	require.Equal(t, "ok", outcome.Status)
	require.Equal(t, "text", outcome.ToolsUsed[0])
}

func TestRegistry_AmbiguousVideoExtensionTriesVideoThenAudio(t *testing.T) {
	ext := &stubExtractor{err: errNoExtractor}
	r := NewRegistry(ext)
	outcome := r.ParseDetailed(context.Background(), "clip.mp4", "mp4", "video/mp4", []byte("data"))
	require.NotEmpty(t, outcome.ToolsUsed)
	require.Equal(t, []string{"analyze this video and describe its content", "transcribe this audio"}, ext.prompts)
}
