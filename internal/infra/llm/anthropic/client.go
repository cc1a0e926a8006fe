// Package anthropic adapts Anthropic's Messages API to gateway.LLM, grounded on
// vvoland-cagent's anthropic provider client (same SDK, same NewClient/option wiring),
// trimmed to the gateway's single non-streaming Complete call: no tool-use sequencing,
// no thinking budgets, no Beta API.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/polaris/gateway/internal/domain/gateway"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

const defaultMaxTokens = 8192

// Client wraps the Anthropic SDK client as a gateway.LLM backend.
type Client struct {
	sdk anthropic.Client
}

// New constructs a Client from an API key and optional base URL override.
func New(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: anthropic.NewClient(opts...)}
}

func (c *Client) Name() string { return "anthropic" }

// Complete implements gateway.LLM. System-role messages are lifted into the top-level
// System parameter, per the Anthropic wire format; remaining messages become
// user/assistant turns. Inline images are attached as base64 image blocks parsed out of
// the data URL.
func (c *Client) Complete(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case "system":
			if txt := strings.TrimSpace(m.Content); txt != "" {
				system = append(system, anthropic.TextBlockParam{Text: txt})
			}
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			for _, img := range m.Images {
				if block, ok := imageBlock(img.URL); ok {
					blocks = append(blocks, block)
				}
			}
			turns = append(turns, anthropic.NewUserMessage(blocks...))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  turns,
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return gateway.CompletionResult{}, apperrors.UpstreamTransient("anthropic: messages.new failed", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return gateway.CompletionResult{
		Content:          text.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}, nil
}

// imageBlock parses a "data:<mime>;base64,<payload>" URL into an Anthropic image block.
// Non-data URLs (http/https) are sent as URL-sourced images.
func imageBlock(dataURL string) (anthropic.ContentBlockParamUnion, bool) {
	if strings.HasPrefix(dataURL, "http://") || strings.HasPrefix(dataURL, "https://") {
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: dataURL}), true
	}
	if !strings.HasPrefix(dataURL, "data:") {
		return anthropic.ContentBlockParamUnion{}, false
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 {
		return anthropic.ContentBlockParamUnion{}, false
	}
	mediaType := "image/jpeg"
	switch {
	case strings.Contains(parts[0], "image/png"):
		mediaType = "image/png"
	case strings.Contains(parts[0], "image/gif"):
		mediaType = "image/gif"
	case strings.Contains(parts[0], "image/webp"):
		mediaType = "image/webp"
	}
	return anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
		Data:      parts[1],
		MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
	}), true
}

var _ gateway.LLM = (*Client)(nil)
