// Package openaicompat implements one HTTP client shape shared by every provider that
// speaks the OpenAI chat-completions and embeddings wire format: openai, chatgpt
// (Azure/self-hosted proxies), openrouter, groq, and xai. Each provider is just a
// (baseURL, apiKey) pair over the same client, generalized from the teacher's
// single-tenant chatgpt.Client into a named, multi-provider adapter.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// message is the wire shape of one chat message, including optional multimodal parts.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbeddingRequest is the payload for an embeddings call.
type EmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// EmbeddingResponse is the response for an embeddings call.
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client is a provider-named OpenAI-compatible HTTP client.
type Client struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a client for a named provider. baseURL must already include any
// required API version path segment.
func New(name, apiKey, baseURL string) *Client {
	return &Client{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *Client) Name() string { return c.name }

// Complete implements gateway.LLM.
func (c *Client) Complete(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
	wireMessages := make([]message, 0, len(messages))
	for _, m := range messages {
		wireMessages = append(wireMessages, toWireMessage(m))
	}

	req := chatRequest{Model: model, Messages: wireMessages}
	body, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return gateway.CompletionResult{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return gateway.CompletionResult{}, fmt.Errorf("%s: decode chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return gateway.CompletionResult{}, fmt.Errorf("%s: empty completion choices", c.name)
	}
	return gateway.CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// CreateEmbedding requests embeddings for a batch of texts.
func (c *Client) CreateEmbedding(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	var out EmbeddingResponse
	body, err := c.post(ctx, "/embeddings", req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%s: decode embedding response: %w", c.name, err)
	}
	return out, nil
}

func toWireMessage(m gateway.CompletionMessage) message {
	if len(m.Images) == 0 {
		return message{Role: m.Role, Content: m.Content}
	}
	parts := []contentPart{{Type: "text", Text: m.Content}}
	for _, img := range m.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{URL: img.URL}})
	}
	return message{Role: m.Role, Content: parts}
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode >= 300 {
		return nil, classifyStatus(c.name, resp.StatusCode, body)
	}
	return body, nil
}

var _ gateway.LLM = (*Client)(nil)
