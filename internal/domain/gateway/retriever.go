package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/polaris/gateway/pkg/logger"
)

// similarityThreshold is the default minimum cosine similarity for retrieval (C9).
const similarityThreshold = 0.5

// defaultTopK is used when adaptive-k is disabled or its classifier call fails.
const defaultTopK = 5

// Retriever implements C9: embed a query, optionally compute an adaptive k, and fetch
// the top-k similar chunks from a thread's namespace.
type Retriever struct {
	repo     Repository
	embedder Embedder
	topKLLM  LLM // optional; nil disables adaptive-k
	topKModel string
}

// NewRetriever constructs a Retriever. topKLLM may be nil, in which case adaptive-k
// always falls back to defaultTopK.
func NewRetriever(repo Repository, embedder Embedder, topKLLM LLM, topKModel string) *Retriever {
	return &Retriever{repo: repo, embedder: embedder, topKLLM: topKLLM, topKModel: topKModel}
}

// Retrieve embeds queryText, determines k, searches vectors, and formats the result as
// "Chunk #i (Source: <file_name>): <text>" blocks separated by blank lines. An empty
// query or embedding failure returns "" (per spec §4.9).
func (r *Retriever) Retrieve(ctx context.Context, threadID uuid.UUID, queryText string, namespace Namespace) string {
	if strings.TrimSpace(queryText) == "" {
		return ""
	}

	embedding, err := r.embedder.Embed(ctx, queryText, 0)
	if err != nil || embedding == nil {
		logger.FromContext(ctx).Warn("retriever embedding failed, skipping retrieval", "error", err)
		return ""
	}

	k := r.resolveTopK(ctx, queryText)

	scored, err := r.repo.SearchVectors(ctx, embedding, namespace, threadID, similarityThreshold, k)
	if err != nil || len(scored) == 0 {
		return ""
	}

	var chunks []string
	for i, sv := range scored {
		source := ""
		if sv.Metadata.FileName != "" {
			source = fmt.Sprintf(" (Source: %s)", sv.Metadata.FileName)
		}
		chunks = append(chunks, fmt.Sprintf("Chunk #%d%s: %s", i+1, source, sv.Content))
	}
	return strings.Join(chunks, "\n\n")
}

// resolveTopK asks the classifier LLM to pick 3/5/8 based on query specificity,
// defaulting to defaultTopK on any failure, per top_k_selector.py.
func (r *Retriever) resolveTopK(ctx context.Context, queryText string) int {
	if r.topKLLM == nil {
		return defaultTopK
	}

	resp, err := r.topKLLM.Complete(ctx, r.topKModel, []CompletionMessage{
		{Role: "system", Content: topKSystemPrompt},
		{Role: "user", Content: queryText},
	})
	if err != nil {
		return defaultTopK
	}

	k := parseTopK(resp.Content)
	if k != 3 && k != 5 && k != 8 {
		return defaultTopK
	}
	return k
}

const topKSystemPrompt = `You are an expert at choosing the optimal number of chunks (top_k) to retrieve from a vector store for a given user query.
Based on the user's query, determine how specific or broad it is, and select the appropriate top_k value:

- Pick 3 if very specific and focused.
- Pick 5 if moderately specific.
- Pick 8 if very broad or open ended.

Return only a JSON object with the 'top_k' key and appropriate value.`

// parseTopK extracts the integer value of a {"top_k": N} JSON response, tolerating
// surrounding whitespace or code fences. Returns 0 if no valid integer is found.
func parseTopK(content string) int {
	content = strings.TrimSpace(content)
	idx := strings.Index(content, "top_k")
	if idx == -1 {
		return 0
	}
	rest := content[idx+len("top_k"):]
	var n int
	var found bool
	for _, r := range rest {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			found = true
		} else if found {
			break
		}
	}
	if !found {
		return 0
	}
	return n
}
