package gateway_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/embedder"
	gatewaymemory "github.com/polaris/gateway/internal/infra/gateway/memory"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

type stubOrchLLM struct {
	reply        string
	lastMessages []gateway.CompletionMessage
}

func (s *stubOrchLLM) Complete(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
	s.lastMessages = messages
	return gateway.CompletionResult{Content: s.reply, TotalTokens: 42}, nil
}

func (s *stubOrchLLM) Name() string { return "stub" }

type stubOrchRegistry struct {
	llm gateway.LLM
}

func (r *stubOrchRegistry) Get(provider string) (gateway.LLM, error) {
	if r.llm == nil {
		return nil, apperrors.NotFound("provider not configured", nil)
	}
	return r.llm, nil
}

func newTestOrchestrator() (*gateway.Orchestrator, *gatewaymemory.Repository) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	registry := &stubOrchRegistry{llm: &stubOrchLLM{reply: "hello back"}}
	retriever := gateway.NewRetriever(repo, emb, nil, "")
	builder := gateway.NewContextBuilder(charCounter{}, nil)
	orch := gateway.NewOrchestrator(repo, registry, nil, nil, nil, retriever, builder, emb, charCounter{}, gateway.ModePlain)
	return orch, repo
}

func TestOrchestrator_Complete_CreatesThreadAndReplies(t *testing.T) {
	orch, repo := newTestOrchestrator()

	req := gateway.CompletionRequest{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Author:   gateway.Author{Type: "user", Name: "tester"},
		Messages: []gateway.InboundMessage{
			{Role: gateway.RoleUser, Content: "hi there"},
		},
	}

	resp, err := orch.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, resp.ThreadID)
	require.NotEqual(t, uuid.Nil, resp.MessageID)
	require.Equal(t, "hello back", resp.Content)
	require.EqualValues(t, 42, resp.TokensSpent)

	thread, err := repo.GetThread(context.Background(), resp.ThreadID)
	require.NoError(t, err)
	require.EqualValues(t, 42, thread.TokensSpent)
}

func TestOrchestrator_Complete_ReusesExistingThread(t *testing.T) {
	orch, repo := newTestOrchestrator()
	thread := &gateway.Thread{ThreadID: uuid.New(), Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, repo.CreateThread(context.Background(), thread))

	req := gateway.CompletionRequest{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		ThreadID: &thread.ThreadID,
		Messages: []gateway.InboundMessage{
			{Role: gateway.RoleUser, Content: "continue the conversation"},
		},
	}

	resp, err := orch.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, thread.ThreadID, resp.ThreadID)
}

func TestOrchestrator_Complete_NoUserMessageFails(t *testing.T) {
	orch, _ := newTestOrchestrator()

	req := gateway.CompletionRequest{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Messages: []gateway.InboundMessage{
			{Role: gateway.RoleSystem, Content: "system only"},
		},
	}

	_, err := orch.Complete(context.Background(), req)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestOrchestrator_Complete_UnknownProviderFails(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	registry := &stubOrchRegistry{}
	retriever := gateway.NewRetriever(repo, emb, nil, "")
	builder := gateway.NewContextBuilder(charCounter{}, nil)
	orch := gateway.NewOrchestrator(repo, registry, nil, nil, nil, retriever, builder, emb, charCounter{}, gateway.ModePlain)

	req := gateway.CompletionRequest{
		Provider: "unconfigured",
		Model:    "gpt-4o-mini",
		Messages: []gateway.InboundMessage{
			{Role: gateway.RoleUser, Content: "hi"},
		},
	}

	_, err := orch.Complete(context.Background(), req)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestOrchestrator_Complete_AttachmentsAddQueryContext(t *testing.T) {
	repo := gatewaymemory.New()
	emb := embedder.NewDeterministic(8)
	llm := &stubOrchLLM{reply: "hello back"}
	registry := &stubOrchRegistry{llm: llm}
	retriever := gateway.NewRetriever(repo, emb, nil, "")
	builder := gateway.NewContextBuilder(charCounter{}, nil)
	orch := gateway.NewOrchestrator(repo, registry, nil, nil, nil, retriever, builder, emb, charCounter{}, gateway.ModePlain)

	file := &gateway.File{FileID: uuid.New(), Filename: "notes.txt", ContentText: "important file content", Address: "file-1.txt"}
	require.NoError(t, repo.CreateFile(context.Background(), file))

	req := gateway.CompletionRequest{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Messages: []gateway.InboundMessage{
			{Role: gateway.RoleUser, Content: "what does the file say?", Attachments: []uuid.UUID{file.FileID}},
		},
	}

	resp, err := orch.Complete(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, resp.MessageID)
	require.Len(t, llm.lastMessages, 2)
	require.Contains(t, llm.lastMessages[1].Content, "[QUERY CONTEXT]\nimportant file content")
}
