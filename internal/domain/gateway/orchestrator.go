package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/polaris/gateway/pkg/errors"
)

const systemPreamble = "You are a helpful assistant. Use the information below to answer."

// CompletionRequest is the intake payload for C12, shaped per spec §6's
// chat-completions request body.
type CompletionRequest struct {
	Provider string
	Model    string
	Purpose  string
	Author   Author
	ThreadID *uuid.UUID
	Messages []InboundMessage
}

// InboundMessage is one message in a completion request, before persistence.
type InboundMessage struct {
	Role        Role
	Content     string
	Attachments []uuid.UUID
}

// CompletionResponse is C12's result shape.
type CompletionResponse struct {
	ThreadID    uuid.UUID
	MessageID   uuid.UUID
	Content     string
	TokensSpent int64
	Cost        float64
}

// Mode selects whether the orchestrator runs the classifier+enrichment step before
// retrieval (spec §4.12 step 6, "reasoner" mode).
type Mode string

const (
	ModePlain    Mode = "plain"
	ModeReasoner Mode = "reasoner"
)

// contextWindowTokens is the model window used to size C10's budget for every request;
// there is no per-request or per-config override (the spec's reference model uses 64K).
const contextWindowTokens = 64_000

// Orchestrator implements C12: it resolves or creates a thread, persists and
// vectorizes incoming messages, optionally classifies and enriches the query, retrieves
// local context, builds the final LLM request, and persists the assistant's reply.
type Orchestrator struct {
	repo       Repository
	llms       LLMRegistry
	ingestor   *Ingestor
	classifier Classifier
	enricher   Enricher
	retriever  *Retriever
	builder    *ContextBuilder
	embedder   Embedder
	counter    TokenCounter
	mode       Mode
}

// NewOrchestrator wires every component C12 drives. classifier and enricher may be nil,
// in which case the orchestrator always runs in ModePlain regardless of the configured
// mode.
func NewOrchestrator(
	repo Repository,
	llms LLMRegistry,
	ingestor *Ingestor,
	classifier Classifier,
	enricher Enricher,
	retriever *Retriever,
	builder *ContextBuilder,
	embedder Embedder,
	counter TokenCounter,
	mode Mode,
) *Orchestrator {
	return &Orchestrator{
		repo: repo, llms: llms, ingestor: ingestor, classifier: classifier,
		enricher: enricher, retriever: retriever, builder: builder,
		embedder: embedder, counter: counter, mode: mode,
	}
}

// Complete runs one full request through the pipeline described in spec §4.12.
func (o *Orchestrator) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	llm, err := o.llms.Get(req.Provider)
	if err != nil {
		return CompletionResponse{}, err
	}

	thread, err := o.resolveThread(ctx, req)
	if err != nil {
		return CompletionResponse{}, err
	}

	var queryMsg *InboundMessage
	var queryMessageID uuid.UUID
	var queryContextParts []string

	for i := range req.Messages {
		msg := req.Messages[i]
		validAttachments := o.validateAttachments(ctx, msg.Attachments)

		persisted := Message{
			MessageID: uuid.New(),
			ThreadID:  thread.ThreadID,
			Role:      msg.Role,
			Content:   ContentBlock{Type: "text", Text: msg.Content},
			Author:    req.Author,
			FileRefs:  validAttachments,
			CreatedAt: time.Now().UTC(),
		}
		if err := o.repo.CreateMessage(ctx, &persisted); err != nil {
			return CompletionResponse{}, apperrors.Internal("persist message failed", err)
		}

		for _, fileID := range validAttachments {
			file, err := o.repo.GetFile(ctx, fileID)
			if err != nil {
				continue
			}
			queryContextParts = append(queryContextParts, file.ContentText)
			if o.ingestor != nil {
				o.ingestor.VectorizeFile(ctx, thread.ThreadID, file)
			}
		}

		if msg.Role == RoleUser {
			m := msg
			queryMsg = &m
			queryMessageID = persisted.MessageID
		}
	}

	if queryMsg == nil {
		return CompletionResponse{}, apperrors.Validation("no user message present in request", nil)
	}
	_ = queryMessageID

	queryText := queryMsg.Content
	queryContext := strings.Join(queryContextParts, "\n\n")

	if o.mode == ModeReasoner && o.classifier != nil {
		tools, err := o.classifier.Classify(ctx, queryText)
		if err == nil && len(tools.Tools) > 0 && o.enricher != nil {
			enrichment := o.runEnrichment(ctx, tools)
			if enrichment != "" {
				queryContext = strings.TrimSpace(queryContext + "\n\n" + enrichment)
			}
		}
	}

	var localContext string
	if o.retriever != nil {
		localContext = o.retriever.Retrieve(ctx, thread.ThreadID, queryText, NamespaceFiles)
	}

	bundle := o.builder.Build(ctx, queryText, queryContext, localContext, contextWindowTokens,
		req.Provider, req.Model, DefaultWeights(), true)

	systemMsg := systemPreamble
	if bundle.LocalContext != "" {
		systemMsg += "\n\n[LOCAL DOCUMENT CONTEXT]\n" + bundle.LocalContext
	}
	userMsg := bundle.Query
	if bundle.QueryContext != "" {
		userMsg += "\n\n[QUERY CONTEXT]\n" + bundle.QueryContext
	}

	result, err := llm.Complete(ctx, req.Model, []CompletionMessage{
		{Role: "system", Content: systemMsg},
		{Role: "user", Content: userMsg},
	})
	if err != nil {
		return CompletionResponse{}, err
	}

	replyID := uuid.New()
	reply := Message{
		MessageID: replyID,
		ThreadID:  thread.ThreadID,
		Role:      RoleAssistant,
		Content:   ContentBlock{Type: "text", Text: result.Content},
		Author:    Author{Type: "assistant", Name: req.Provider},
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.CreateMessage(ctx, &reply); err != nil {
		return CompletionResponse{}, apperrors.Internal("persist assistant reply failed", err)
	}

	o.embedReply(ctx, thread.ThreadID, replyID, result.Content)

	thread.TokensSpent += int64(result.TotalTokens)
	_ = o.repo.UpdateThread(ctx, thread)

	return CompletionResponse{
		ThreadID:    thread.ThreadID,
		MessageID:   replyID,
		Content:     result.Content,
		TokensSpent: int64(result.TotalTokens),
		Cost:        0,
	}, nil
}

func (o *Orchestrator) resolveThread(ctx context.Context, req CompletionRequest) (*Thread, error) {
	if req.ThreadID != nil {
		thread, err := o.repo.GetThread(ctx, *req.ThreadID)
		if err == nil {
			return thread, nil
		}
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.Internal("resolve thread failed", err)
		}
	}

	thread := &Thread{
		ThreadID:  uuid.New(),
		Model:     req.Model,
		Provider:  req.Provider,
		Purpose:   req.Purpose,
		Author:    req.Author,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.CreateThread(ctx, thread); err != nil {
		return nil, apperrors.Internal("create thread failed", err)
	}
	return thread, nil
}

// validateAttachments drops unknown file ids, retaining ids whose lookup succeeds even
// if the file is marked deleted (an integrity warning, not a hard failure).
func (o *Orchestrator) validateAttachments(ctx context.Context, ids []uuid.UUID) []uuid.UUID {
	var valid []uuid.UUID
	for _, id := range ids {
		if _, err := o.repo.GetFile(ctx, id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (o *Orchestrator) runEnrichment(ctx context.Context, tools ToolSet) string {
	var sections []string
	for _, tool := range tools.Tools {
		switch tool {
		case "web_search":
			res := o.enricher.WebSearch(ctx, tools.WebSearch)
			sections = append(sections, enrichmentSection("WEB SEARCH", res))
		case "video":
			for _, url := range tools.Videos {
				res := o.enricher.VideoTranscript(ctx, url)
				sections = append(sections, enrichmentSection("VIDEO", res))
			}
		case "web_scrap":
			for _, url := range tools.WebScrap {
				res := o.enricher.PageScrape(ctx, url)
				sections = append(sections, enrichmentSection("WEB PAGE", res))
			}
		}
	}
	return strings.Join(sections, "\n\n")
}

func enrichmentSection(label string, res EnrichmentResult) string {
	if !res.Success {
		return fmt.Sprintf("[%s] No results available (%s).", label, res.Error)
	}
	return res.PayloadText
}

func (o *Orchestrator) embedReply(ctx context.Context, threadID, messageID uuid.UUID, content string) {
	if o.embedder == nil || strings.TrimSpace(content) == "" {
		return
	}
	vec, err := o.embedder.Embed(ctx, content, 0)
	if err != nil || vec == nil {
		return
	}
	v := Vector{
		VectorID:  uuid.New(),
		ThreadID:  threadID,
		Embedding: vec,
		Content:   content,
		Metadata: VectorMetadata{
			Namespace: NamespaceMessages,
			Source:    VectorSourceMessage,
			MessageID: &messageID,
			Role:      string(RoleAssistant),
		},
		EmbedTool: o.embedder.Name(),
		CreatedAt: time.Now().UTC(),
	}
	_ = o.repo.CreateVector(ctx, &v)
}
