package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/polaris/gateway/internal/domain/gateway"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// maxUploadBytes is the hard per-file ceiling from spec §4.11 step 1, independent of the
// operator-configured StorageConfig.MaxFileMB (which may set a stricter limit).
const maxUploadBytes = 256 << 20

// Handler wires the HTTP transport to C12 (completions) and C11 (uploads).
type Handler struct {
	orchestrator   *gateway.Orchestrator
	ingestor       *gateway.Ingestor
	metrics        *metrics
	knownProviders map[string]struct{}
	maxFileBytes   int64
	logger         *slog.Logger
}

// NewHandler constructs the root HTTP handler. knownProviders names every provider the
// gateway recognizes (configured or not); a provider outside this set is a 400 "unknown
// combination", while a recognized-but-unconfigured provider is a 501 per spec §4.13.
func NewHandler(orchestrator *gateway.Orchestrator, ingestor *gateway.Ingestor, knownProviders []string, maxFileMB int, logger *slog.Logger) *Handler {
	known := make(map[string]struct{}, len(knownProviders))
	for _, p := range knownProviders {
		known[strings.ToLower(p)] = struct{}{}
	}
	maxBytes := int64(maxFileMB) << 20
	if maxBytes <= 0 || maxBytes > maxUploadBytes {
		maxBytes = maxUploadBytes
	}
	return &Handler{
		orchestrator:   orchestrator,
		ingestor:       ingestor,
		metrics:        newMetrics(),
		knownProviders: known,
		maxFileBytes:   maxBytes,
		logger:         logger.With("component", "http.handler"),
	}
}

// completionAuthorDTO mirrors gateway.Author's wire shape (spec §6).
type completionAuthorDTO struct {
	Type   string `json:"type"`
	UserID string `json:"user-id"`
	Name   string `json:"name"`
}

type completionMessageDTO struct {
	Role        string      `json:"role"`
	Content     string      `json:"content"`
	Attachments []uuid.UUID `json:"attachments"`
}

type completionRequestDTO struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Purpose  string                 `json:"purpose"`
	Author   completionAuthorDTO    `json:"author"`
	ThreadID *uuid.UUID             `json:"thread_id"`
	Messages []completionMessageDTO `json:"messages"`
}

type completionResponseDTO struct {
	ThreadID    uuid.UUID `json:"thread_id"`
	MessageID   uuid.UUID `json:"message_id"`
	Content     string    `json:"content"`
	TokensSpent int64     `json:"tokens_spent"`
	Cost        float64   `json:"cost"`
}

type completionErrorDTO struct {
	Error   string `json:"error"`
	Content string `json:"content,omitempty"`
}

// Complete handles POST /api/v1/chat/completions, accepting either a plain JSON body or
// a multipart/form-data request whose "json" field carries the payload and whose
// remaining file fields are uploaded and attached to the request before dispatch
// (spec §4.13).
func (h *Handler) Complete(c *gin.Context) {
	var req completionRequestDTO
	partial := false

	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		form, err := c.MultipartForm()
		if err != nil {
			h.respondCompletionError(c, http.StatusBadRequest, "malformed multipart body", "")
			return
		}
		payload := form.Value["json"]
		if len(payload) == 0 {
			h.respondCompletionError(c, http.StatusBadRequest, "missing json field", "")
			return
		}
		if err := json.Unmarshal([]byte(payload[0]), &req); err != nil {
			h.respondCompletionError(c, http.StatusBadRequest, "invalid json field: "+err.Error(), "")
			return
		}

		var fileIDs []uuid.UUID
		for field, headers := range form.File {
			if field == "json" {
				continue
			}
			for _, fh := range headers {
				fileID, err := h.ingestUpload(c, fh, completionAuthorDTO{})
				if err != nil {
					partial = true
					h.logger.Warn("attachment ingestion failed", "filename", fh.Filename, "error", err)
					continue
				}
				fileIDs = append(fileIDs, fileID)
			}
		}
		if len(fileIDs) > 0 {
			attachToLastUserMessage(&req, fileIDs)
		}

	default:
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondCompletionError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
			return
		}
	}

	if req.Provider == "" || req.Model == "" || len(req.Messages) == 0 {
		h.respondCompletionError(c, http.StatusBadRequest, "provider, model, and at least one message are required", "")
		return
	}
	if _, known := h.knownProviders[strings.ToLower(req.Provider)]; !known {
		h.respondCompletionError(c, http.StatusBadRequest, "unknown provider "+req.Provider, "")
		return
	}

	domainReq := gateway.CompletionRequest{
		Provider: req.Provider,
		Model:    req.Model,
		Purpose:  req.Purpose,
		Author: gateway.Author{
			Type:   req.Author.Type,
			UserID: req.Author.UserID,
			Name:   req.Author.Name,
		},
		ThreadID: req.ThreadID,
	}
	for _, m := range req.Messages {
		domainReq.Messages = append(domainReq.Messages, gateway.InboundMessage{
			Role:        gateway.Role(m.Role),
			Content:     m.Content,
			Attachments: m.Attachments,
		})
	}

	resp, err := h.orchestrator.Complete(c.Request.Context(), domainReq)
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeValidation):
			h.respondCompletionError(c, http.StatusBadRequest, errMessage(err), "")
		case apperrors.IsCode(err, apperrors.CodeNotFound):
			h.respondCompletionError(c, http.StatusNotImplemented, "provider "+req.Provider+" is not yet available", "")
		case apperrors.IsCode(err, apperrors.CodeUpstreamAuth):
			h.respondCompletionError(c, http.StatusBadGateway, "upstream provider rejected our credentials", "We're unable to reach the model provider right now, sorry about that.")
		case apperrors.IsCode(err, apperrors.CodeUpstreamRate):
			h.respondCompletionError(c, http.StatusTooManyRequests, "upstream provider is rate limiting us", "The assistant is a little busy, please try again shortly.")
		case apperrors.IsCode(err, apperrors.CodeUpstreamTransient):
			h.respondCompletionError(c, http.StatusBadGateway, errMessage(err), "")
		default:
			h.logger.Error("completion failed", "error", err)
			h.respondCompletionError(c, http.StatusInternalServerError, "internal error", "")
		}
		return
	}

	status := http.StatusOK
	if partial {
		status = http.StatusMultiStatus
	}
	c.JSON(status, completionResponseDTO{
		ThreadID:    resp.ThreadID,
		MessageID:   resp.MessageID,
		Content:     resp.Content,
		TokensSpent: resp.TokensSpent,
		Cost:        resp.Cost,
	})
}

func (h *Handler) respondCompletionError(c *gin.Context, status int, message, content string) {
	c.JSON(status, completionErrorDTO{Error: message, Content: content})
}

// attachToLastUserMessage appends fileIDs to the last user message's attachments, or to
// the last message overall if the request carries none.
func attachToLastUserMessage(req *completionRequestDTO, fileIDs []uuid.UUID) {
	target := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == string(gateway.RoleUser) {
			target = i
			break
		}
	}
	if target == -1 {
		target = len(req.Messages) - 1
	}
	if target < 0 {
		return
	}
	req.Messages[target].Attachments = append(req.Messages[target].Attachments, fileIDs...)
}

type uploadResultDTO struct {
	FileID         string `json:"file-id"`
	Size           int64  `json:"size"`
	Filename       string `json:"filename"`
	StoredFilename string `json:"stored_filename"`
}

type uploadResponseDTO struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Result  []uploadResultDTO `json:"result"`
}

// UploadFiles handles POST /api/v1/files: a standalone multipart upload that runs C11's
// persist/dedup/parse steps without attaching the result to any thread (spec §4.11, §6).
func (h *Handler) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed multipart body", err))
		return
	}
	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	if len(headers) == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "no files provided", nil))
		return
	}

	author := completionAuthorDTO{
		Type:   c.PostForm("author_type"),
		UserID: c.PostForm("author_id"),
	}

	var (
		results []uploadResultDTO
		failed  int
	)
	for _, fh := range headers {
		result, err := h.ingestUploadResult(c, fh, author)
		if err != nil {
			failed++
			h.logger.Warn("file upload ingestion failed", "filename", fh.Filename, "error", err)
			continue
		}
		results = append(results, result)
	}

	status := http.StatusOK
	message := "files ingested"
	switch {
	case len(results) == 0:
		status = http.StatusBadRequest
		message = "all uploads failed"
	case failed > 0:
		status = http.StatusMultiStatus
		message = "some uploads failed"
	}
	c.JSON(status, uploadResponseDTO{Status: http.StatusText(status), Message: message, Result: results})
}

func (h *Handler) ingestUpload(c *gin.Context, fh *multipart.FileHeader, author completionAuthorDTO) (uuid.UUID, error) {
	result, err := h.ingestUploadResult(c, fh, author)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(result.FileID)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (h *Handler) ingestUploadResult(c *gin.Context, fh *multipart.FileHeader, author completionAuthorDTO) (uploadResultDTO, error) {
	if fh.Size > h.maxFileBytes {
		return uploadResultDTO{}, apperrors.Validation("file exceeds maximum upload size", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return uploadResultDTO{}, apperrors.Internal("open uploaded file failed", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxFileBytes+1))
	if err != nil {
		return uploadResultDTO{}, apperrors.Internal("read uploaded file failed", err)
	}
	if int64(len(data)) > h.maxFileBytes {
		return uploadResultDTO{}, apperrors.Validation("file exceeds maximum upload size", nil)
	}

	mimeType := fh.Header.Get("Content-Type")
	ingestResult, err := h.ingestor.Ingest(c.Request.Context(), uuid.Nil, fh.Filename, mimeType, data, gateway.Author{
		Type:   author.Type,
		UserID: author.UserID,
		Name:   author.Name,
	})
	if err != nil {
		return uploadResultDTO{}, err
	}

	if h.metrics != nil {
		h.metrics.recordBytesIngested(int64(len(data)))
	}

	return uploadResultDTO{
		FileID:         ingestResult.File.FileID.String(),
		Size:           ingestResult.File.SizeBytes,
		Filename:       ingestResult.File.Filename,
		StoredFilename: ingestResult.File.Address,
	}, nil
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /api/v1/status: uptime, memory, and goroutine/CPU counts.
func (h *Handler) Status(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       h.metrics.uptime().String(),
		"uptime_seconds": h.metrics.uptime().Seconds(),
		"memory": gin.H{
			"alloc_bytes":       memStats.Alloc,
			"heap_inuse_bytes":  memStats.HeapInuse,
			"sys_bytes":         memStats.Sys,
		},
		"cpu": gin.H{
			"num_cpu":       runtime.NumCPU(),
			"num_goroutine": runtime.NumGoroutine(),
		},
		"timestamp": time.Now().UTC(),
	})
}

// Metrics handles GET /api/v1/metrics with a Prometheus-style plain text exposition.
func (h *Handler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, h.metrics.prometheusExposition())
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
