package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/auth"
	"github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/chunker"
	"github.com/polaris/gateway/internal/infra/config"
	"github.com/polaris/gateway/internal/infra/embedder"
	gatewaymemory "github.com/polaris/gateway/internal/infra/gateway/memory"
	"github.com/polaris/gateway/internal/infra/parser"
	"github.com/polaris/gateway/internal/infra/storage"
	apperrors "github.com/polaris/gateway/pkg/errors"
)

// stubLLM is a fakeable gateway.LLM used to exercise the orchestrator's terminal call
// without any network dependency.
type stubLLM struct {
	name       string
	completeFn func(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error)
}

func (s *stubLLM) Name() string { return s.name }

func (s *stubLLM) Complete(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
	return s.completeFn(ctx, model, messages)
}

// stubRegistry implements gateway.LLMRegistry over a fixed set of backends; any
// provider not present resolves to apperrors.CodeNotFound, mirroring the real registry's
// behavior for an unconfigured credential.
type stubRegistry struct {
	backends map[string]gateway.LLM
}

func (r *stubRegistry) Get(provider string) (gateway.LLM, error) {
	backend, ok := r.backends[provider]
	if !ok {
		return nil, apperrors.NotFound("provider not configured", nil)
	}
	return backend, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a full in-memory gateway stack (C1/C3/C4/C10/C11/C12) behind the
// HTTP layer, so these tests exercise the real request/response contract end to end
// rather than a mocked handler.
func newTestServer(t *testing.T, backends map[string]gateway.LLM, knownProviders []string) *http.Server {
	t.Helper()

	logger := newTestLogger()
	repo := gatewaymemory.New()
	store := storage.NewMemory()
	parsers := parser.NewRegistry(nil)
	chunk := chunker.New()
	emb := embedder.NewDeterministic(16)
	tokens := fakeCounter{}

	ingestor := gateway.NewIngestor(repo, store, parsers, chunk, emb)
	ingestor.WithChunking(200, 20)
	ingestor.WithDimensions(16)

	registry := &stubRegistry{backends: backends}
	retriever := gateway.NewRetriever(repo, emb, nil, "")
	builder := gateway.NewContextBuilder(tokens, nil)
	orchestrator := gateway.NewOrchestrator(repo, registry, ingestor, nil, nil, retriever, builder, emb, tokens, gateway.ModePlain)

	handler := NewHandler(orchestrator, ingestor, knownProviders, 1, logger)

	authCfg := auth.Config{Secret: "test-secret", AccessTokenTTL: time.Hour}
	authSvc := auth.NewService(authCfg, logger)

	cfg := &config.Config{}
	return NewRouter(cfg, handler, authSvc, logger)
}

type fakeCounter struct{}

func (fakeCounter) Count(ctx context.Context, text, provider, model string) (int, error) {
	return len(text) / 4, nil
}

func bearerToken(t *testing.T, secret string) string {
	t.Helper()
	svc := auth.NewService(auth.Config{Secret: secret, AccessTokenTTL: time.Hour}, newTestLogger())
	access, _, err := svc.IssueToken(context.Background(), "test-subject")
	require.NoError(t, err)
	return access
}

func doRequest(server *http.Server, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealth_Public(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestProtectedRoute_MissingAuth(t *testing.T) {
	server := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestStatus_WithAuth(t *testing.T) {
	server := newTestServer(t, nil, nil)
	token := bearerToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Contains(t, body, "uptime")
	require.Contains(t, body, "memory")
	require.Contains(t, body, "cpu")
}

func TestMetrics_WithAuth(t *testing.T) {
	server := newTestServer(t, nil, nil)
	token := bearerToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "gateway_requests_total")
}

func TestComplete_UnknownProvider(t *testing.T) {
	server := newTestServer(t, nil, []string{"openai"})
	token := bearerToken(t, "test-secret")

	body := `{"provider":"notreal","model":"x","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	var errBody completionErrorDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &errBody))
	require.Contains(t, errBody.Error, "unknown provider")
}

func TestComplete_KnownButUnconfiguredProvider(t *testing.T) {
	server := newTestServer(t, nil, []string{"openai", "gemini"})
	token := bearerToken(t, "test-secret")

	body := `{"provider":"gemini","model":"x","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusNotImplemented, recorder.Code)
}

func TestComplete_Success(t *testing.T) {
	backend := &stubLLM{
		name: "openai",
		completeFn: func(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
			return gateway.CompletionResult{Content: "hello back", TotalTokens: 12}, nil
		},
	}
	server := newTestServer(t, map[string]gateway.LLM{"openai": backend}, []string{"openai"})
	token := bearerToken(t, "test-secret")

	body := `{"provider":"openai","model":"gpt-test","purpose":"chat","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"hi there"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp completionResponseDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "hello back", resp.Content)
	require.Equal(t, int64(12), resp.TokensSpent)
	require.NotEqual(t, uuid.Nil, resp.ThreadID)
	require.NotEqual(t, uuid.Nil, resp.MessageID)
}

func TestComplete_UpstreamAuthMapsTo502(t *testing.T) {
	backend := &stubLLM{
		name: "openai",
		completeFn: func(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
			return gateway.CompletionResult{}, apperrors.UpstreamAuth("bad credentials", nil)
		},
	}
	server := newTestServer(t, map[string]gateway.LLM{"openai": backend}, []string{"openai"})
	token := bearerToken(t, "test-secret")

	body := `{"provider":"openai","model":"gpt-test","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusBadGateway, recorder.Code)
	var errBody completionErrorDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &errBody))
	require.NotEmpty(t, errBody.Content)
}

func TestComplete_UpstreamRateMapsTo429(t *testing.T) {
	backend := &stubLLM{
		name: "openai",
		completeFn: func(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
			return gateway.CompletionResult{}, apperrors.UpstreamRate("slow down", nil)
		},
	}
	server := newTestServer(t, map[string]gateway.LLM{"openai": backend}, []string{"openai"})
	token := bearerToken(t, "test-secret")

	body := `{"provider":"openai","model":"gpt-test","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusTooManyRequests, recorder.Code)
}

func TestComplete_MultipartWithAttachment(t *testing.T) {
	backend := &stubLLM{
		name: "openai",
		completeFn: func(ctx context.Context, model string, messages []gateway.CompletionMessage) (gateway.CompletionResult, error) {
			return gateway.CompletionResult{Content: "saw your file", TotalTokens: 5}, nil
		},
	}
	server := newTestServer(t, map[string]gateway.LLM{"openai": backend}, []string{"openai"})
	token := bearerToken(t, "test-secret")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	payload := `{"provider":"openai","model":"gpt-test","author":{"type":"user","user-id":"u1"},"messages":[{"role":"user","content":"look at this"}]}`
	require.NoError(t, writer.WriteField("json", payload))

	fw, err := writer.CreateFormFile("attachment", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("these are my notes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp completionResponseDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "saw your file", resp.Content)
}

func TestUploadFiles_Success(t *testing.T) {
	server := newTestServer(t, nil, nil)
	token := bearerToken(t, "test-secret")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fw, err := writer.CreateFormFile("files[]", "report.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("report contents"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp uploadResponseDTO
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, resp.Result, 1)
	require.Equal(t, "report.txt", resp.Result[0].Filename)
	require.NotEmpty(t, resp.Result[0].FileID)
}

func TestUploadFiles_TooLarge(t *testing.T) {
	server := newTestServer(t, nil, nil) // maxFileMB=1

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fw, err := writer.CreateFormFile("files[]", "big.bin")
	require.NoError(t, err)
	oversized := bytes.Repeat([]byte("x"), (1<<20)+1024)
	_, err = fw.Write(oversized)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "test-secret"))
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUploadFiles_NoFiles(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "test-secret"))
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestComplete_MissingRequiredFields(t *testing.T) {
	server := newTestServer(t, nil, []string{"openai"})
	token := bearerToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/completions", bytes.NewBufferString(`{"provider":"openai"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := doRequest(server, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUploadFiles_DedupReusesFileID(t *testing.T) {
	// Sanity check on the harness itself: uploading identical bytes twice dedups via C11
	// (P1) rather than erroring, across the real in-memory repository used by every test
	// above.
	server := newTestServer(t, nil, nil)
	token := bearerToken(t, "test-secret")

	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		fw, err := writer.CreateFormFile("files[]", "dup.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte("identical payload"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return doRequest(server, req)
	}

	first := upload()
	require.Equal(t, http.StatusOK, first.Code)
	second := upload()
	require.Equal(t, http.StatusOK, second.Code)

	var firstResp, secondResp uploadResponseDTO
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	require.Equal(t, firstResp.Result[0].FileID, secondResp.Result[0].FileID, fmt.Sprintf("expected dedup to reuse file id, got %+v vs %+v", firstResp, secondResp))
}
