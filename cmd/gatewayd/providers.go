package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/polaris/gateway/internal/domain/auth"
	gatewaydomain "github.com/polaris/gateway/internal/domain/gateway"
	"github.com/polaris/gateway/internal/infra/chunker"
	"github.com/polaris/gateway/internal/infra/classifier"
	"github.com/polaris/gateway/internal/infra/config"
	"github.com/polaris/gateway/internal/infra/embedder"
	"github.com/polaris/gateway/internal/infra/enrichment"
	gatewaycache "github.com/polaris/gateway/internal/infra/gateway/cache"
	gatewaymemory "github.com/polaris/gateway/internal/infra/gateway/memory"
	gatewaypostgres "github.com/polaris/gateway/internal/infra/gateway/postgres"
	"github.com/polaris/gateway/internal/infra/llm"
	"github.com/polaris/gateway/internal/infra/llm/anthropic"
	"github.com/polaris/gateway/internal/infra/llm/openaicompat"
	"github.com/polaris/gateway/internal/infra/parser"
	"github.com/polaris/gateway/internal/infra/storage"
	"github.com/polaris/gateway/internal/infra/tokenizer"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

// provideRepository opens the Postgres-backed persistence gateway (C1) when a DSN is
// configured, falling back to the in-memory repository otherwise. Mirrors the teacher's
// provideFAQRepository postgres-or-memory pattern.
func provideRepository(cfg *config.Config, logger *slog.Logger) gatewaydomain.Repository {
	fallback := gatewaymemory.New()

	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using in-memory gateway repository")
		return withRetrievalCache(fallback, cfg, logger)
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using in-memory gateway repository", "error", err)
		return withRetrievalCache(fallback, cfg, logger)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using in-memory gateway repository", "error", err)
		return withRetrievalCache(fallback, cfg, logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using in-memory gateway repository", "error", err)
		pool.Close()
		return withRetrievalCache(fallback, cfg, logger)
	}

	logger.Info("postgres gateway repository enabled, falling back in-process on RPC miss")
	var repo gatewaydomain.Repository = gatewaypostgres.New(pool, fallback)
	return withRetrievalCache(repo, cfg, logger)
}

// withRetrievalCache wraps repo with a Valkey-backed retrieval cache (C9) when Redis is
// configured, falling back to the uncached repository on any connection failure.
func withRetrievalCache(repo gatewaydomain.Repository, cfg *config.Config, logger *slog.Logger) gatewaydomain.Repository {
	if !cfg.Redis.Enabled || strings.TrimSpace(cfg.Redis.Addr) == "" {
		return repo
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Redis.Addr}})
	if err != nil {
		logger.Error("failed to create valkey client, skipping retrieval cache", "error", err)
		return repo
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, skipping retrieval cache", "error", err)
		return repo
	}

	logger.Info("valkey retrieval cache enabled")
	return gatewaycache.NewCachedRepository(repo, client, 30*time.Second)
}

// provideObjectStore opens an S3-compatible object store when cfg.Storage.S3.Bucket is
// set, otherwise local disk storage under cfg.Storage.UploadDir, falling back further to
// an in-memory store if neither backend can be initialized (e.g. a read-only container
// filesystem in a constrained test environment).
func provideObjectStore(cfg *config.Config, logger *slog.Logger) gatewaydomain.ObjectStore {
	if cfg.Storage.S3.Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s3, err := storage.NewS3(ctx, cfg.Storage.S3.Endpoint, cfg.Storage.S3.AccessKey,
			cfg.Storage.S3.SecretKey, cfg.Storage.S3.Bucket, cfg.Storage.S3.Region, logger)
		if err != nil {
			logger.Error("failed to initialize s3 object store, falling back to local disk", "error", err)
		} else {
			logger.Info("s3 object store enabled", "bucket", cfg.Storage.S3.Bucket)
			return s3
		}
	}

	local, err := storage.New(cfg.Storage.UploadDir)
	if err != nil {
		logger.Error("failed to initialize local object store, using in-memory store", "error", err)
		return storage.NewMemory()
	}
	return local
}

// provideLLMRegistry registers an LLM backend for every provider with a configured API
// key. A provider absent here resolves to apperrors.CodeNotFound at lookup time, which
// the HTTP layer reports as 501 "not yet implemented" per spec §4.13.
func provideLLMRegistry(cfg *config.Config, logger *slog.Logger) *llm.Registry {
	registry := llm.NewRegistry()

	register := func(name, apiKey, baseURL string) {
		if strings.TrimSpace(apiKey) == "" {
			logger.Info("provider has no credential configured, leaving unregistered", "provider", name)
			return
		}
		registry.Register(name, openaicompat.New(name, apiKey, baseURL))
	}

	register("openai", cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL)
	register("chatgpt", cfg.Providers.ChatGPT.APIKey, cfg.Providers.ChatGPT.BaseURL)
	register("openrouter", cfg.Providers.OpenRouter.APIKey, cfg.Providers.OpenRouter.BaseURL)
	register("groq", cfg.Providers.Groq.APIKey, cfg.Providers.Groq.BaseURL)
	register("xai", cfg.Providers.XAI.APIKey, cfg.Providers.XAI.BaseURL)

	if key := strings.TrimSpace(cfg.Providers.Anthropic.APIKey); key != "" {
		registry.Register("anthropic", anthropic.New(key, cfg.Providers.Anthropic.BaseURL))
	} else {
		logger.Info("provider has no credential configured, leaving unregistered", "provider", "anthropic")
	}

	// gemini has no wired backend yet; requests for it resolve to 501.
	return registry
}

// knownProviderNames lists every provider name the gateway recognizes, whether or not it
// currently has a credential, so the HTTP layer can tell "unknown provider" (400) apart
// from "known but not configured" (501).
func knownProviderNames() []string {
	return []string{"openai", "chatgpt", "openrouter", "groq", "xai", "anthropic", "gemini"}
}

// provideEmbedder builds C4's embedder from the configured embedding provider, falling
// back to a deterministic hash-based embedder (stable vectors, no network calls) when
// the embedding provider has no credential — so retrieval keeps functioning in
// credential-absent environments instead of crashing at startup (spec §6).
func provideEmbedder(cfg *config.Config, logger *slog.Logger) gatewaydomain.Embedder {
	provider := strings.ToLower(cfg.Embedding.Provider)
	apiKey, baseURL := providerCredential(cfg, provider)
	if strings.TrimSpace(apiKey) == "" {
		logger.Info("embedding provider has no credential configured, using deterministic embedder", "provider", provider)
		return embedder.NewDeterministic(cfg.Embedding.Dimensions)
	}
	client := openaicompat.New(provider, apiKey, baseURL)
	return embedder.New(provider, client, cfg.Embedding.Model)
}

func providerCredential(cfg *config.Config, provider string) (apiKey, baseURL string) {
	switch provider {
	case "openai":
		return cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL
	case "chatgpt":
		return cfg.Providers.ChatGPT.APIKey, cfg.Providers.ChatGPT.BaseURL
	case "openrouter":
		return cfg.Providers.OpenRouter.APIKey, cfg.Providers.OpenRouter.BaseURL
	case "groq":
		return cfg.Providers.Groq.APIKey, cfg.Providers.Groq.BaseURL
	case "xai":
		return cfg.Providers.XAI.APIKey, cfg.Providers.XAI.BaseURL
	default:
		return "", ""
	}
}

// provideMultimodalExtractor wires C2's vision/audio extraction to the configured
// multimodal model's backend. A nil return (untyped, not a nil *LLMMultimodalExtractor)
// is deliberate: MultimodalParser.Parse treats a nil MultimodalExtractor as a graceful
// per-file failure rather than a panic.
func provideMultimodalExtractor(cfg *config.Config, registry *llm.Registry) parser.MultimodalExtractor {
	backend, err := registry.Get(cfg.Providers.DefaultProvider)
	if err != nil {
		return nil
	}
	return parser.NewLLMMultimodalExtractor(backend, cfg.Providers.MultimodalModel)
}

func provideParserRegistry(extractor parser.MultimodalExtractor) *parser.Registry {
	return parser.NewRegistry(extractor)
}

func provideChunker() *chunker.Chunker {
	return chunker.New()
}

func provideTokenizer() *tokenizer.Registry {
	return tokenizer.New()
}

func provideClassifier(cfg *config.Config, registry *llm.Registry) gatewaydomain.Classifier {
	backend, err := registry.Get(cfg.Providers.DefaultProvider)
	if err != nil {
		return nil
	}
	return classifier.New(backend, cfg.Providers.DefaultModel)
}

func provideEnricher(cfg *config.Config) gatewaydomain.Enricher {
	var providers []enrichment.SearchProvider
	if cfg.Enrichment.TavilyAPIKey != "" {
		providers = append(providers, enrichment.NewTavilyProvider(cfg.Enrichment.TavilyAPIKey))
	}
	if cfg.Enrichment.LinkupAPIKey != "" {
		providers = append(providers, enrichment.NewLinkupProvider(cfg.Enrichment.LinkupAPIKey))
	}
	return enrichment.New(enrichment.Config{
		PreferredSearchProvider: cfg.Enrichment.PreferredSearchProvider,
		FirecrawlAPIKey:         cfg.Enrichment.FirecrawlAPIKey,
	}, providers, &http.Client{Timeout: 30 * time.Second})
}

func provideRetriever(cfg *config.Config, repo gatewaydomain.Repository, emb gatewaydomain.Embedder, registry *llm.Registry) *gatewaydomain.Retriever {
	var topKLLM gatewaydomain.LLM
	if backend, err := registry.Get(cfg.Providers.DefaultProvider); err == nil {
		topKLLM = backend
	}
	return gatewaydomain.NewRetriever(repo, emb, topKLLM, cfg.Providers.TopKModel)
}

func provideSummarizer(cfg *config.Config, registry *llm.Registry, counter gatewaydomain.TokenCounter) gatewaydomain.Summarizer {
	backend, err := registry.Get(cfg.Providers.DefaultProvider)
	if err != nil {
		return nil
	}
	return gatewaydomain.NewLLMSummarizer(backend, counter)
}

func provideContextBuilder(cfg *config.Config, counter gatewaydomain.TokenCounter, summarizer gatewaydomain.Summarizer) *gatewaydomain.ContextBuilder {
	if !cfg.Retrieval.UseSummarizer {
		return gatewaydomain.NewContextBuilder(counter, nil)
	}
	return gatewaydomain.NewContextBuilder(counter, summarizer)
}

func provideIngestor(cfg *config.Config, repo gatewaydomain.Repository, store gatewaydomain.ObjectStore, parsers gatewaydomain.ParserRegistry, chunker gatewaydomain.Chunker, emb gatewaydomain.Embedder) *gatewaydomain.Ingestor {
	ingestor := gatewaydomain.NewIngestor(repo, store, parsers, chunker, emb)
	ingestor.WithChunking(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	ingestor.WithDimensions(cfg.Embedding.Dimensions)
	return ingestor
}

func provideOrchestrator(
	cfg *config.Config,
	repo gatewaydomain.Repository,
	registry *llm.Registry,
	ingestor *gatewaydomain.Ingestor,
	classifier gatewaydomain.Classifier,
	enricher gatewaydomain.Enricher,
	retriever *gatewaydomain.Retriever,
	builder *gatewaydomain.ContextBuilder,
	emb gatewaydomain.Embedder,
	counter gatewaydomain.TokenCounter,
) *gatewaydomain.Orchestrator {
	mode := gatewaydomain.ModePlain
	if strings.EqualFold(cfg.Providers.ReasonerMode, "reasoner") {
		mode = gatewaydomain.ModeReasoner
	}
	return gatewaydomain.NewOrchestrator(repo, registry, ingestor, classifier, enricher, retriever, builder, emb, counter, mode)
}
