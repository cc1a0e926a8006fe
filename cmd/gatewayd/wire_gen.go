// Hand-written in place of Wire's generated output; see initializeApp below.

//go:generate go run github.com/google/wire/cmd/wire
//+build !wireinject

package main

import (
	"github.com/polaris/gateway/internal/bootstrap"
	"github.com/polaris/gateway/internal/domain/auth"
	"github.com/polaris/gateway/internal/infra/config"
	httpiface "github.com/polaris/gateway/internal/interface/http"
	"github.com/polaris/gateway/pkg/logger"
)

// initializeApp wires the full dependency graph by hand, since this environment cannot
// invoke `go generate`/`wire` to regenerate this file from wire.go's injector. Keep it
// in lockstep with wire.go's provider set whenever a provider function's signature
// changes.
func initializeApp() (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New()

	repo := provideRepository(cfg, log)
	store := provideObjectStore(cfg, log)
	registry := provideLLMRegistry(cfg, log)
	emb := provideEmbedder(cfg, log)
	multimodal := provideMultimodalExtractor(cfg, registry)
	parsers := provideParserRegistry(multimodal)
	chunk := provideChunker()
	tokens := provideTokenizer()
	ingestor := provideIngestor(cfg, repo, store, parsers, chunk, emb)
	cls := provideClassifier(cfg, registry)
	enricher := provideEnricher(cfg)
	retriever := provideRetriever(cfg, repo, emb, registry)
	summarizer := provideSummarizer(cfg, registry, tokens)
	builder := provideContextBuilder(cfg, tokens, summarizer)
	orchestrator := provideOrchestrator(cfg, repo, registry, ingestor, cls, enricher, retriever, builder, emb, tokens)

	authCfg := provideAuthConfig(cfg)
	authSvc := auth.NewService(authCfg, log)

	handler := httpiface.NewHandler(orchestrator, ingestor, knownProviderNames(), cfg.Storage.MaxFileMB, log)
	server := httpiface.NewRouter(cfg, handler, authSvc, log)

	app := bootstrap.NewApp(cfg, log, server)
	return app, nil
}
