//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/polaris/gateway/internal/bootstrap"
	"github.com/polaris/gateway/internal/domain/auth"
	"github.com/polaris/gateway/internal/infra/config"
	"github.com/polaris/gateway/pkg/logger"
	httpiface "github.com/polaris/gateway/internal/interface/http"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideRepository,
		provideObjectStore,
		provideLLMRegistry,
		provideEmbedder,
		provideMultimodalExtractor,
		provideParserRegistry,
		provideChunker,
		provideTokenizer,
		provideIngestor,
		provideClassifier,
		provideEnricher,
		provideRetriever,
		provideSummarizer,
		provideContextBuilder,
		provideOrchestrator,
		provideAuthConfig,
		auth.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
