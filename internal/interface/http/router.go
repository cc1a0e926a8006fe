package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polaris/gateway/internal/domain/auth"
	"github.com/polaris/gateway/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server (C13).
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		errorHandlingMiddleware(logger),
		requestLogger(logger),
		metricsMiddleware(handler.metrics),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/api/v1/health", handler.Health)

	api := router.Group("/api/v1")
	api.Use(authMiddleware(authSvc))
	{
		api.POST("/chat/completions", handler.Complete)
		api.POST("/files", handler.UploadFiles)
		api.GET("/status", handler.Status)
		api.GET("/metrics", handler.Metrics)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}

func metricsMiddleware(m *metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.recordRequest()
		c.Next()
	}
}
