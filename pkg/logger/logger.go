package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// New constructs the process-wide JSON slog logger.
func New() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "gateway")
}

// requestIDKey is the context key request-scoped loggers are attached under.
type requestIDKey struct{}

// WithRequestID returns a context carrying a logger annotated with the given request id.
func WithRequestID(ctx context.Context, logger *slog.Logger, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, logger.With("request_id", requestID))
}

// FromContext returns the request-scoped logger, falling back to a bare default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(requestIDKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
