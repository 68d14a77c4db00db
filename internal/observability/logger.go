package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const (
	ctxKeyConversationID ctxKey = "conversation_id"
	ctxKeyRequestID      ctxKey = "request_id"
)

var (
	level  = new(slog.LevelVar)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
)

// Logger returns the process-wide JSON logger.
func Logger() *slog.Logger {
	return logger
}

// SetLevel accepts debug, info, warn or error. Unknown values fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ctxKeyConversationID, conversationID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// LoggerFromContext adds conversation_id and request_id when present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := logger
	if ctx == nil {
		return l
	}
	if id, _ := ctx.Value(ctxKeyConversationID).(string); id != "" {
		l = l.With("conversation_id", id)
	}
	if id, _ := ctx.Value(ctxKeyRequestID).(string); id != "" {
		l = l.With("request_id", id)
	}
	return l
}
