// Package logging configures log/slog for the server and the CLI.
//
// Loggers obtained through FromContext carry the chi request ID and, inside
// an import worker, the import job ID, so every line of one import can be
// correlated with the HTTP request that submitted it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const ctxKeyJobID contextKey = "import_job_id"

// Setup configures the global slog logger to write to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter configures the global slog logger to write to w. The CLI uses
// it to keep logs on stderr while progress goes to stdout.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextWithJobID tags ctx with an import job ID.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// JobIDFromContext returns the import job ID stored in ctx, if any.
func JobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyJobID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the default logger enriched with the request ID and
// import job ID found in ctx.
//
// Usage:
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("import submitted", "source", name)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if jobID := JobIDFromContext(ctx); jobID != "" {
		logger = logger.With("job_id", jobID)
	}

	return logger
}

// WithFields returns a context logger with additional structured fields.
//
//	jobLogger := logging.WithFields(ctx, "source", name, "list_id", listID)
//	jobLogger.Info("import started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
