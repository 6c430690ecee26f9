package logging

import (
	"log/slog"
	"os"

	"github.com/auditdbio/eventgate/internal/platform/correlation"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// InitLogger initializes the global logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	handler = correlation.NewHandler(handler)

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithSession returns a logger with a session_id field.
func WithSession(sessionID string) *slog.Logger {
	return Logger.With("session_id", sessionID)
}

// WithUser returns a logger with a user_id field.
func WithUser(userID string) *slog.Logger {
	return Logger.With("user_id", userID)
}
