package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SensitiveKeys are attribute keys whose values may contain patient free text.
// The file log keeps only their length.
var SensitiveKeys = map[string]bool{
	"question": true,
	"response": true,
	"prompt":   true,
}

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler(file, level)))
	return logger, file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler(file, level)))
}

// fileHandler writes JSON with sensitive attributes reduced to their length.
func fileHandler(w io.Writer, level slog.Level) slog.Handler {
	return slogmulti.
		Pipe(slogmulti.NewHandleInlineMiddleware(redact)).
		Handler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func redact(ctx context.Context, record slog.Record, next func(context.Context, slog.Record) error) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		if SensitiveKeys[a.Key] {
			a = slog.String(a.Key, fmt.Sprintf("[redacted %d chars]", len([]rune(a.Value.String()))))
		}
		out.AddAttrs(a)
		return true
	})
	return next(ctx, out)
}
