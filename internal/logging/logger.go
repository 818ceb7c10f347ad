// Package logging provides structured logging for ptags runs.
// It wraps log/slog with level parsing, text or JSON output, and child
// loggers carrying run, phase and chunk attributes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger provides structured logging. It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	file   *os.File
	mu     *sync.Mutex // Protects file across child loggers
}

// NewLogger creates a Logger writing to path, or to stderr when path is
// empty. Unknown levels fall back to INFO and unknown formats to text.
func NewLogger(path, level, format string) (*Logger, error) {
	var (
		w    io.Writer = os.Stderr
		file *os.File
	)

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		file = f
	}

	l := New(w, level, format)
	l.file = file
	return l, nil
}

// New creates a Logger writing to w
func New(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		mu:     &sync.Mutex{},
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with key-value attributes added to every entry
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), file: l.file, mu: l.mu}
}

// WithRun tags entries with the run ID
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithPhase tags entries with a pipeline phase: "discovery", "dispatch", "merge", "write"
func (l *Logger) WithPhase(phase string) *Logger {
	return l.With("phase", phase)
}

// WithChunk tags entries with a chunk index
func (l *Logger) WithChunk(index int) *Logger {
	return l.With("chunk", index)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), level, msg, args...)
}

// Enabled reports whether entries at level would be emitted
func (l *Logger) Enabled(level string) bool {
	return l.logger.Enabled(context.Background(), parseLevel(level))
}

// Close syncs and closes the log file. No-op when logging to stderr.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	l.file = nil
	return nil
}

// NopLogger returns a Logger that discards all output
func NopLogger() *Logger {
	return New(io.Discard, LevelError, FormatText)
}

// ValidLevels returns the accepted level names
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// ValidFormats returns the accepted output formats
func ValidFormats() []string {
	return []string{FormatText, FormatJSON}
}
