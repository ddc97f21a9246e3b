package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Logger wraps slog.Logger with redaction and an optional console history.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
	history   *History
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
	// History, when set, receives a copy of every line written to Output.
	// Crash reports embed it as the console history section.
	History *History
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "auto",
		Output: os.Stderr,
	}
}

// New creates a new logger.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level := parseLevel(cfg.Level)
	sanitizer := NewSanitizer()
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	// Terminal detection runs on the real output; the history tee is not a file.
	pretty := cfg.Format != "json" && cfg.Format != "text" && isTerminal(cfg.Output)

	out := cfg.Output
	if cfg.History != nil {
		out = io.MultiWriter(cfg.Output, cfg.History)
	}

	var handler slog.Handler
	switch {
	case cfg.Format == "json":
		handler = slog.NewJSONHandler(out, opts)
	case cfg.Format == "text":
		handler = slog.NewTextHandler(out, opts)
	case pretty:
		handler = NewPrettyHandler(out, level)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(handler, sanitizer)),
		sanitizer: sanitizer,
		history:   cfg.History,
	}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

func parseLevel(s string) slog.Level {
	switch s {
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

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// WithComponent tags records with the subsystem that produced them.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithMap tags records with the current map.
func (l *Logger) WithMap(name string) *Logger {
	return l.With("map", name)
}

// With returns a logger with custom fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		sanitizer: l.sanitizer,
		history:   l.history,
	}
}

// History returns the console history, or nil if none is attached.
func (l *Logger) History() *History {
	return l.history
}

// Sanitizer returns the sanitizer used by this logger.
func (l *Logger) Sanitizer() *Sanitizer {
	return l.sanitizer
}

// Sanitize sanitizes a string using the logger's sanitizer.
func (l *Logger) Sanitize(input string) string {
	return l.sanitizer.Sanitize(input)
}
