package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		level   string
		logFunc func(l *Logger)
		expect  bool
	}{
		{"debug at debug", "debug", func(l *Logger) { l.Debug("test") }, true},
		{"debug at info", "info", func(l *Logger) { l.Debug("test") }, false},
		{"info at info", "info", func(l *Logger) { l.Info("test") }, true},
		{"warn at error", "error", func(l *Logger) { l.Warn("test") }, false},
		{"error at error", "error", func(l *Logger) { l.Error("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.level, Format: "text", Output: &buf})
			tt.logFunc(logger)

			if got := buf.Len() > 0; got != tt.expect {
				t.Errorf("expected output=%v, got output=%v", tt.expect, got)
			}
		})
	}
}

func TestLogger_Formats(t *testing.T) {
	t.Parallel()
	for _, format := range []string{"json", "text", "auto"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			New(Config{Level: "info", Format: format, Output: &buf}).Info("test message")
			if !strings.Contains(buf.String(), "test message") {
				t.Errorf("output = %q", buf.String())
			}
		})
	}
}

func TestLogger_AutoIsJSONWhenNotTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(Config{Format: "auto", Output: &buf}).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLogger_TeesIntoHistory(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	hist := NewHistory(1024)
	logger := New(Config{Format: "text", Output: &buf, History: hist})

	logger.Info("map changed", "map", "de_dust2")

	if buf.String() != hist.String() {
		t.Errorf("history %q differs from output %q", hist.String(), buf.String())
	}
	if logger.WithComponent("ring").History() != hist {
		t.Error("derived logger lost its history")
	}
}

func TestLogger_WithComponentAndMap(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Output: &buf})

	logger.WithComponent("watchdog").WithMap("cs_office").Info("tick")

	out := buf.String()
	if !strings.Contains(out, "component=watchdog") || !strings.Contains(out, "map=cs_office") {
		t.Errorf("missing attrs: %s", out)
	}
}

func TestLogger_SanitizesOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	logger.Logger.WithGroup("host").Info("starting", "cmdline", "srcds -game csgo +rcon_password hunter22")

	out := buf.String()
	if strings.Contains(out, "hunter22") {
		t.Errorf("password leaked: %s", out)
	}
	if !strings.Contains(out, "+rcon_password [REDACTED]") {
		t.Errorf("expected redacted flag, got %s", out)
	}
}

func TestLogger_Nop(t *testing.T) {
	t.Parallel()
	logger := NewNop()
	logger.Info("test message")
	if logger.History() != nil {
		t.Error("nop logger should have no history")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPrettyHandler_Format(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, slog.LevelInfo))

	logger.With("component", "ring").WithGroup("cb").Info("callback", "name", "OnChat")
	logger.Debug("hidden")

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
	for _, want := range []string{"callback", "component", "ring", "cb.name", "OnChat"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	t.Parallel()
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
}
