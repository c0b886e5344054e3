package logger

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQuietRestoresLevel(t *testing.T) {
	l := New(Config{Level: "debug"})

	restore := l.Quiet()
	if got := l.level.Level(); got != slog.LevelInfo {
		t.Errorf("level during Quiet = %v, want info", got)
	}

	restore()
	if got := l.level.Level(); got != slog.LevelDebug {
		t.Errorf("level after restore = %v, want debug", got)
	}
}

func TestQuietKeepsHigherLevels(t *testing.T) {
	l := New(Config{Level: "error"})

	restore := l.Quiet()
	if got := l.level.Level(); got != slog.LevelError {
		t.Errorf("Quiet lowered the level to %v", got)
	}
	restore()
}

func TestNamedSharesLevel(t *testing.T) {
	l := New(Config{Level: "debug"})
	named := l.Named("transport")

	restore := l.Quiet()
	defer restore()

	if got := named.level.Level(); got != slog.LevelInfo {
		t.Errorf("named logger level = %v, want shared info", got)
	}
}
