// Package logger wraps log/slog to provide consistent logging across the
// driver, including a per-instance level that can be temporarily raised to
// silence verbose output during health-check probing.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a wrapper around slog.Logger with a mutable minimum level.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// Config holds logger configuration.
type Config struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text", "json"
	Output string `yaml:"output"` // "stdout", "file"
	File   string `yaml:"file"`   // Path to log file
}

var globalLogger *Logger

// New creates a new Logger instance.
func New(config Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(config.Level))

	opts := &slog.HandlerOptions{
		Level: level,
	}

	writer := os.Stdout
	if config.Output == "file" && config.File != "" {
		f, err := os.OpenFile(config.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			writer = f
		}
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	l := &Logger{
		Logger: slog.New(handler),
		level:  level,
	}

	if globalLogger == nil {
		globalLogger = l
	}

	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Quiet raises the minimum level to Info and returns a function that restores
// the previous level. Each Logger owns its own level, so quieting one
// instance never affects another.
func (l *Logger) Quiet() (restore func()) {
	if l.level == nil {
		return func() {}
	}
	prev := l.level.Level()
	if prev < slog.LevelInfo {
		l.level.Set(slog.LevelInfo)
	}
	return func() { l.level.Set(prev) }
}

// Named returns a logger with a component attribute attached. The returned
// logger shares the level of its parent.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
	}
}

// Global returns the global logger instance.
func Global() *Logger {
	if globalLogger == nil {
		return New(Config{Level: "info", Format: "text"})
	}
	return globalLogger
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	globalLogger = l
}
