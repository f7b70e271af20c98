// Package logger provides standardized logging utilities for the DEX
// register allocator and its surrounding driver/CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Global logger instance
var defaultLogger *slog.Logger

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level     LogLevel
	Format    string // "text" or "json"
	Output    io.Writer
	AddSource bool
	LogFile   string
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: false,
	}
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	var handler slog.Handler

	output := cfg.Output
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	opts := &slog.HandlerOptions{
		Level:     toSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return nil
}

// InitDev initializes logging for development (debug level, text format)
func InitDev() {
	_ = Init(Config{
		Level:     LevelDebug,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: true,
	})
}

// InitProd initializes logging for production (info level, json format)
func InitProd(logDir string) error {
	logPath := filepath.Join(logDir, "dex-regalloc.log")
	return Init(Config{
		Level:     LevelInfo,
		Format:    "json",
		LogFile:   logPath,
		AddSource: false,
	})
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, args...)
	}
}

// With returns a new logger with the given attributes
func With(args ...any) *slog.Logger {
	if defaultLogger != nil {
		return defaultLogger.With(args...)
	}
	return slog.Default().With(args...)
}

// WithGroup returns a new logger with the given group
func WithGroup(name string) *slog.Logger {
	if defaultLogger != nil {
		return defaultLogger.WithGroup(name)
	}
	return slog.Default().WithGroup(name)
}

// Allocator-specific logging helpers

// LogPhase logs the start of an allocation phase for one method.
func LogPhase(method, phase string) {
	Info("starting allocation phase", "method", method, "phase", phase)
}

// LogPhaseComplete logs the completion of an allocation phase.
func LogPhaseComplete(method, phase string) {
	Info("completed allocation phase", "method", method, "phase", phase)
}

// LogModeAttempt logs an attempt at one rung of the mode-escalation
// ladder.
func LogModeAttempt(method, mode string) {
	Debug("trying allocation mode", "method", method, "mode", mode)
}

// LogModeEscalation logs giving up on one mode and moving to the next.
func LogModeEscalation(method, from, to string, reason string) {
	Warn("escalating allocation mode", "method", method, "from", from, "to", to, "reason", reason)
}

// LogSplit logs a live interval being split.
func LogSplit(method, value string, pos int) {
	Debug("split interval", "method", method, "value", value, "pos", pos)
}

// LogSpill logs a live interval being spilled.
func LogSpill(method, value string, slot int) {
	Debug("spilled interval", "method", method, "value", value, "slot", slot)
}

// LogAllocationComplete logs a finished, successful allocation.
func LogAllocationComplete(method string, registers, frameSize int) {
	Info("allocation complete", "method", method, "registers", registers, "frameSize", frameSize)
}

// LogAllocationFailed logs a method whose allocation returned an error.
func LogAllocationFailed(method string, err error) {
	Error("allocation failed", "method", method, "error", err)
}
