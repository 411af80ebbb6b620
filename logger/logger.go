// Package logger is the process-wide slog wrapper used by every panel package.
package logger

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

// Config describes logger settings.
type Config struct {
	Enabled bool
	Level   string
	// Format is "text" (default) or "json".
	Format string
	File   string
}

var (
	mu   sync.RWMutex
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	on   = true

	cfg               = Config{Enabled: true}
	console io.Writer = os.Stderr
	file    *os.File
)

// Init applies cfg. A relative File is resolved against configDir.
// Console output goes to stderr; stdout may carry the host protocol.
func Init(c Config, configDir string) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	if file != nil {
		file.Close()
		file = nil
	}

	var initErr error
	if c.Enabled && c.File != "" {
		path := expandPath(c.File, configDir)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			initErr = fmt.Errorf("logger: create log dir: %w", err)
		} else if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
			initErr = fmt.Errorf("logger: open log file: %w", err)
		} else {
			file = f
		}
	}

	rebuild()
	return initErr
}

// SetOutput replaces the console writer. Tests use it to capture logs.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	console = w
	rebuild()
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	rebuild()
	return err
}

// rebuild must be called with mu held.
func rebuild() {
	on = cfg.Enabled
	if !on {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	w := console
	if file != nil {
		w = io.MultiWriter(console, file)
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		base = slog.New(slog.NewJSONHandler(w, opts))
		return
	}
	base = slog.New(slog.NewTextHandler(w, opts))
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(slog.LevelDebug, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(slog.LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(slog.LevelError, msg, args...)
}

func log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	l, enabled := base, on
	mu.RUnlock()

	if !enabled {
		return
	}
	l.Log(context.Background(), level, msg, args...)
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

func expandPath(path, configDir string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	if filepath.IsAbs(path) || configDir == "" {
		return path
	}
	return filepath.Join(configDir, path)
}
