// Package logger owns the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oggyb/muzz-connect/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

const textTimeLayout = "2006-01-02T15:04:05.000Z"

// redactedKeys are profile attributes that never reach the log output.
var redactedKeys = map[string]struct{}{
	"email":      {},
	"birth_date": {},
	"latitude":   {},
	"longitude":  {},
}

type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
	// File, when set, mirrors output into a size-rotated log file.
	File string
}

var (
	mu     sync.RWMutex
	logger *slog.Logger
	sink   *lumberjack.Logger
	cfg    = Config{Level: "info", Format: FormatText}
)

// InitFromConfig initializes the global logger from app config. A nil config
// keeps the current settings.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(strings.ToLower(c.Log.Format)),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
		File:       c.Log.File,
	})
}

// Init (re)builds the global logger. Safe to call multiple times; a previous
// file sink is closed first.
func Init(c *Config) {
	mu.Lock()
	defer mu.Unlock()

	if c != nil {
		cfg = *c
	}
	closeSink()

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		sink = openSink(cfg.File)
		out = io.MultiWriter(os.Stdout, sink)
	}

	base := slog.New(newHandler(out, cfg))
	if cfg.Component != "" {
		base = base.With("component", cfg.Component)
	}
	logger = base
}

// Close flushes and closes the file sink, if any. The logger keeps writing
// to stdout afterwards.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return nil
	}
	err := sink.Close()
	sink = nil
	logger = slog.New(newHandler(os.Stdout, cfg))
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	return err
}

// L returns the global logger. Always returns a non-nil instance.
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(nil)

	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Discard returns a logger that drops everything. Handy in tests and tools.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

// --- helpers ---

func newHandler(out io.Writer, c Config) slog.Handler {
	text := c.Format != FormatJSON
	opts := &slog.HandlerOptions{
		Level:     parseLevel(c.Level),
		AddSource: c.WithSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if _, ok := redactedKeys[a.Key]; ok {
				return slog.String(a.Key, "[redacted]")
			}
			if a.Key == slog.TimeKey && text {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(textTimeLayout))
			}
			return a
		},
	}
	if text {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

func openSink(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// closeSink must be called with mu held.
func closeSink() {
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
}

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
