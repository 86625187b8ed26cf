// Package logging provides the gossipmesh module's structured logging.
//
// It is built on the standard library's log/slog and supports
// per-subsystem log levels configured through environment variables:
//
//	GOSSIPMESH_LOG_LEVEL=mesh=debug,heartbeat=warn,info
//	GOSSIPMESH_LOG_FORMAT=json
//
// Usage:
//
//	var log = logging.Logger("mesh")
//	log.Info("peer grafted", "peer", id, "topic", topic)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type format int

const (
	formatText format = iota
	formatJSON
)

type envConfig struct {
	defaultLevel slog.Level
	subsystems   map[string]slog.Level
	format       format
	addSource    bool
}

var (
	configOnce  sync.Once
	configCache *envConfig
)

func configFromEnv() *envConfig {
	configOnce.Do(func() {
		configCache = parseEnvConfig()
	})
	return configCache
}

func parseEnvConfig() *envConfig {
	cfg := &envConfig{
		defaultLevel: slog.LevelInfo,
		subsystems:   make(map[string]slog.Level),
		format:       formatText,
		addSource:    false,
	}

	if raw := os.Getenv("GOSSIPMESH_LOG_LEVEL"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if kv := strings.SplitN(part, "=", 2); len(kv) == 2 {
				if lvl, ok := parseLevel(strings.TrimSpace(kv[1])); ok {
					cfg.subsystems[strings.TrimSpace(kv[0])] = lvl
				}
				continue
			}
			if lvl, ok := parseLevel(part); ok {
				cfg.defaultLevel = lvl
			}
		}
	}

	if raw := strings.ToLower(os.Getenv("GOSSIPMESH_LOG_FORMAT")); raw == "json" {
		cfg.format = formatJSON
	}

	if raw := os.Getenv("GOSSIPMESH_LOG_ADD_SOURCE"); raw != "" {
		cfg.addSource = raw != "false" && raw != "0"
	}

	return cfg
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func (c *envConfig) levelFor(subsystem string) slog.Level {
	if lvl, ok := c.subsystems[subsystem]; ok {
		return lvl
	}
	return c.defaultLevel
}

var (
	loggers  sync.Map // map[string]*slog.Logger
	handlers sync.Map // map[string]*subsystemHandler

	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

// SetOutput redirects every logger created via Logger to w. Existing
// loggers pick up the change immediately since they write through a
// dynamic indirection rather than capturing w at creation time.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

type subsystemHandler struct {
	mu    sync.RWMutex
	level slog.Level
	inner slog.Handler
}

func newHandler(subsystem string, level slog.Level, f format, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var inner slog.Handler
	if f == formatJSON {
		inner = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(dynamicWriter{}, opts)
	}
	inner = inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)})

	return &subsystemHandler{level: level, inner: inner}
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return level >= h.level
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Logger returns the (cached) logger for subsystem, configured from
// GOSSIPMESH_LOG_LEVEL/GOSSIPMESH_LOG_FORMAT. Repeated calls for the
// same subsystem return the same instance.
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := configFromEnv()
	h := newHandler(subsystem, cfg.levelFor(subsystem), cfg.format, cfg.addSource)
	l := slog.New(h)

	actual, _ := loggers.LoadOrStore(subsystem, l)
	if sh, ok := h.(*subsystemHandler); ok {
		handlers.Store(subsystem, sh)
	}
	return actual.(*slog.Logger)
}

// SetLevel adjusts subsystem's level at runtime.
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// Discard returns a logger that drops everything, for use in tests.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
