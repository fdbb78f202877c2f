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
	"sync/atomic"

	"github.com/skobkin/rcp2bridge/internal/config"
)

// Manager owns app logger configuration and optional log file lifecycle.
// Loggers handed out by Logger follow later Configure calls.
type Manager struct {
	mu      sync.Mutex
	current atomic.Pointer[slog.Handler]
	logger  *slog.Logger
	file    *os.File
}

func NewManager() *Manager {
	m := &Manager{}
	m.swap(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	m.logger = slog.New(&switchHandler{current: &m.current})

	return m
}

func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	writer := io.Writer(os.Stdout)
	var file *os.File
	if cfg.LogToFile {
		cleanPath := filepath.Clean(filePath)
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		// #nosec G304 -- path is resolved by app runtime and points to user config dir.
		file, err = os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writer = newFanoutWriter(os.Stdout, file)
	}

	m.swap(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	if m.file != nil {
		_ = m.file.Close()
	}
	m.file = file
	slog.SetDefault(m.logger)

	return nil
}

func (m *Manager) Logger(component string) *slog.Logger {
	return m.logger.With("component", component)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file != nil {
		m.swap(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		if err := m.file.Close(); err != nil {
			return err
		}
		m.file = nil
	}

	return nil
}

func (m *Manager) swap(h slog.Handler) {
	m.current.Store(&h)
}

func parseLevel(raw string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// switchHandler resolves the manager's current handler on every record and replays
// the attrs and groups collected through With/WithGroup on top of it.
type switchHandler struct {
	current *atomic.Pointer[slog.Handler]
	wrap    func(slog.Handler) slog.Handler
}

func (h *switchHandler) resolve() slog.Handler {
	base := *h.current.Load()
	if h.wrap == nil {
		return base
	}

	return h.wrap(base)
}

func (h *switchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *switchHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *switchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.chain(func(base slog.Handler) slog.Handler { return base.WithAttrs(attrs) })
}

func (h *switchHandler) WithGroup(name string) slog.Handler {
	return h.chain(func(base slog.Handler) slog.Handler { return base.WithGroup(name) })
}

func (h *switchHandler) chain(next func(slog.Handler) slog.Handler) slog.Handler {
	prev := h.wrap
	return &switchHandler{
		current: h.current,
		wrap: func(base slog.Handler) slog.Handler {
			if prev != nil {
				base = prev(base)
			}

			return next(base)
		},
	}
}

type fanoutWriter struct {
	writers []io.Writer
}

func newFanoutWriter(writers ...io.Writer) io.Writer {
	filtered := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			filtered = append(filtered, w)
		}
	}

	return &fanoutWriter{writers: filtered}
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	var (
		wroteAny bool
		firstErr error
	)

	for _, dst := range w.writers {
		n, err := dst.Write(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}
		if n != len(p) {
			if firstErr == nil {
				firstErr = io.ErrShortWrite
			}

			continue
		}
		wroteAny = true
	}

	if wroteAny {
		return len(p), nil
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return len(p), nil
}
