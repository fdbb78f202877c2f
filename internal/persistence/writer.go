package persistence

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultWriterCapacity = 256
	writeMaxAttempts      = 3
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue runs database writes on a single goroutine with a short retry.
// Writes that do not fit into the queue are dropped and counted.
type WriterQueue struct {
	logger    *slog.Logger
	queue     chan writeCmd
	retryStep time.Duration
	dropped   atomic.Int64
	wg        sync.WaitGroup
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if logger == nil {
		logger = slog.With("component", "persistence.writer")
	}
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}

	return &WriterQueue{
		logger:    logger,
		queue:     make(chan writeCmd, capacity),
		retryStep: 300 * time.Millisecond,
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) bool {
	select {
	case w.queue <- writeCmd{name: name, fn: fn}:
		return true
	default:
		w.dropped.Add(1)
		w.logger.Warn("db write queue is full, dropping write", "cmd", name)

		return false
	}
}

// Dropped reports how many writes were rejected because the queue was full.
func (w *WriterQueue) Dropped() int64 {
	return w.dropped.Load()
}

func (w *WriterQueue) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

// Wait blocks until the worker started by Start has exited.
func (w *WriterQueue) Wait() {
	w.wg.Wait()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * w.retryStep):
		}
	}
}
