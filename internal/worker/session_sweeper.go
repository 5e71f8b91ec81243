package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayo6706/twinvest-bridge/internal/observability"
)

// Sweeper is anything that can drop its expired entries.
type Sweeper interface {
	Sweep() int
}

// SessionSweeper periodically evicts expired gateway sessions.
type SessionSweeper struct {
	registry Sweeper
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper constructs a sweeper with a one minute interval.
func NewSessionSweeper(registry Sweeper) *SessionSweeper {
	return &SessionSweeper{
		registry: registry,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *SessionSweeper) WithInterval(interval time.Duration) *SessionSweeper {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *SessionSweeper) Start(ctx context.Context) {
	zap.L().Info("session sweeper starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("session sweeper context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("session sweeper stop signal received")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// Stop stops the running loop. It is safe to call more than once.
func (w *SessionSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the sweeper in a goroutine and returns a stop function.
func (w *SessionSweeper) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce sweeps immediately and returns the number of evicted sessions.
func (w *SessionSweeper) RunOnce() int {
	removed := w.registry.Sweep()
	observability.IncrementWorkerRun("session_sweeper", "success")
	if removed > 0 {
		zap.L().Debug("expired sessions evicted", zap.Int("count", removed))
	}
	return removed
}
