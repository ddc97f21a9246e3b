package diagnostics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is used when NewTickLoop is given a non-positive
// interval.
const DefaultTickInterval = 100 * time.Millisecond

// TickLoop calls a function at a fixed interval. It stands in for the host
// frame callback when the host does not have one.
type TickLoop struct {
	interval time.Duration
	tick     func()
	logger   *slog.Logger

	ticks   atomic.Int64
	stopCh  chan struct{}
	stopped atomic.Bool
}

// NewTickLoop creates a loop that calls tick every interval.
func NewTickLoop(interval time.Duration, tick func(), logger *slog.Logger) *TickLoop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &TickLoop{
		interval: interval,
		tick:     tick,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Run blocks, ticking until ctx is cancelled or Stop is called. It returns
// nil on Stop and on cancellation.
func (l *TickLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	if l.logger != nil {
		l.logger.Debug("tick loop started", "interval", l.interval)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.stopCh:
			return nil
		case <-ticker.C:
			l.tick()
			l.ticks.Add(1)
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (l *TickLoop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stopCh)
	}
}

// Ticks returns how many ticks have run.
func (l *TickLoop) Ticks() int64 {
	return l.ticks.Load()
}
