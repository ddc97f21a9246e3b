package diagnostics

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickLoop_TicksUntilStopped(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	loop := NewTickLoop(time.Millisecond, func() { n.Add(1) }, nil)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not tick")
		case <-time.After(time.Millisecond):
		}
	}

	loop.Stop()
	loop.Stop()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if loop.Ticks() < 3 {
		t.Errorf("Ticks() = %d", loop.Ticks())
	}
}

func TestTickLoop_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewTickLoop(0, func() {}, nil)
	if loop.interval != DefaultTickInterval {
		t.Errorf("interval = %v", loop.interval)
	}

	cancel()
	if err := loop.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
