package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	base := t.TempDir()
	path := Path(base)

	var calls atomic.Int32
	w := NewWatcher(path, func() { calls.Add(1) }, nil).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Run creates the directory before watching it.
	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Dir(path))
		return err == nil
	})
	time.Sleep(50 * time.Millisecond)

	if err := AtomicWrite(path, []byte(DefaultConfigJSON)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })

	// Unrelated files in the same directory are ignored.
	before := calls.Load()
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != before {
		t.Errorf("reload triggered by unrelated file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_Debounces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	var calls atomic.Int32
	w := NewWatcher(path, func() { calls.Add(1) }, nil).WithDebounce(150 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}
}
