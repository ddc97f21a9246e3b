package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchConfig_ReregistersOnWrite(t *testing.T) {
	base := t.TempDir()
	sub, _ := load(t, base)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.WatchConfig(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to subscribe before writing.
	time.Sleep(100 * time.Millisecond)
	writeDoc(t, base, `{"CallbackLogSize": 7, "ProfileExcludeFilters": []}`)

	assert.Eventually(t, func() bool {
		return sub.Registration().CallbackLogSize == 7
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 7, sub.Ring().Capacity())
}
