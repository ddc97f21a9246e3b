package logging

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/eapache/queue"
)

// History keeps the most recent console output within a byte budget.
// Writes arrive line-sized from the log handlers; when the budget is
// exceeded whole chunks are dropped from the front.
type History struct {
	mu     sync.Mutex
	chunks *queue.Queue
	size   int
	limit  int
}

// NewHistory returns a history holding at most limit bytes. A limit of
// zero or less disables capture.
func NewHistory(limit int) *History {
	return &History{
		chunks: queue.New(),
		limit:  limit,
	}
}

// Write implements io.Writer. It never fails. Terminal escape sequences
// are stripped before storing.
func (h *History) Write(p []byte) (int, error) {
	if h.limit <= 0 {
		return len(p), nil
	}

	chunk := ansi.Strip(string(p))
	if len(chunk) > h.limit {
		chunk = chunk[len(chunk)-h.limit:]
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.chunks.Add(chunk)
	h.size += len(chunk)
	for h.size > h.limit && h.chunks.Length() > 0 {
		h.size -= len(h.chunks.Remove().(string))
	}
	return len(p), nil
}

// String returns the captured output, oldest first.
func (h *History) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked()
}

// TryString is String for the crash path. It reports false instead of
// blocking when another goroutine is writing.
func (h *History) TryString() (string, bool) {
	if !h.mu.TryLock() {
		return "", false
	}
	defer h.mu.Unlock()
	return h.joinLocked(), true
}

// Len returns the number of bytes held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Reset drops all captured output.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = queue.New()
	h.size = 0
}

func (h *History) joinLocked() string {
	var b strings.Builder
	b.Grow(h.size)
	for i := 0; i < h.chunks.Length(); i++ {
		b.WriteString(h.chunks.Get(i).(string))
	}
	return b.String()
}
