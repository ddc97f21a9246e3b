package trace

import (
	"log/slog"
	"sync"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

// Ring is a fixed-capacity circular store of recent callback entries.
//
// nextIndex counts entries stored since the last Resize; entry k lives in
// slot k mod capacity. The valid entries are the last min(nextIndex, capacity)
// stored. Ingest and Resize hold the write lock; Snapshot holds the read lock.
// Nothing else runs under the lock.
type Ring struct {
	mu        sync.RWMutex
	slots     []Entry
	nextIndex uint64

	settings *config.Store
	logger   *slog.Logger
}

// NewRing creates a ring with the given capacity. Filters and console echo
// are read from settings on every ingest; a nil settings store or an empty
// store disables both. A capacity of zero leaves the ring unsized, and
// ingest is a no-op until Resize.
func NewRing(capacity int, settings *config.Store, logger *slog.Logger) *Ring {
	if settings == nil {
		settings = config.NewStore(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Ring{settings: settings, logger: logger}
	if capacity > 0 {
		r.slots = make([]Entry, capacity)
	}
	return r
}

// Ingest decodes one wire record and stores it. Malformed records and
// records matched by an exclude filter are dropped. It reports whether the
// entry was stored.
func (r *Ring) Ingest(raw []byte) bool {
	e, err := Decode(raw)
	if err != nil {
		return false
	}
	return r.Add(e)
}

// Add filters and stores an already decoded entry.
func (r *Ring) Add(e Entry) bool {
	snap := r.settings.Load()
	if snap != nil && snap.Excludes(e.Name, e.Profile) {
		return false
	}

	if !r.store(e) {
		return false
	}

	if snap != nil && snap.LogCallbacksToConsole {
		r.logger.Info("callback", "name", e.Name)
	}
	return true
}

func (r *Ring) store(e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) == 0 {
		return false
	}
	r.slots[r.nextIndex%uint64(len(r.slots))] = e
	r.nextIndex++
	return true
}

// Resize discards all entries and allocates capacity empty slots. A
// non-positive capacity is rejected and reported as false.
func (r *Ring) Resize(capacity int) bool {
	if capacity <= 0 {
		return false
	}
	slots := make([]Entry, capacity)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots = slots
	r.nextIndex = 0
	return true
}

// Snapshot returns the valid entries, newest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectLocked()
}

// TrySnapshot is Snapshot without waiting: if a writer holds the lock it
// returns false immediately. Crash handling uses it because the crashed
// goroutine may have died holding the lock.
func (r *Ring) TrySnapshot() ([]Entry, bool) {
	if !r.mu.TryRLock() {
		return nil, false
	}
	defer r.mu.RUnlock()
	return r.collectLocked(), true
}

func (r *Ring) collectLocked() []Entry {
	capacity := uint64(len(r.slots))
	if capacity == 0 {
		return []Entry{}
	}
	n := min(r.nextIndex, capacity)

	out := make([]Entry, 0, n)
	for i := uint64(1); i <= n; i++ {
		out = append(out, r.slots[(r.nextIndex-i)%capacity])
	}
	return out
}

// Capacity returns the number of slots.
func (r *Ring) Capacity() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots)
}

// Len returns the number of valid entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(min(r.nextIndex, uint64(len(r.slots))))
}

// NextIndex returns the number of entries stored since the last Resize.
func (r *Ring) NextIndex() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextIndex
}
