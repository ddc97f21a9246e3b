package config

import (
	"strings"
	"sync/atomic"
)

// FilterField selects which decoded field exclude filters are matched against.
type FilterField string

const (
	FilterByName    FilterField = "name"
	FilterByProfile FilterField = "profile"
)

// Snapshot is the immutable view of the settings consumed by the ring buffer
// and the registration query. It is replaced wholesale on re-registration and
// must not be modified after NewSnapshot returns.
type Snapshot struct {
	LightweightMode       bool
	LogCallbacksToConsole bool
	RingBufferCapacity    int
	ProfileExcludeFilters []string
	FilterField           FilterField
}

// NewSnapshot derives a snapshot from a loaded configuration.
func NewSnapshot(cfg *Config) *Snapshot {
	field := FilterField(cfg.FilterField)
	if field != FilterByProfile {
		field = FilterByName
	}
	capacity := cfg.CallbackLogSize
	if capacity <= 0 {
		capacity = DefaultCallbackLogSize
	}
	return &Snapshot{
		LightweightMode:       cfg.LightweightMode,
		LogCallbacksToConsole: cfg.LogCallbacksToConsole,
		RingBufferCapacity:    capacity,
		ProfileExcludeFilters: append([]string(nil), cfg.ProfileExcludeFilters...),
		FilterField:           field,
	}
}

// WithCapacity returns a copy of s with a different ring capacity. s is
// left unchanged.
func (s *Snapshot) WithCapacity(capacity int) *Snapshot {
	next := *s
	next.RingBufferCapacity = capacity
	next.ProfileExcludeFilters = append([]string(nil), s.ProfileExcludeFilters...)
	return &next
}

// Excludes reports whether any filter is a substring of the selected field.
// Matching is case-sensitive and stops at the first hit.
func (s *Snapshot) Excludes(name, profile string) bool {
	target := name
	if s.FilterField == FilterByProfile {
		target = profile
	}
	for _, f := range s.ProfileExcludeFilters {
		if strings.Contains(target, f) {
			return true
		}
	}
	return false
}

// Registration is the compact settings struct handed to callback producers so
// both sides agree on filters and capacity before any events are sent.
type Registration struct {
	LightweightMode bool   `json:"lightweight_mode"`
	Filters         string `json:"filters"`
	CallbackLogSize int    `json:"callback_log_size"`
}

// Registration returns the producer-facing view of the snapshot.
func (s *Snapshot) Registration() Registration {
	return Registration{
		LightweightMode: s.LightweightMode,
		Filters:         strings.Join(s.ProfileExcludeFilters, ","),
		CallbackLogSize: s.RingBufferCapacity,
	}
}

// FilterList splits the comma-joined filter string of a registration.
func (r Registration) FilterList() []string {
	return ParseFilters(r.Filters)
}

// ParseFilters splits a comma-joined filter list, trimming entries and
// dropping empty ones.
func ParseFilters(s string) []string {
	return normalizeFilters(strings.Split(s, ","))
}

// Store publishes the current snapshot. Readers never observe a partially
// built snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding initial, which may be nil.
func NewStore(initial *Snapshot) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(initial)
	}
	return s
}

// Load returns the current snapshot, or nil before the first Publish.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Publish replaces the current snapshot and returns the previous one.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}
