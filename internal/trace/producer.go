package trace

import (
	"strings"
	"unicode/utf8"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

// Field limits applied by producers before encoding.
const (
	MaxNameBytes    = 512
	MaxProfileBytes = 2048
	MaxStackBytes   = 4096

	// LightweightMarker replaces profile and stack in lightweight mode.
	LightweightMarker = "LW"
)

// Producer encodes callback events on the reporting side, applying the
// settings agreed at registration.
type Producer struct {
	lightweight bool
	filters     []string
}

// NewProducer creates a producer from a registration.
func NewProducer(reg config.Registration) *Producer {
	return &Producer{
		lightweight: reg.LightweightMode,
		filters:     reg.FilterList(),
	}
}

// ShouldFilter reports whether name matches a filter. Unlike the consumer
// side, the producer matches case-insensitively so it errs toward sending
// less.
func (p *Producer) ShouldFilter(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range p.filters {
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// Record builds the wire record for one event. It returns false when the
// event is filtered out.
func (p *Producer) Record(name, profile, stack string) ([]byte, bool) {
	name = truncateUTF8(name, MaxNameBytes)
	if p.ShouldFilter(name) {
		return nil, false
	}

	if p.lightweight {
		profile, stack = LightweightMarker, LightweightMarker
	} else {
		profile = truncateUTF8(profile, MaxProfileBytes)
		stack = truncateUTF8(stack, MaxStackBytes)
	}

	// Fields are within u16 range after truncation.
	raw, err := Encode(Entry{Name: name, Profile: profile, CallerStack: stack})
	if err != nil {
		return nil, false
	}
	return raw, true
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
