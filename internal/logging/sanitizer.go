package logging

import (
	"regexp"
)

// Sanitizer redacts credentials from log messages and command lines.
// Crash reports are shared with plugin authors, so server passwords and
// account tokens passed on the host command line must not leak into them.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Console-variable style: +rcon_password x, +sv_password x
		`(?i)([+-](?:rcon_password|sv_password|password)\s+)("[^"]*"|\S+)`,
		// Game server login token: +sv_setsteamaccount <32 hex>
		`(?i)([+-]sv_setsteamaccount\s+)[0-9A-F]{32}`,
		// Web API keys on the command line: -authkey X
		`(?i)([+-](?:authkey|apikey|api_key)\s+)\S+`,
		// Flag style: --token=x, --password x
		`(?i)(--(?:token|password|secret|api-key)[=\s]+)\S+`,
		// Generic Bearer tokens
		`(?i)(bearer\s+)[a-zA-Z0-9._-]{20,}`,
		// Generic key=value secrets
		`(?i)((?:password|passwd|secret|token)["']?\s*[:=]\s*["']?)[^\s"']{6,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive values from a string. The key or flag that
// introduced the value is kept.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		if pattern.NumSubexp() > 0 {
			result = pattern.ReplaceAllString(result, "${1}"+s.redacted)
			continue
		}
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// AddPattern adds a custom pattern. If the pattern has a capture group,
// the first group is kept and the rest of the match is redacted.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// SetRedactedPlaceholder sets the placeholder text for redacted content.
func (s *Sanitizer) SetRedactedPlaceholder(placeholder string) {
	s.redacted = placeholder
}
