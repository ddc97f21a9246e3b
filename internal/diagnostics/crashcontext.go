package diagnostics

import (
	"sync/atomic"
	"unicode/utf8"
)

// Field sizes of the static crash context. Longer values are truncated on
// a rune boundary.
const (
	MaxMapBytes         = 256
	MaxBasePathBytes    = 512
	MaxCommandLineBytes = 1024
)

// CrashContext is the static host information written into the CONFIG
// section of a crash report. It is a plain value with fixed-size storage so
// the crash path only copies bytes that were captured earlier.
type CrashContext struct {
	mapName     [MaxMapBytes]byte
	mapLen      int
	basePath    [MaxBasePathBytes]byte
	basePathLen int
	cmdline     [MaxCommandLineBytes]byte
	cmdlineLen  int
}

func (c *CrashContext) Map() string         { return string(c.mapName[:c.mapLen]) }
func (c *CrashContext) BasePath() string    { return string(c.basePath[:c.basePathLen]) }
func (c *CrashContext) CommandLine() string { return string(c.cmdline[:c.cmdlineLen]) }

// fill copies s into dst. When s does not fit, the cut backs off to the
// start of the rune it would split.
func fill(dst []byte, s string) int {
	if len(s) <= len(dst) {
		return copy(dst, s)
	}
	n := len(dst)
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return copy(dst, s[:n])
}

// ContextRecorder publishes the current CrashContext. Updates are
// copy-on-write so the crash path never observes a half-written value.
type ContextRecorder struct {
	current atomic.Pointer[CrashContext]
}

// NewContextRecorder returns a recorder holding an empty context.
func NewContextRecorder() *ContextRecorder {
	r := &ContextRecorder{}
	r.current.Store(&CrashContext{})
	return r
}

// Load returns the published context. The value must not be modified.
func (r *ContextRecorder) Load() *CrashContext {
	return r.current.Load()
}

// SetStatic records the host base path and command line. Called once at
// load.
func (r *ContextRecorder) SetStatic(basePath, commandLine string) {
	next := *r.current.Load()
	next.basePathLen = fill(next.basePath[:], basePath)
	next.cmdlineLen = fill(next.cmdline[:], commandLine)
	r.current.Store(&next)
}

// SetMap records the current map and reports whether it changed. Only the
// host tick calls it, so there is a single writer.
func (r *ContextRecorder) SetMap(name string) bool {
	cur := r.current.Load()
	if cur.Map() == name {
		return false
	}
	next := *cur
	next.mapLen = fill(next.mapName[:], name)
	if next.Map() == cur.Map() {
		return false
	}
	r.current.Store(&next)
	return true
}
