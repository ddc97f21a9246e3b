package sigwatch

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// ErrUnsupported is returned by the system table on platforms where the
// installed handlers cannot be read.
var ErrUnsupported = errors.New("signal table not supported on this platform")

// Monitored are the fatal signals whose handlers the watchdog keeps intact.
var Monitored = []syscall.Signal{
	syscall.SIGSEGV,
	syscall.SIGABRT,
	syscall.SIGFPE,
	syscall.SIGILL,
	syscall.SIGBUS,
}

// Handler is the address of an installed signal handler. Zero is the
// default action.
type Handler uintptr

func (h Handler) String() string {
	return fmt.Sprintf("%#x", uintptr(h))
}

// Flags are the handler options the watchdog requests on reinstall.
type Flags uint32

const (
	// FlagOnStack runs the handler on the alternate signal stack.
	FlagOnStack Flags = 1 << iota
	// FlagSigInfo passes extended signal information to the handler.
	FlagSigInfo
)

func (f Flags) String() string {
	var parts []string
	if f&FlagOnStack != 0 {
		parts = append(parts, "onstack")
	}
	if f&FlagSigInfo != 0 {
		parts = append(parts, "siginfo")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// SignalSet is a set of signals blocked while a handler runs.
type SignalSet uint64

// NewSignalSet returns a set holding sigs.
func NewSignalSet(sigs ...syscall.Signal) SignalSet {
	var s SignalSet
	for _, sig := range sigs {
		s = s.Add(sig)
	}
	return s
}

// Add returns s with sig added. Signals outside 1..64 are ignored.
func (s SignalSet) Add(sig syscall.Signal) SignalSet {
	if sig < 1 || sig > 64 {
		return s
	}
	return s | 1<<(uint(sig)-1)
}

// Has reports whether sig is in s.
func (s SignalSet) Has(sig syscall.Signal) bool {
	if sig < 1 || sig > 64 {
		return false
	}
	return s&(1<<(uint(sig)-1)) != 0
}

// SignalTable reads and writes the process's signal dispositions.
type SignalTable interface {
	InstalledHandler(sig syscall.Signal) (Handler, error)
	InstallHandler(sig syscall.Signal, h Handler, mask SignalSet, flags Flags) error
}
