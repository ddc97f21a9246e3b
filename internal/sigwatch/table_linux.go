//go:build linux && (amd64 || arm64)

package sigwatch

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	saSigInfo  = 0x4
	saRestart  = 0x10000000
	saOnStack  = 0x08000000
	saRestorer = 0x04000000

	// Size of the kernel sigset_t in bytes.
	sigsetSize = 8
)

// kernelSigaction mirrors struct sigaction as rt_sigaction expects it on
// 64-bit Linux.
type kernelSigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

// SystemTable reads and writes dispositions with rt_sigaction. Handlers
// installed through it reuse the restorer trampoline observed on the
// first read, since the kernel needs one to return from the handler.
type SystemTable struct {
	mu       sync.Mutex
	seen     bool
	restorer uintptr
	inherit  uint64
}

// NewSystemTable returns the table for the running process.
func NewSystemTable() *SystemTable {
	return &SystemTable{}
}

func (t *SystemTable) InstalledHandler(sig syscall.Signal) (Handler, error) {
	var old kernelSigaction
	if err := rtSigaction(sig, nil, &old); err != nil {
		return 0, err
	}

	t.mu.Lock()
	if !t.seen && old.handler != 0 {
		t.seen = true
		t.restorer = old.restorer
		t.inherit = old.flags & (saRestorer | saRestart)
	}
	t.mu.Unlock()

	return Handler(old.handler), nil
}

func (t *SystemTable) InstallHandler(sig syscall.Signal, h Handler, mask SignalSet, flags Flags) error {
	t.mu.Lock()
	act := kernelSigaction{
		handler:  uintptr(h),
		flags:    t.inherit,
		restorer: t.restorer,
		mask:     uint64(mask),
	}
	t.mu.Unlock()

	if flags&FlagOnStack != 0 {
		act.flags |= saOnStack
	}
	if flags&FlagSigInfo != 0 {
		act.flags |= saSigInfo
	}
	return rtSigaction(sig, &act, nil)
}

func rtSigaction(sig syscall.Signal, act, old *kernelSigaction) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION,
		uintptr(sig),
		uintptr(unsafe.Pointer(act)),
		uintptr(unsafe.Pointer(old)),
		sigsetSize, 0, 0)
	if errno != 0 {
		return fmt.Errorf("rt_sigaction(%v): %w", sig, errno)
	}
	return nil
}
