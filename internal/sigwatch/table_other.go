//go:build !(linux && (amd64 || arm64))

package sigwatch

import "syscall"

// SystemTable is unavailable on this platform. Every call fails with
// ErrUnsupported, so NewWatchdog returns an error and callers run without
// a watchdog.
type SystemTable struct{}

func NewSystemTable() *SystemTable {
	return &SystemTable{}
}

func (*SystemTable) InstalledHandler(syscall.Signal) (Handler, error) {
	return 0, ErrUnsupported
}

func (*SystemTable) InstallHandler(syscall.Signal, Handler, SignalSet, Flags) error {
	return ErrUnsupported
}
