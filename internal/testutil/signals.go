package testutil

import (
	"sync"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/sigwatch"
)

// InstallCall records one InstallHandler invocation on a FakeSignalTable.
type InstallCall struct {
	Signal  syscall.Signal
	Handler sigwatch.Handler
	Mask    sigwatch.SignalSet
	Flags   sigwatch.Flags
}

// FakeSignalTable is an in-memory sigwatch.SignalTable.
type FakeSignalTable struct {
	mu         sync.Mutex
	handlers   map[syscall.Signal]sigwatch.Handler
	readErr    map[syscall.Signal]error
	installErr error
	calls      []InstallCall
}

// NewFakeSignalTable returns a table with h installed on every monitored
// signal.
func NewFakeSignalTable(h sigwatch.Handler) *FakeSignalTable {
	t := &FakeSignalTable{
		handlers: make(map[syscall.Signal]sigwatch.Handler),
		readErr:  make(map[syscall.Signal]error),
	}
	for _, sig := range sigwatch.Monitored {
		t.handlers[sig] = h
	}
	return t
}

func (f *FakeSignalTable) InstalledHandler(sig syscall.Signal) (sigwatch.Handler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[sig]; err != nil {
		return 0, err
	}
	return f.handlers[sig], nil
}

func (f *FakeSignalTable) InstallHandler(sig syscall.Signal, h sigwatch.Handler, mask sigwatch.SignalSet, flags sigwatch.Flags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, InstallCall{Signal: sig, Handler: h, Mask: mask, Flags: flags})
	if f.installErr != nil {
		return f.installErr
	}
	f.handlers[sig] = h
	return nil
}

// Hijack replaces the handler for sig as a foreign component would.
func (f *FakeSignalTable) Hijack(sig syscall.Signal, h sigwatch.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[sig] = h
}

// FailRead makes reads of sig return err. A nil err clears it.
func (f *FakeSignalTable) FailRead(sig syscall.Signal, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr[sig] = err
}

// FailInstall makes every install return err. A nil err clears it.
func (f *FakeSignalTable) FailInstall(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installErr = err
}

// Handler returns the handler currently installed for sig.
func (f *FakeSignalTable) Handler(sig syscall.Signal) sigwatch.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[sig]
}

// Calls returns a copy of the recorded installs.
func (f *FakeSignalTable) Calls() []InstallCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]InstallCall(nil), f.calls...)
}
