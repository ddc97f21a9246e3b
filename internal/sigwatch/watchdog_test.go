package sigwatch_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"syscall"
	"testing"

	"github.com/hugo-lorenzo-mato/crashguard/internal/sigwatch"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

const (
	reporter sigwatch.Handler = 0x1000
	intruder sigwatch.Handler = 0x2000
)

func newWatchdog(t *testing.T) (*sigwatch.Watchdog, *testutil.FakeSignalTable, *bytes.Buffer) {
	t.Helper()
	table := testutil.NewFakeSignalTable(reporter)
	var buf bytes.Buffer
	w, err := sigwatch.NewWatchdog(table, slog.New(slog.NewTextHandler(&buf, nil)))
	if err != nil {
		t.Fatalf("NewWatchdog() error = %v", err)
	}
	return w, table, &buf
}

func TestNewWatchdog_BaselineFromSIGSEGV(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeSignalTable(intruder)
	table.Hijack(syscall.SIGSEGV, reporter)

	w, err := sigwatch.NewWatchdog(table, nil)
	if err != nil {
		t.Fatalf("NewWatchdog() error = %v", err)
	}
	if w.Baseline() != reporter {
		t.Errorf("Baseline() = %v, want %v", w.Baseline(), reporter)
	}
}

func TestNewWatchdog_ReadError(t *testing.T) {
	t.Parallel()

	table := testutil.NewFakeSignalTable(reporter)
	table.FailRead(syscall.SIGSEGV, sigwatch.ErrUnsupported)

	if _, err := sigwatch.NewWatchdog(table, nil); !errors.Is(err, sigwatch.ErrUnsupported) {
		t.Errorf("NewWatchdog() error = %v, want %v", err, sigwatch.ErrUnsupported)
	}
}

func TestCheckAndRepair_IntactDoesNothing(t *testing.T) {
	t.Parallel()

	w, table, buf := newWatchdog(t)
	for i := 0; i < 3; i++ {
		if got := w.CheckAndRepair(); got != sigwatch.Intact {
			t.Fatalf("CheckAndRepair() = %v, want intact", got)
		}
	}

	if n := len(table.Calls()); n != 0 {
		t.Errorf("install calls = %d, want 0", n)
	}
	if w.Repairs() != 0 || w.Checks() != 3 {
		t.Errorf("Repairs=%d Checks=%d", w.Repairs(), w.Checks())
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}

func TestCheckAndRepair_RestoresAllSignals(t *testing.T) {
	t.Parallel()

	w, table, buf := newWatchdog(t)
	table.Hijack(syscall.SIGABRT, intruder)

	if got := w.CheckAndRepair(); got != sigwatch.Hijacked {
		t.Fatalf("CheckAndRepair() = %v, want hijacked", got)
	}

	calls := table.Calls()
	if len(calls) != len(sigwatch.Monitored) {
		t.Fatalf("install calls = %d, want %d", len(calls), len(sigwatch.Monitored))
	}
	wantMask := sigwatch.NewSignalSet(sigwatch.Monitored...)
	for i, c := range calls {
		if c.Signal != sigwatch.Monitored[i] || c.Handler != reporter {
			t.Errorf("call %d = %+v", i, c)
		}
		if c.Mask != wantMask {
			t.Errorf("call %d mask = %#x, want %#x", i, c.Mask, wantMask)
		}
		if c.Flags != sigwatch.FlagOnStack|sigwatch.FlagSigInfo {
			t.Errorf("call %d flags = %v", i, c.Flags)
		}
	}

	for _, sig := range sigwatch.Monitored {
		if h := table.Handler(sig); h != reporter {
			t.Errorf("%v handler = %v after repair", sig, h)
		}
	}
	if w.Repairs() != 1 {
		t.Errorf("Repairs() = %d, want 1", w.Repairs())
	}
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("repair not logged at error level: %s", buf.String())
	}

	if got := w.CheckAndRepair(); got != sigwatch.Intact {
		t.Errorf("second CheckAndRepair() = %v, want intact", got)
	}
}

func TestCheckAndRepair_OtherSignalOnly(t *testing.T) {
	t.Parallel()

	w, table, _ := newWatchdog(t)
	table.Hijack(syscall.SIGBUS, intruder)

	if got := w.CheckAndRepair(); got != sigwatch.Hijacked {
		t.Fatalf("CheckAndRepair() = %v, want hijacked", got)
	}
	if table.Handler(syscall.SIGBUS) != reporter {
		t.Error("SIGBUS not restored")
	}
}

func TestCheckAndRepair_ReadErrorCountsAsHijacked(t *testing.T) {
	t.Parallel()

	w, table, _ := newWatchdog(t)
	table.FailRead(syscall.SIGFPE, testutil.ErrTest)

	if got := w.Check(); got != sigwatch.Hijacked {
		t.Errorf("Check() = %v, want hijacked", got)
	}
}

func TestCheckAndRepair_InstallFailureRetries(t *testing.T) {
	t.Parallel()

	w, table, buf := newWatchdog(t)
	table.Hijack(syscall.SIGILL, intruder)
	table.FailInstall(testutil.ErrTest)

	w.CheckAndRepair()
	if w.Repairs() != 0 {
		t.Errorf("Repairs() = %d after failed install", w.Repairs())
	}
	if !strings.Contains(buf.String(), "retrying") {
		t.Errorf("failure not logged: %s", buf.String())
	}

	table.FailInstall(nil)
	w.CheckAndRepair()
	if w.Repairs() != 1 || table.Handler(syscall.SIGILL) != reporter {
		t.Errorf("retry did not repair: repairs=%d handler=%v", w.Repairs(), table.Handler(syscall.SIGILL))
	}
	if w.LastState() != sigwatch.Hijacked {
		t.Errorf("LastState() = %v", w.LastState())
	}
}

func TestSignalSet(t *testing.T) {
	t.Parallel()

	s := sigwatch.NewSignalSet(syscall.SIGSEGV, syscall.SIGBUS)
	if !s.Has(syscall.SIGSEGV) || !s.Has(syscall.SIGBUS) || s.Has(syscall.SIGABRT) {
		t.Errorf("set %#x has wrong members", s)
	}
	if s.Add(0) != s || s.Add(65) != s {
		t.Error("out of range signal changed the set")
	}
	if sigwatch.NewSignalSet(syscall.Signal(1)) != 1 {
		t.Error("signal 1 should map to bit 0")
	}
}

func TestStateAndFlagsString(t *testing.T) {
	t.Parallel()

	if sigwatch.Intact.String() != "intact" || sigwatch.Hijacked.String() != "hijacked" {
		t.Error("unexpected State strings")
	}
	if got := (sigwatch.FlagOnStack | sigwatch.FlagSigInfo).String(); got != "onstack|siginfo" {
		t.Errorf("Flags.String() = %q", got)
	}
	if sigwatch.Flags(0).String() != "none" {
		t.Error("zero flags")
	}
}
