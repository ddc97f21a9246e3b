package sigwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"syscall"
)

// State is the result of comparing installed handlers with the baseline.
type State int

const (
	Intact State = iota
	Hijacked
)

func (s State) String() string {
	switch s {
	case Intact:
		return "intact"
	case Hijacked:
		return "hijacked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RepairFlags are applied to every reinstalled handler.
const RepairFlags = FlagOnStack | FlagSigInfo

// Watchdog restores the baseline fatal-signal handler whenever another
// component in the process replaces it. It holds no state between checks
// other than counters.
type Watchdog struct {
	table    SignalTable
	baseline Handler
	mask     SignalSet
	logger   *slog.Logger

	checks    atomic.Int64
	repairs   atomic.Int64
	lastState atomic.Int32
}

// NewWatchdog records the handler currently installed for SIGSEGV as the
// baseline for every monitored signal.
func NewWatchdog(table SignalTable, logger *slog.Logger) (*Watchdog, error) {
	h, err := table.InstalledHandler(syscall.SIGSEGV)
	if err != nil {
		return nil, fmt.Errorf("recording baseline handler: %w", err)
	}
	return NewWatchdogWithBaseline(table, h, logger), nil
}

// NewWatchdogWithBaseline uses an explicit baseline handler.
func NewWatchdogWithBaseline(table SignalTable, baseline Handler, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		table:    table,
		baseline: baseline,
		mask:     NewSignalSet(Monitored...),
		logger:   logger,
	}
}

// Baseline returns the recorded handler.
func (w *Watchdog) Baseline() Handler {
	return w.baseline
}

// Check compares every monitored signal against the baseline without
// changing anything. A handler that cannot be read counts as changed.
func (w *Watchdog) Check() State {
	for _, sig := range Monitored {
		h, err := w.table.InstalledHandler(sig)
		if err != nil || h != w.baseline {
			return Hijacked
		}
	}
	return Intact
}

// CheckAndRepair runs once per host tick. When any monitored handler
// differs from the baseline, the baseline is reinstalled on all monitored
// signals. It returns the state found before repairing. Install failures
// are logged and retried on the next tick.
func (w *Watchdog) CheckAndRepair() State {
	w.checks.Add(1)

	state := w.Check()
	w.lastState.Store(int32(state))
	if state == Intact {
		return state
	}

	var errs []error
	for _, sig := range Monitored {
		if err := w.table.InstallHandler(sig, w.baseline, w.mask, RepairFlags); err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", sig, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		w.logger.Warn("signal handler repair incomplete, retrying next tick",
			"baseline", w.baseline.String(),
			"error", err,
		)
		return state
	}

	w.repairs.Add(1)
	w.logger.Error("fatal signal handlers were replaced by another component, baseline restored",
		"baseline", w.baseline.String(),
		"flags", RepairFlags.String(),
		"repairs", w.repairs.Load(),
	)
	return state
}

// Repairs returns how many times the baseline has been reinstalled.
func (w *Watchdog) Repairs() int64 {
	return w.repairs.Load()
}

// Checks returns how many times CheckAndRepair has run.
func (w *Watchdog) Checks() int64 {
	return w.checks.Load()
}

// LastState returns the state seen by the most recent CheckAndRepair.
func (w *Watchdog) LastState() State {
	return State(w.lastState.Load())
}
