package diagnostics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

// ReportSuffix is appended to the memory image path to name its report.
const ReportSuffix = ".txt"

// Report section markers.
const (
	ConfigBegin  = "-------- CONFIG BEGIN --------"
	ConfigEnd    = "-------- CONFIG END --------"
	ConsoleBegin = "-------- CONSOLE HISTORY BEGIN --------"
	ConsoleEnd   = "-------- CONSOLE HISTORY END --------"
	TraceBegin   = "-------- CALLBACK TRACE BEGIN -> NEWEST CALLBACK IS FIRST --------"
	TraceEnd     = "-------- CALLBACK TRACE END --------"
	EntrySep     = "------------------------"

	traceUnavailable = "(callback trace unavailable: buffer busy at crash time)"
)

// busyAttempts bounds how often a locked report source is retried.
const busyAttempts = 16

// ConsoleSource supplies recent console output without blocking.
type ConsoleSource interface {
	TryString() (string, bool)
}

// TraceSource supplies the callback history, newest first, without
// blocking.
type TraceSource interface {
	TrySnapshot() ([]trace.Entry, bool)
}

// Assembler writes crash reports. Every input is read without waiting on
// a lock; a source that is busy at crash time is reported as empty or
// unavailable.
type Assembler struct {
	context *ContextRecorder
	console ConsoleSource
	trace   TraceSource
}

// NewAssembler creates an assembler. console may be nil.
func NewAssembler(context *ContextRecorder, console ConsoleSource, trace TraceSource) *Assembler {
	return &Assembler{
		context: context,
		console: console,
		trace:   trace,
	}
}

// ReportPath returns the report path for a memory image.
func ReportPath(imagePath string) string {
	return imagePath + ReportSuffix
}

// AssembleAndWrite writes the report next to the memory image, replacing
// any previous report of the same name. The image itself is never touched.
func (a *Assembler) AssembleAndWrite(imagePath string) (string, error) {
	path := ReportPath(imagePath)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return path, fmt.Errorf("opening crash report: %w", err)
	}

	if err := a.WriteReport(f); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("writing crash report: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("syncing crash report: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("closing crash report: %w", err)
	}
	return path, nil
}

// WriteReport renders the report to w.
func (a *Assembler) WriteReport(w io.Writer) error {
	bw := bufio.NewWriter(w)

	ctx := &CrashContext{}
	if a.context != nil {
		ctx = a.context.Load()
	}
	fmt.Fprintln(bw, ConfigBegin)
	fmt.Fprintf(bw, "Map=%s\n", ctx.Map())
	fmt.Fprintf(bw, "BasePath=%s\n", ctx.BasePath())
	fmt.Fprintf(bw, "CommandLine=%s\n", ctx.CommandLine())
	fmt.Fprintln(bw, ConfigEnd)
	fmt.Fprintln(bw)

	if history := a.consoleHistory(); history != "" {
		fmt.Fprintln(bw, ConsoleBegin)
		bw.WriteString(history)
		if !strings.HasSuffix(history, "\n") {
			bw.WriteByte('\n')
		}
		fmt.Fprintln(bw, ConsoleEnd)
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, TraceBegin)
	if a.trace != nil {
		entries, ok := retryBusy(a.trace.TrySnapshot)
		if !ok {
			fmt.Fprintln(bw, traceUnavailable)
		}
		for _, e := range entries {
			fmt.Fprintf(bw, "Name: %s\n", e.Name)
			fmt.Fprintf(bw, "Profile: %s\n", e.Profile)
			fmt.Fprintf(bw, "CallerStack:\n%s\n", e.CallerStack)
			fmt.Fprintln(bw, EntrySep)
		}
	}
	fmt.Fprintln(bw, TraceEnd)

	return bw.Flush()
}

func (a *Assembler) consoleHistory() string {
	if a.console == nil {
		return ""
	}
	s, ok := retryBusy(a.console.TryString)
	if !ok {
		return ""
	}
	return s
}

// retryBusy calls try until it succeeds, yielding between attempts, and
// gives up after busyAttempts. A try-lock also fails while a writer is only
// waiting, which frame-rate producers make common.
func retryBusy[T any](try func() (T, bool)) (T, bool) {
	for i := 1; ; i++ {
		v, ok := try()
		if ok || i >= busyAttempts {
			return v, ok
		}
		runtime.Gosched()
	}
}
