package diagnostics

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// HostCommandLine returns the command line of the running process as the
// OS reports it, falling back to os.Args.
func HostCommandLine() string {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if cmdline, err := p.Cmdline(); err == nil && cmdline != "" {
			return cmdline
		}
	}
	return strings.Join(os.Args, " ")
}

// HostWorkingDir returns the process working directory, or "" if it cannot
// be determined.
func HostWorkingDir() string {
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec // pid fits in int32
		if cwd, err := p.Cwd(); err == nil && cwd != "" {
			return cwd
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
