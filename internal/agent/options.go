package agent

import (
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sigwatch"
)

// DefaultActivationDelay is how long after registration the subsystem
// reports whether it is linked.
const DefaultActivationDelay = 3 * time.Second

// Options configure Load.
type Options struct {
	// BaseDir is the host base path. Defaults to the working directory.
	BaseDir string
	// ConfigFile overrides the host-relative config document location.
	ConfigFile string
	// Viper carries CLI flag bindings into every config load. Optional.
	Viper *viper.Viper

	// Table is the signal table the watchdog inspects. Defaults to the
	// system table.
	Table sigwatch.SignalTable

	// Logger overrides the logger built from the config document.
	Logger *logging.Logger
	// LogOutput is where the built logger writes. Defaults to stderr.
	LogOutput io.Writer

	// CommandLine overrides the host command line recorded for reports.
	CommandLine string

	// CaptureFatalOutput routes runtime fatal errors into the dump
	// directory. It changes process-wide state.
	CaptureFatalOutput bool

	ActivationDelay time.Duration
}
