package config

import "path/filepath"

const (
	// DefaultCallbackLogSize is the ring-buffer capacity used when the
	// document does not set a positive CallbackLogSize.
	DefaultCallbackLogSize = 5

	// DefaultHistoryBytes matches the console capture size of the host.
	DefaultHistoryBytes = 95000

	DefaultDumpDir      = "addons/crashguard/logs"
	DefaultMaxReports   = 10
	DefaultTickInterval = "100ms"
	DefaultAPIAddr      = "127.0.0.1:27420"
)

// configRelPath is the fixed host-relative location of the document.
var configRelPath = filepath.Join("addons", "crashguard", "config.json")

// DefaultExcludeFilters is applied when the document is missing or unparsable.
func DefaultExcludeFilters() []string {
	return []string{"OnTick", "CheckTransmit", "Display"}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LightweightMode:       true,
		LogCallbacksToConsole: false,
		CallbackLogSize:       DefaultCallbackLogSize,
		ProfileExcludeFilters: DefaultExcludeFilters(),
		FilterField:           string(FilterByName),
		Log: LogConfig{
			Level:        "info",
			Format:       "auto",
			HistoryBytes: DefaultHistoryBytes,
		},
		Crash: CrashConfig{
			DumpDir:    DefaultDumpDir,
			MaxReports: DefaultMaxReports,
		},
		Watchdog: WatchdogConfig{
			Enabled:      true,
			TickInterval: DefaultTickInterval,
		},
		API: APIConfig{
			Addr: DefaultAPIAddr,
		},
	}
}

// Path returns the config document location under a host base path.
func Path(baseDir string) string {
	return filepath.Join(baseDir, configRelPath)
}

// DefaultConfigJSON is written by `crashguard init`.
const DefaultConfigJSON = `{
  "LightweightMode": true,
  "LogCallbacksToConsole": false,
  "CallbackLogSize": 5,
  "ProfileExcludeFilters": ["OnTick", "CheckTransmit", "Display"],
  "FilterField": "name",
  "Log": {
    "Level": "info",
    "Format": "auto",
    "HistoryBytes": 95000
  },
  "Crash": {
    "DumpDir": "addons/crashguard/logs",
    "MaxReports": 10
  },
  "Watchdog": {
    "Enabled": true,
    "TickInterval": "100ms"
  },
  "API": {
    "Addr": "127.0.0.1:27420"
  }
}
`
