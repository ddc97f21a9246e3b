package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned alongside the built-in defaults when the
// document does not exist.
var ErrConfigNotFound = errors.New("config document not found")

// Loader handles configuration loading from the document and environment.
type Loader struct {
	v          *viper.Viper
	baseDir    string
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CRASHGUARD",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "CRASHGUARD",
	}
}

// WithBaseDir sets the host base path the document is resolved against.
func (l *Loader) WithBaseDir(dir string) *Loader {
	l.baseDir = dir
	return l
}

// WithConfigFile sets an explicit config file path, overriding the
// host-relative location.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigPath returns the document path Load reads.
func (l *Loader) ConfigPath() string {
	if l.configFile != "" {
		return l.configFile
	}
	return Path(l.baseDir)
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CRASHGUARD_*)
// 3. The config document
// 4. Defaults
//
// Load always returns a usable configuration. A non-nil error means the
// result is degraded: the document was missing or unparsable, or some values
// were invalid and replaced by their defaults. Callers log it and continue.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	path := l.ConfigPath()
	l.v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		l.v.SetConfigType("json")
	}

	var loadErr error
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			loadErr = fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		} else {
			loadErr = fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Default(), errors.Join(loadErr, fmt.Errorf("unmarshaling config: %w", err))
	}
	if loadErr != nil && !errors.Is(loadErr, ErrConfigNotFound) {
		// Unparsable document: nothing it says can be trusted.
		return Default(), loadErr
	}

	if verrs := NewValidator().Repair(&cfg); verrs.HasErrors() {
		return &cfg, errors.Join(loadErr, verrs)
	}
	return &cfg, loadErr
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	d := Default()

	l.v.SetDefault("lightweightmode", d.LightweightMode)
	l.v.SetDefault("logcallbackstoconsole", d.LogCallbacksToConsole)
	l.v.SetDefault("callbacklogsize", d.CallbackLogSize)
	l.v.SetDefault("profileexcludefilters", d.ProfileExcludeFilters)
	l.v.SetDefault("filterfield", d.FilterField)

	// Log defaults
	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
	l.v.SetDefault("log.historybytes", d.Log.HistoryBytes)

	// Crash output defaults
	l.v.SetDefault("crash.dumpdir", d.Crash.DumpDir)
	l.v.SetDefault("crash.maxreports", d.Crash.MaxReports)

	// Watchdog defaults
	l.v.SetDefault("watchdog.enabled", d.Watchdog.Enabled)
	l.v.SetDefault("watchdog.tickinterval", d.Watchdog.TickInterval)

	l.v.SetDefault("api.addr", d.API.Addr)
}

// ConfigFile returns the config file path if one was read.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
