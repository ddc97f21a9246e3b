package config

// Config holds the operator-supplied settings document.
//
// Top-level keys keep the names of the plugin's config.json so existing
// documents load unchanged. Viper lowercases keys, hence the lowercase tags.
type Config struct {
	LightweightMode       bool     `mapstructure:"lightweightmode" json:"LightweightMode" yaml:"LightweightMode"`
	LogCallbacksToConsole bool     `mapstructure:"logcallbackstoconsole" json:"LogCallbacksToConsole" yaml:"LogCallbacksToConsole"`
	CallbackLogSize       int      `mapstructure:"callbacklogsize" json:"CallbackLogSize" yaml:"CallbackLogSize"`
	ProfileExcludeFilters []string `mapstructure:"profileexcludefilters" json:"ProfileExcludeFilters" yaml:"ProfileExcludeFilters"`
	FilterField           string   `mapstructure:"filterfield" json:"FilterField" yaml:"FilterField"`

	Log      LogConfig      `mapstructure:"log" json:"Log" yaml:"Log"`
	Crash    CrashConfig    `mapstructure:"crash" json:"Crash" yaml:"Crash"`
	Watchdog WatchdogConfig `mapstructure:"watchdog" json:"Watchdog" yaml:"Watchdog"`
	API      APIConfig      `mapstructure:"api" json:"API" yaml:"API"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level        string `mapstructure:"level" json:"Level" yaml:"Level"`
	Format       string `mapstructure:"format" json:"Format" yaml:"Format"`
	HistoryBytes int    `mapstructure:"historybytes" json:"HistoryBytes" yaml:"HistoryBytes"`
}

// CrashConfig configures where memory images and reports land.
type CrashConfig struct {
	// DumpDir is relative to the host base path unless absolute.
	DumpDir    string `mapstructure:"dumpdir" json:"DumpDir" yaml:"DumpDir"`
	MaxReports int    `mapstructure:"maxreports" json:"MaxReports" yaml:"MaxReports"`
}

// WatchdogConfig configures the signal-handler watchdog.
type WatchdogConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"Enabled" yaml:"Enabled"`
	TickInterval string `mapstructure:"tickinterval" json:"TickInterval" yaml:"TickInterval"`
}

// APIConfig configures the local ingest endpoint.
type APIConfig struct {
	Addr string `mapstructure:"addr" json:"Addr" yaml:"Addr"`
}
