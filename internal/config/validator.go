package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration without modifying it.
func (v *Validator) Validate(cfg *Config) error {
	c := *cfg
	c.ProfileExcludeFilters = append([]string(nil), cfg.ProfileExcludeFilters...)
	if errs := v.Repair(&c); errs.HasErrors() {
		return errs
	}
	return nil
}

// Repair validates cfg and replaces every invalid value with its default.
// Exclude filters are trimmed and empty entries dropped. The returned errors
// describe what was replaced.
func (v *Validator) Repair(cfg *Config) ValidationErrors {
	d := Default()

	if cfg.CallbackLogSize <= 0 {
		v.addError("CallbackLogSize", cfg.CallbackLogSize, "must be greater than zero")
		cfg.CallbackLogSize = d.CallbackLogSize
	}

	cfg.ProfileExcludeFilters = dropBlankFilters(cfg.ProfileExcludeFilters)

	switch FilterField(strings.ToLower(cfg.FilterField)) {
	case FilterByName, FilterByProfile:
		cfg.FilterField = strings.ToLower(cfg.FilterField)
	case "":
		cfg.FilterField = d.FilterField
	default:
		v.addError("FilterField", cfg.FilterField, "must be one of: name, profile")
		cfg.FilterField = d.FilterField
	}

	v.repairLog(&cfg.Log, &d.Log)
	v.repairCrash(&cfg.Crash, &d.Crash)
	v.repairWatchdog(&cfg.Watchdog, &d.Watchdog)

	if strings.TrimSpace(cfg.API.Addr) == "" {
		cfg.API.Addr = d.API.Addr
	}

	return v.errors
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) repairLog(cfg, def *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	case "":
		cfg.Level = def.Level
	default:
		v.addError("Log.Level", cfg.Level, "must be one of: debug, info, warn, error")
		cfg.Level = def.Level
	}

	switch cfg.Format {
	case "auto", "text", "json":
	case "":
		cfg.Format = def.Format
	default:
		v.addError("Log.Format", cfg.Format, "must be one of: auto, text, json")
		cfg.Format = def.Format
	}

	if cfg.HistoryBytes < 0 {
		v.addError("Log.HistoryBytes", cfg.HistoryBytes, "must not be negative")
		cfg.HistoryBytes = def.HistoryBytes
	}
}

func (v *Validator) repairCrash(cfg, def *CrashConfig) {
	if strings.TrimSpace(cfg.DumpDir) == "" {
		cfg.DumpDir = def.DumpDir
	}
	if cfg.MaxReports < 0 {
		v.addError("Crash.MaxReports", cfg.MaxReports, "must not be negative")
		cfg.MaxReports = def.MaxReports
	}
}

func (v *Validator) repairWatchdog(cfg, def *WatchdogConfig) {
	if cfg.TickInterval == "" {
		cfg.TickInterval = def.TickInterval
		return
	}
	d, err := time.ParseDuration(cfg.TickInterval)
	if err != nil || d <= 0 {
		v.addError("Watchdog.TickInterval", cfg.TickInterval, "must be a positive duration")
		cfg.TickInterval = def.TickInterval
	}
}

// dropBlankFilters removes empty and whitespace-only entries from document
// filters. Other entries are kept verbatim: matching is an exact substring
// test, so surrounding spaces are significant.
func dropBlankFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalizeFilters trims entries of a comma-joined registration string and
// drops empty ones.
func normalizeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
