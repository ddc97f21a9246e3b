package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sigwatch"
	"github.com/hugo-lorenzo-mato/crashguard/internal/trace"
)

// ErrUnloaded is returned by operations on a subsystem after Unload.
var ErrUnloaded = errors.New("subsystem unloaded")

// WatchdogStatus is the externally visible watchdog state.
type WatchdogStatus struct {
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
	Repairs int64  `json:"repairs"`
	Checks  int64  `json:"checks"`
}

// Subsystem owns every piece of crash-diagnostics state for one host
// process: the settings snapshot, the callback ring, the watchdog, the
// crash context and the crash service. All entry points the host or its
// plugins call go through it.
type Subsystem struct {
	opts    Options
	baseDir string

	logger   *logging.Logger
	history  *logging.History
	settings *config.Store
	cfg      atomic.Pointer[config.Config]

	ring      *trace.Ring
	crashCtx  *diagnostics.ContextRecorder
	assembler *diagnostics.Assembler
	crash     *diagnostics.CrashService
	watchdog  *sigwatch.Watchdog

	registerMu sync.Mutex
	registered atomic.Bool
	unloaded   atomic.Bool
	activation *time.Timer
}

// Load builds the subsystem from the config document under opts.BaseDir.
// Config problems are logged and defaults used; only failures to set up
// the dump directory are returned.
func Load(opts Options) (*Subsystem, error) {
	if opts.BaseDir == "" {
		opts.BaseDir = diagnostics.HostWorkingDir()
	}
	if opts.ActivationDelay <= 0 {
		opts.ActivationDelay = DefaultActivationDelay
	}

	s := &Subsystem{
		opts:     opts,
		baseDir:  opts.BaseDir,
		crashCtx: diagnostics.NewContextRecorder(),
	}

	cfg, loadErr := s.loadConfig()
	s.cfg.Store(cfg)

	s.logger, s.history = s.buildLogger(cfg)
	if loadErr != nil {
		s.logger.Warn("config problems, using defaults where needed", "error", loadErr)
	}

	snap := config.NewSnapshot(cfg)
	s.settings = config.NewStore(snap)
	s.ring = trace.NewRing(snap.RingBufferCapacity, s.settings, s.logger.WithComponent("trace").Logger)

	cmdline := opts.CommandLine
	if cmdline == "" {
		cmdline = diagnostics.HostCommandLine()
	}
	s.crashCtx.SetStatic(s.baseDir, s.logger.Sanitize(cmdline))
	s.assembler = diagnostics.NewAssembler(s.crashCtx, s.history, s.ring)

	dumpDir := s.DumpDir()
	if n, err := diagnostics.PruneReports(dumpDir, cfg.Crash.MaxReports, s.logger.Logger); err != nil {
		s.logger.Warn("pruning old crash reports failed", "dir", dumpDir, "error", err)
	} else if n > 0 {
		s.logger.Info("pruned old crash reports", "dir", dumpDir, "removed", n)
	}

	crash, err := diagnostics.NewCrashService(dumpDir, s.OnCrash, s.logger.WithComponent("crash").Logger)
	if err != nil {
		return nil, fmt.Errorf("starting crash service: %w", err)
	}
	s.crash = crash
	if opts.CaptureFatalOutput {
		if _, err := crash.EnableFatalOutput(); err != nil {
			s.logger.Warn("runtime fatal output not captured", "error", err)
		}
	}

	if cfg.Watchdog.Enabled {
		table := opts.Table
		if table == nil {
			table = sigwatch.NewSystemTable()
		}
		wd, err := sigwatch.NewWatchdog(table, s.logger.WithComponent("watchdog").Logger)
		if err != nil {
			s.logger.Warn("signal watchdog disabled", "error", err)
		} else {
			s.watchdog = wd
			s.logger.Debug("signal baseline recorded", "handler", wd.Baseline().String())
		}
	}

	s.logger.Info("crashguard loaded",
		"base_dir", s.baseDir,
		"dump_dir", dumpDir,
		"capacity", snap.RingBufferCapacity,
	)
	return s, nil
}

// loadConfig reads the document with a fresh loader so a removed or
// rewritten file is never shadowed by a previous read.
func (s *Subsystem) loadConfig() (*config.Config, error) {
	v := viper.New()
	if s.opts.Viper != nil {
		for _, key := range s.opts.Viper.AllKeys() {
			if s.opts.Viper.IsSet(key) {
				v.Set(key, s.opts.Viper.Get(key))
			}
		}
	}
	loader := config.NewLoaderWithViper(v).WithBaseDir(s.baseDir)
	if s.opts.ConfigFile != "" {
		loader = loader.WithConfigFile(s.opts.ConfigFile)
	}
	return loader.Load()
}

func (s *Subsystem) buildLogger(cfg *config.Config) (*logging.Logger, *logging.History) {
	if s.opts.Logger != nil {
		hist := s.opts.Logger.History()
		if hist == nil {
			hist = logging.NewHistory(0)
		}
		return s.opts.Logger, hist
	}
	hist := logging.NewHistory(cfg.Log.HistoryBytes)
	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	if s.opts.LogOutput != nil {
		lc.Output = s.opts.LogOutput
	}
	lc.History = hist
	return logging.New(lc), hist
}

// Register re-reads the config document, publishes the new settings and
// returns the registration handed to callback producers. A change of
// capacity resizes the ring, discarding its contents.
func (s *Subsystem) Register() config.Registration {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	cfg, err := s.loadConfig()
	if err != nil {
		s.logger.Warn("config problems on registration, using defaults where needed", "error", err)
	}
	s.cfg.Store(cfg)

	snap := config.NewSnapshot(cfg)
	s.settings.Publish(snap)
	// A runtime Resize may have moved the ring away from the document.
	if s.ring.Capacity() != snap.RingBufferCapacity {
		s.ring.Resize(snap.RingBufferCapacity)
	}

	s.registered.Store(true)
	s.scheduleActivationCheck()

	reg := snap.Registration()
	s.logger.Info("callback producer registered",
		"lightweight", reg.LightweightMode,
		"filters", reg.Filters,
		"capacity", reg.CallbackLogSize,
	)
	return reg
}

func (s *Subsystem) scheduleActivationCheck() {
	if s.activation != nil {
		s.activation.Stop()
	}
	s.activation = time.AfterFunc(s.opts.ActivationDelay, func() {
		if s.unloaded.Load() {
			return
		}
		if s.registered.Load() {
			s.logger.Info("crashguard is active and linked")
		} else {
			s.logger.Error("crashguard did not register itself")
		}
	})
}

// Registration returns the current producer registration without
// re-reading the document.
func (s *Subsystem) Registration() config.Registration {
	return s.settings.Load().Registration()
}

// Registered reports whether Register has been called since load.
func (s *Subsystem) Registered() bool {
	return s.registered.Load()
}

// Ingest stores one encoded callback record. It reports whether the
// record was stored.
func (s *Subsystem) Ingest(raw []byte) bool {
	if s.unloaded.Load() {
		return false
	}
	return s.ring.Ingest(raw)
}

// Snapshot returns the callback history, newest first.
func (s *Subsystem) Snapshot() []trace.Entry {
	return s.ring.Snapshot()
}

// Resize changes the ring capacity, discarding its contents, and
// publishes the new capacity in the registration. The next Register
// restores the capacity from the document.
func (s *Subsystem) Resize(capacity int) bool {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	if !s.ring.Resize(capacity) {
		return false
	}
	s.settings.Publish(s.settings.Load().WithCapacity(capacity))
	return true
}

// Tick is called once per host frame with the current map name. It tracks
// map changes for the crash context and runs the watchdog.
func (s *Subsystem) Tick(mapName string) sigwatch.State {
	if s.unloaded.Load() {
		return sigwatch.Intact
	}
	if mapName != "" && s.crashCtx.SetMap(mapName) {
		s.logger.WithMap(mapName).Info("detected map change")
	}
	if s.watchdog == nil {
		return sigwatch.Intact
	}
	return s.watchdog.CheckAndRepair()
}

// WatchdogStatus reports the watchdog counters.
func (s *Subsystem) WatchdogStatus() WatchdogStatus {
	if s.watchdog == nil {
		return WatchdogStatus{State: sigwatch.Intact.String()}
	}
	return WatchdogStatus{
		Enabled: true,
		State:   s.watchdog.LastState().String(),
		Repairs: s.watchdog.Repairs(),
		Checks:  s.watchdog.Checks(),
	}
}

// OnCrash is the crash service completion callback. It writes the text
// report next to the memory image.
func (s *Subsystem) OnCrash(imagePath string, succeeded bool) bool {
	s.logger.Error("crash detected, writing crash report", "image", imagePath, "image_ok", succeeded)

	path, err := s.assembler.AssembleAndWrite(imagePath)
	if err != nil {
		s.logger.Error("failed to write crash report", "path", path, "error", err)
		return false
	}
	s.logger.Info("crash report written", "path", path)
	return succeeded
}

// Guard is a defer-compatible crash handler for the calling goroutine.
// Usage: defer sub.Guard()
func (s *Subsystem) Guard() {
	if r := recover(); r != nil {
		s.crash.Capture(r)
		panic(r)
	}
}

// Go runs fn in a guarded goroutine.
func (s *Subsystem) Go(fn func()) {
	s.crash.Go(fn)
}

// WatchConfig re-registers whenever the config document changes. It blocks
// until ctx is done.
func (s *Subsystem) WatchConfig(ctx context.Context) error {
	path := s.ConfigPath()
	w := config.NewWatcher(path, func() {
		if s.unloaded.Load() {
			return
		}
		s.logger.Info("config document changed, re-registering", "path", path)
		s.Register()
	}, s.logger.WithComponent("config").Logger)
	return w.Run(ctx)
}

// Unload stops background work. Ingest becomes a no-op.
func (s *Subsystem) Unload() error {
	if !s.unloaded.CompareAndSwap(false, true) {
		return ErrUnloaded
	}
	s.registered.Store(false)

	s.registerMu.Lock()
	if s.activation != nil {
		s.activation.Stop()
	}
	s.registerMu.Unlock()

	err := s.crash.Close()
	s.logger.Info("crashguard unloaded")
	return err
}

// Config returns the most recently loaded configuration.
func (s *Subsystem) Config() *config.Config {
	return s.cfg.Load()
}

// ConfigPath returns the config document location.
func (s *Subsystem) ConfigPath() string {
	if s.opts.ConfigFile != "" {
		return s.opts.ConfigFile
	}
	return config.Path(s.baseDir)
}

// DumpDir returns the resolved crash output directory.
func (s *Subsystem) DumpDir() string {
	dir := s.cfg.Load().Crash.DumpDir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.baseDir, dir)
}

// Logger returns the subsystem logger.
func (s *Subsystem) Logger() *logging.Logger {
	return s.logger
}

// Ring exposes the callback ring.
func (s *Subsystem) Ring() *trace.Ring {
	return s.ring
}

// CrashContext exposes the static crash context.
func (s *Subsystem) CrashContext() *diagnostics.ContextRecorder {
	return s.crashCtx
}
