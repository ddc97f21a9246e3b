package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/crashguard/internal/agent"
	"github.com/hugo-lorenzo-mato/crashguard/internal/api"
	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Host the crash-diagnostics subsystem",
	Long: `Load the subsystem, register with the config document, and serve the
local ingest endpoint. A tick loop runs the signal watchdog and records the
current map. The config document is watched and re-registered on change.

Stops on SIGINT or SIGTERM.`,
	RunE: runRun,
}

var (
	runAddr string
	runTick string
	runMap  string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAddr, "addr", "", "listen address (default from config)")
	runCmd.Flags().StringVar(&runTick, "tick", "", "tick interval (default from config)")
	runCmd.Flags().StringVar(&runMap, "map", "", "map name recorded in crash reports")

	_ = viper.BindPFlag("api.addr", runCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("watchdog.tickinterval", runCmd.Flags().Lookup("tick"))
}

func runRun(cmd *cobra.Command, _ []string) error {
	base, err := resolveBaseDir()
	if err != nil {
		return err
	}

	sub, err := agent.Load(agent.Options{
		BaseDir:            base,
		ConfigFile:         cfgFile,
		Viper:              viper.GetViper(),
		LogOutput:          cmd.ErrOrStderr(),
		CaptureFatalOutput: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unload() }()
	defer sub.Guard()

	sub.Register()
	cfg := sub.Config()
	logger := sub.Logger()

	tick, err := time.ParseDuration(cfg.Watchdog.TickInterval)
	if err != nil {
		return fmt.Errorf("invalid tick interval %q: %w", cfg.Watchdog.TickInterval, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	loop := diagnostics.NewTickLoop(tick, func() { sub.Tick(runMap) }, logger.WithComponent("tick").Logger)
	server := api.NewServer(sub, api.WithLogger(logger.WithComponent("api").Logger))

	g.Go(guarded(sub, func() error { return loop.Run(ctx) }))
	g.Go(guarded(sub, func() error { return server.ListenAndServe(ctx, cfg.API.Addr) }))
	g.Go(guarded(sub, func() error { return sub.WatchConfig(ctx) }))

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// guarded wraps an errgroup function so a panic in it produces a crash
// report before the process dies.
func guarded(sub *agent.Subsystem, fn func() error) func() error {
	return func() error {
		defer sub.Guard()
		return fn()
	}
}

