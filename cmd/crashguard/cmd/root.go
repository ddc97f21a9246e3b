package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var (
	cfgFile   string
	baseDir   string
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "crashguard",
	Short: "Crash diagnostics for long-running host processes",
	Long: `crashguard keeps a short history of plugin callbacks, watches the
process's fatal-signal handlers, and writes a readable crash report next to
every memory image when the host dies.

Run 'crashguard run' to host the subsystem and its local ingest endpoint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config document (default: <base-dir>/addons/crashguard/config.json)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "",
		"host base path (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")

	// Bind flags to viper (errors are nil when flag exists)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// resolveBaseDir returns --base-dir or the working directory.
func resolveBaseDir() (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return wd, nil
}

// newLoader returns a loader for the selected document that sees the
// flags bound to the global viper.
func newLoader(base string) *config.Loader {
	v := viper.New()
	for _, key := range viper.AllKeys() {
		if viper.IsSet(key) {
			v.Set(key, viper.Get(key))
		}
	}
	l := config.NewLoaderWithViper(v).WithBaseDir(base)
	if cfgFile != "" {
		l = l.WithConfigFile(cfgFile)
	}
	return l
}

// loadConfig loads the effective config, reporting degraded loads on
// stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	base, err := resolveBaseDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := newLoader(base).Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return cfg, base, nil
}
