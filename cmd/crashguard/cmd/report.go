package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/diagnostics"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the most recent crash report",
	Long: `Print the newest crash report in the dump directory. Section markers
are highlighted when stdout is a terminal.`,
	RunE: runReport,
}

var reportDir string

var markerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportDir, "dir", "", "dump directory (default from config)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	dir := reportDir
	if dir == "" {
		cfg, base, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Crash.DumpDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
	}

	path, data, err := diagnostics.LatestReport(dir)
	if errors.Is(err, diagnostics.ErrNoReports) || errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No crash reports in %s\n", dir)
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", path)
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if strings.HasPrefix(line, "--------") {
			fmt.Fprint(out, markerStyle.Render(strings.TrimSuffix(line, "\n"))+"\n")
			continue
		}
		fmt.Fprint(out, line)
	}
	return nil
}
