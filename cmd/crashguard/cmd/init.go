package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config document",
	Long: `Write the default config document under the host base path
(addons/crashguard/config.json), or to --config when given.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	base, err := resolveBaseDir()
	if err != nil {
		return err
	}
	path := newLoader(base).ConfigPath()

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at %s, use --force to overwrite", path)
	}

	if err := config.AtomicWrite(path, []byte(config.DefaultConfigJSON)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
