package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration crashguard would use: the document merged with
defaults, environment (CRASHGUARD_*) and flags, with invalid values replaced.`,
	RunE: runConfigShow,
}

var configOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().StringVarP(&configOutput, "output", "o", "yaml", "output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := config.Render(cfg, configOutput)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
