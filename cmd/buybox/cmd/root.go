// Package cmd implements the CLI commands for the buybox service.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "buybox",
	Short: "Rank marketplace offers and serve the Buy Box",
	Long: "An API-first service that ranks competing vendor offers for a product,\n" +
		"caches the Buy Box decision, and lets admins force a winner.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
