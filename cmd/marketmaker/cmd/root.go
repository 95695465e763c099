// Package cmd implements the CLI commands for the marketmaker server.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "marketmaker",
	Short: "Find undervalued second-hand marketplace listings",
	Long: "An API-first service that values products from sold marketplace listings,\n" +
		"surfaces live listings priced well below fair value, screens out scams and\n" +
		"mismatches, and scans tracked searches on a schedule with exactly-once alerts.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
