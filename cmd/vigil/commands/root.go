package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - protective put early-warning scanner",
	Long: `Vigil Unified CLI

Multi-source market scanner producing buy-protective-put alerts.
Price, options flow, dark pool and filings data feed three detection
engines behind a market-regime gate; conviction accumulates across
scan cycles.

Usage:
  go run ./cmd/vigil [command]

Examples:
  go run ./cmd/vigil api
  go run ./cmd/vigil scan
  go run ./cmd/vigil scheduler start
  go run ./cmd/vigil weights check`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
