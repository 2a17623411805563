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
	Use:   "mxfeed",
	Short: "mxfeed - continuous back-adjusted MXF price series",
	Long: `mxfeed builds a continuous, back-adjusted price series for the
TAIFEX mini index futures (MXF) from raw 1-minute contract bars.

The pipeline segments bars into day and night sessions, resamples them to
5m and 60m, applies the roll-adjustment offsets from the curated
settlement table, and persists only session batches that pass the
completeness gate.

Usage:
  go run ./cmd/mxfeed [command]

Examples:
  go run ./cmd/mxfeed run --from 2025-06-16 --to 2025-06-20
  go run ./cmd/mxfeed settle show
  go run ./cmd/mxfeed check 250618D
  go run ./cmd/mxfeed api
  go run ./cmd/mxfeed scheduler start`,
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
