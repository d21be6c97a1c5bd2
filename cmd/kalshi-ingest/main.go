package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sschnei8/predictionMarketExploro/internal/cmd"
	"github.com/sschnei8/predictionMarketExploro/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kalshi-ingest",
	Short: "Bulk-download Kalshi trades, markets and events to Parquet",
	Long: `kalshi-ingest pages through Kalshi REST collections, appends them to local
Parquet files, and resumes or continues incrementally after the last run.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cmd.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cmd.FetchCommand())
	rootCmd.AddCommand(cmd.WatchCommand())
	rootCmd.AddCommand(cmd.StatusCommand())
	rootCmd.AddCommand(cmd.MergeCommand())
	rootCmd.AddCommand(cmd.AnalyzeCommand())
	rootCmd.AddCommand(cmd.FeesCommand())
	rootCmd.AddCommand(cmd.ExchangeCommand())
	rootCmd.AddCommand(cmd.VersionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
