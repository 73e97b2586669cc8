package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "gridsim",
	Short: "Multi-instrument grid trading simulator",
	Long: `gridsim runs a stepwise buy-the-dip grid per instrument against live
public prices from Binance, Bybit or Hyperliquid. Every fill is simulated
against one shared virtual cash ledger that survives restarts.`,
	SilenceUsage: true,
}

var (
	configPath string
	debug      bool
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (built-in defaults when empty)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging")
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
