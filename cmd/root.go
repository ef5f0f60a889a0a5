package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wallet-valuator",
	Short: "Wallet balance valuation and exchange estimates",
	Long: `wallet-valuator values a set of asset balances across networks. Balances
on unranked networks or with a non-positive amount are left out, the rest is
ordered by network priority and priced from an asynchronous price feed. It
also estimates the output of a two-asset exchange.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
