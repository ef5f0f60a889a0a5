package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without running the application.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("✓ Configuration valid",
		"networks", cfg.PriorityTable().Networks(),
		"prices", len(cfg.PriceFeed.Prices),
		"holdings_file", cfg.HoldingsFile,
		"interval", cfg.Interval,
		"locale", cfg.LocaleTag().String(),
		"log_level", cfg.LogLevel,
	)

	return nil
}
