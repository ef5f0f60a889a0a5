package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/render"
	"github.com/matrixise/wallet-valuator/internal/service"
)

var (
	quoteFrom    string
	quoteTo      string
	quoteAmount  string
	quoteTimeout time.Duration
	quoteJSON    bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Estimate an exchange between two assets",
	Long:  `Resolve both unit prices and estimate how much of the destination asset an amount of the source asset buys.`,
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFrom, "from", exchange.DefaultSource, "source asset symbol")
	quoteCmd.Flags().StringVar(&quoteTo, "to", exchange.DefaultDestination, "destination asset symbol")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "1", "amount of the source asset")
	quoteCmd.Flags().DurationVar(&quoteTimeout, "timeout", service.DefaultQuoteTimeout, "how long to wait for both prices")
	quoteCmd.Flags().BoolVar(&quoteJSON, "json", false, "print JSON instead of text")
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	resolver, err := newResolver(cfg, nil)
	if err != nil {
		return err
	}
	quoter := service.NewQuoter(resolver, quoteTimeout, nil)
	est, quoteErr := quoter.Quote(ctx, quoteFrom, quoteTo, quoteAmount)

	out := cmd.OutOrStdout()
	if quoteJSON {
		err = writeJSON(out, est)
	} else {
		err = render.Estimate(out, est)
	}
	if quoteErr != nil {
		return quoteErr
	}
	return err
}
