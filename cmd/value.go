package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixise/wallet-valuator/internal/render"
	"github.com/matrixise/wallet-valuator/internal/scheduler"
)

var (
	valueInterval string
	valueOnce     bool
	valueHoldings string
	valueJSON     bool
)

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Value the holdings file",
	Long:  `Project the holdings file into ordered, priced rows and print them with the portfolio total.`,
	RunE:  runValue,
}

func init() {
	rootCmd.AddCommand(valueCmd)

	valueCmd.Flags().StringVar(&valueInterval, "interval", "", "run interval - duration (5m, 1h) or cron (\"*/5 * * * *\") - empty for one-time run")
	valueCmd.Flags().BoolVar(&valueOnce, "once", false, "run once and exit (default)")
	valueCmd.Flags().StringVar(&valueHoldings, "holdings", "", "holdings file (default from config)")
	valueCmd.Flags().BoolVar(&valueJSON, "json", false, "print JSON instead of a table")
}

func runValue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	holdings := valueHoldings
	if holdings == "" {
		holdings = cfg.HoldingsFile
	}
	runInterval := valueInterval
	if runInterval == "" {
		runInterval = cfg.Interval
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"holdings_file", holdings,
		"networks", len(cfg.PriorityTable().Networks()),
		"interval", runInterval,
	)

	resolver, err := newResolver(cfg, nil)
	if err != nil {
		return err
	}
	valuator := newValuator(cfg, resolver, holdings)
	out := cmd.OutOrStdout()

	revalue := func(jobCtx context.Context) error {
		report, err := valuator.Revalue(jobCtx)
		if err != nil {
			slog.Error("Valuation failed", "error", err)
			return err
		}
		if valueJSON {
			return writeJSON(out, report)
		}
		return render.Valuations(out, report.Views)
	}

	if runInterval == "" || valueOnce {
		return revalue(ctx)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sched, err := scheduler.NewScheduler(ctx, scheduler.Config{
		Interval:       runInterval,
		Timezone:       loc,
		RunImmediately: cfg.RunImmediately,
		Logger:         slog.Default(),
	}, revalue)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}
	defer sched.Stop()

	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	slog.Info("Scheduled revaluation started", "schedule", sched.Schedule().Describe(loc))

	<-ctx.Done()
	slog.Info("Shutdown requested, stopping scheduler")
	return nil
}
