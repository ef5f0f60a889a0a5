package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matrixise/wallet-valuator/internal/config"
	"github.com/matrixise/wallet-valuator/internal/logger"
	"github.com/matrixise/wallet-valuator/internal/portfolio"
	"github.com/matrixise/wallet-valuator/internal/price"
	"github.com/matrixise/wallet-valuator/internal/service"
	"github.com/matrixise/wallet-valuator/internal/valuation"
)

// loadConfig sets up logging and loads the configuration. An explicit
// --log-level wins over the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	logger.Setup(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return nil, err
	}

	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Signal received, graceful shutdown", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// newFeed builds the simulated feed. With more than one replica lookups
// fail over between them.
func newFeed(feedCfg config.PriceFeedConfig) (price.Feed, error) {
	minDelay, maxDelay := feedCfg.Delays()
	newSimulated := func() *price.SimulatedFeed {
		return price.NewSimulatedFeed(feedCfg.PriceTable(),
			price.WithDelay(minDelay, maxDelay),
			price.WithFailureRate(feedCfg.FailureRate),
		)
	}

	if feedCfg.Replicas <= 1 {
		return newSimulated(), nil
	}
	endpoints := make([]price.Endpoint, 0, feedCfg.Replicas)
	for i := range feedCfg.Replicas {
		endpoints = append(endpoints, price.Endpoint{
			Name: fmt.Sprintf("simulated-%d", i+1),
			Feed: newSimulated(),
		})
	}
	return price.NewFailoverFeed(endpoints, feedCfg.CooldownPeriod(), slog.Default())
}

// newResolver builds the price feed and its resolver. observer may be nil.
func newResolver(cfg *config.Config, observer price.Observer) (*price.Resolver, error) {
	feedCfg := cfg.PriceFeed
	feed, err := newFeed(feedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create price feed: %w", err)
	}

	opts := []price.ResolverOption{
		price.WithCacheTTL(feedCfg.TTL()),
		price.WithMaxRetries(uint(feedCfg.MaxRetries)),
		price.WithRetryDelay(feedCfg.Backoff()),
		price.WithResolverLogger(slog.Default()),
	}
	if limiter := feedCfg.Limiter(); limiter != nil {
		opts = append(opts, price.WithRateLimit(limiter))
	}
	if observer != nil {
		opts = append(opts, price.WithObserver(observer))
	}

	minDelay, maxDelay := feedCfg.Delays()
	slog.Debug("Price feed configured",
		"replicas", max(feedCfg.Replicas, 1),
		"min_delay", minDelay,
		"max_delay", maxDelay,
		"cache_ttl", feedCfg.TTL(),
		"rate_limit", feedCfg.RateLimit,
	)
	return price.NewResolver(feed, opts...), nil
}

// newValuator reads holdings from path, fills prices the file leaves out
// from resolver and projects them with the configured network ranking.
func newValuator(cfg *config.Config, resolver *price.Resolver, path string) *service.Valuator {
	log := slog.Default()
	provider := portfolio.NewPricedProvider(portfolio.NewFileProvider(path, log), resolver, log)
	projector := valuation.NewProjector(cfg.PriorityTable(),
		valuation.WithLocale(cfg.LocaleTag()),
		valuation.WithLogger(log),
	)
	return service.NewValuator(provider, projector, log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
