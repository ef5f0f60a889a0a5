package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matrixise/wallet-valuator/internal/api"
	"github.com/matrixise/wallet-valuator/internal/config"
	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/health"
	"github.com/matrixise/wallet-valuator/internal/metrics"
	"github.com/matrixise/wallet-valuator/internal/scheduler"
	"github.com/matrixise/wallet-valuator/internal/service"
)

const shutdownTimeout = 5 * time.Second

var (
	serveInterval     string
	serveHoldings     string
	serveProbeSymbol  string
	serveQuoteTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve valuations and quotes over HTTP",
	Long: `Expose valuations, exchange quotes, health and Prometheus metrics over HTTP.
With an interval the holdings are also revalued on schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveInterval, "interval", "", "revaluation interval - duration (5m, 1h) or cron (\"*/5 * * * *\") - empty to value on request only")
	serveCmd.Flags().StringVar(&serveHoldings, "holdings", "", "holdings file (default from config)")
	serveCmd.Flags().StringVar(&serveProbeSymbol, "probe-symbol", exchange.DefaultSource, "symbol resolved by the health check")
	serveCmd.Flags().DurationVar(&serveQuoteTimeout, "quote-timeout", service.DefaultQuoteTimeout, "how long a quote waits for both prices")
}

// serveOptions are the command line settings of serve. Empty values fall
// back to the configuration.
type serveOptions struct {
	Holdings     string
	Interval     string
	ProbeSymbol  string
	QuoteTimeout time.Duration
}

// server is the HTTP handler of serve plus its optional revaluation schedule
type server struct {
	handler  http.Handler
	sched    *scheduler.Scheduler
	location *time.Location
}

// latestValuer answers from the last scheduled valuation while it is fresh
type latestValuer struct {
	valuator *service.Valuator
	maxAge   time.Duration
}

func (l latestValuer) Revalue(ctx context.Context) (service.Report, error) {
	return l.valuator.Latest(ctx, l.maxAge)
}

func newServer(ctx context.Context, cfg *config.Config, opts serveOptions) (*server, error) {
	holdings := opts.Holdings
	if holdings == "" {
		holdings = cfg.HoldingsFile
	}
	runInterval := opts.Interval
	if runInterval == "" {
		runInterval = cfg.Interval
	}
	probeSymbol := opts.ProbeSymbol
	if probeSymbol == "" {
		probeSymbol = exchange.DefaultSource
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	resolver, err := newResolver(cfg, m)
	if err != nil {
		return nil, err
	}
	metrics.RegisterPriceCache(reg, func() (uint64, uint64) {
		cm := resolver.CacheMetrics()
		return cm.Hits, cm.Misses
	})

	valuator := newValuator(cfg, resolver, holdings)
	valuator.SetObserver(m)
	metrics.RegisterCache(reg, valuator.CacheStats)
	quoter := service.NewQuoter(resolver, opts.QuoteTimeout, slog.Default())

	srv := &server{}
	var (
		runs   health.RunReporter
		valuer api.Valuer = valuator
	)
	if runInterval != "" {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		sched, err := scheduler.NewScheduler(ctx, scheduler.Config{
			Interval:       runInterval,
			Timezone:       loc,
			RunImmediately: cfg.RunImmediately,
			Logger:         slog.Default(),
		}, func(jobCtx context.Context) error {
			_, err := valuator.Revalue(jobCtx)
			return err
		})
		if err != nil {
			slog.Error("Failed to create scheduler", "error", err)
			return nil, fmt.Errorf("scheduler creation failed: %w", err)
		}
		srv.sched = sched
		srv.location = loc
		runs = sched
		// Same grace period as the health check
		valuer = latestValuer{valuator: valuator, maxAge: 2 * sched.ExpectedInterval()}
	}

	checker := health.NewChecker(resolver, probeSymbol, runs, slog.Default())

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Mount("/", api.NewRouter(valuer, quoter, checker.Handler(), slog.Default()))
	srv.handler = router

	return srv, nil
}

// run serves on ln and runs the schedule until ctx is cancelled
func (s *server) run(ctx context.Context, ln net.Listener) error {
	if s.sched != nil {
		if err := s.sched.Start(); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("scheduler start failed: %w", err)
		}
		defer s.sched.Stop()
		slog.Info("Scheduled revaluation started", "schedule", s.sched.Schedule().Describe(s.location))
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", ln.Addr().String(), "scheduled", s.sched != nil)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown requested, stopping HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv, err := newServer(ctx, cfg, serveOptions{
		Holdings:     serveHoldings,
		Interval:     serveInterval,
		ProbeSymbol:  serveProbeSymbol,
		QuoteTimeout: serveQuoteTimeout,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.HTTPPort, "error", err)
		return fmt.Errorf("listen on port %d: %w", cfg.HTTPPort, err)
	}

	if err := srv.run(ctx, ln); err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}
	return nil
}
