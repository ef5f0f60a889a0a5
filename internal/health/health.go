// Package health reports whether the price feed answers and scheduled
// revaluations keep running.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matrixise/wallet-valuator/internal/price"
	"github.com/matrixise/wallet-valuator/internal/scheduler"
)

// Prober resolves a symbol to prove the price feed is reachable
type Prober interface {
	Resolve(ctx context.Context, symbol string) price.Result
}

// RunReporter exposes the outcome of scheduled runs
type RunReporter interface {
	LastRun() (scheduler.Run, bool)
	ExpectedInterval() time.Duration
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// Response is the JSON body of the health endpoint
type Response struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

var startTime = time.Now()

// ProbeTimeout bounds the price feed probe
const ProbeTimeout = 3 * time.Second

// Checker performs health checks on the price feed and the scheduler
type Checker struct {
	prober      Prober
	probeSymbol string
	runs        RunReporter
	logger      *slog.Logger
	timeout     time.Duration
}

// NewChecker creates a health checker. runs may be nil when nothing is
// scheduled.
func NewChecker(prober Prober, probeSymbol string, runs RunReporter, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		prober:      prober,
		probeSymbol: probeSymbol,
		runs:        runs,
		logger:      logger,
		timeout:     ProbeTimeout,
	}
}

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) Response {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	feed := c.checkPriceFeed(ctx)
	checks["price_feed"] = feed
	overall = worst(overall, feed.Status)

	if c.runs != nil {
		reval := c.checkRevaluation()
		checks["revaluation"] = reval
		// A lagging scheduler never makes the service unavailable
		if reval.Status != StatusOK {
			overall = worst(overall, StatusDegraded)
		}
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

func worst(a, b CheckStatus) CheckStatus {
	rank := map[CheckStatus]int{StatusOK: 0, StatusDegraded: 1, StatusError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// checkPriceFeed resolves the probe symbol
func (c *Checker) checkPriceFeed(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res := c.prober.Resolve(ctx, c.probeSymbol)
	switch res.State {
	case price.Resolved:
		return CheckDetail{
			Status:  StatusOK,
			Message: fmt.Sprintf("%s priced at %s", c.probeSymbol, res.Price.String()),
		}
	case price.Unknown:
		c.logger.Error("Health check: probe symbol has no price", "symbol", c.probeSymbol)
		return CheckDetail{
			Status:  StatusError,
			Message: fmt.Sprintf("no price for %s", c.probeSymbol),
		}
	default:
		c.logger.Error("Health check: price feed did not answer", "symbol", c.probeSymbol, "state", res.State)
		return CheckDetail{
			Status:  StatusError,
			Message: fmt.Sprintf("price feed did not answer within %s", c.timeout),
		}
	}
}

// checkRevaluation verifies runs happen at the expected interval
func (c *Checker) checkRevaluation() CheckDetail {
	run, ok := c.runs.LastRun()
	if !ok {
		return CheckDetail{
			Status:  StatusOK,
			Message: "revaluation not yet executed (startup)",
		}
	}

	if run.Err != nil {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: "last revaluation failed: " + run.Err.Error(),
		}
	}

	// 2x interval grace period
	since := time.Since(run.Started)
	interval := c.runs.ExpectedInterval()
	if since > 2*interval {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no revaluation in %s (expected every %s)", since.Round(time.Second), interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last revaluation %s ago", since.Round(time.Second)),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Check(r.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			c.logger.Error("Failed to encode health response", "error", err)
		}
	}
}
