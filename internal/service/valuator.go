// Package service ties providers, the valuation cache and the exchange
// estimator together for the CLI and the HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matrixise/wallet-valuator/internal/portfolio"
	"github.com/matrixise/wallet-valuator/internal/valuation"
)

// Report is the outcome of one valuation
type Report struct {
	Views    []valuation.View `json:"views"`
	Total    decimal.Decimal  `json:"total"`
	ValuedAt time.Time        `json:"valuedAt"`
	// Recomputed is false when the cached projection was reused
	Recomputed bool `json:"recomputed"`
}

// ValuationObserver is told about every valuation attempt
type ValuationObserver interface {
	ObserveValuation(total float64, at time.Time, err error)
}

// Valuator loads holdings and projects them through a shared cache
type Valuator struct {
	provider portfolio.Provider
	cache    *valuation.Cache
	logger   *slog.Logger
	observer ValuationObserver

	mu   sync.RWMutex
	last *Report
}

// NewValuator creates a Valuator
func NewValuator(provider portfolio.Provider, projector *valuation.Projector, logger *slog.Logger) *Valuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Valuator{
		provider: provider,
		cache:    valuation.NewCache(projector),
		logger:   logger,
	}
}

// SetObserver registers o for valuation outcomes. Call before first use.
func (v *Valuator) SetObserver(o ValuationObserver) {
	v.observer = o
}

// Revalue loads the current holdings and returns their valuation
func (v *Valuator) Revalue(ctx context.Context) (Report, error) {
	balances, prices, err := v.provider.Load(ctx)
	if err != nil {
		// A projection of holdings that can no longer be read is not served again
		v.cache.Invalidate()
		err = fmt.Errorf("failed to load holdings: %w", err)
		if v.observer != nil {
			v.observer.ObserveValuation(0, time.Now(), err)
		}
		return Report{}, err
	}

	views, recomputed := v.cache.Lookup(balances, prices)

	report := Report{
		Views:      views,
		Total:      valuation.Total(views),
		ValuedAt:   time.Now(),
		Recomputed: recomputed,
	}

	v.mu.Lock()
	v.last = &report
	v.mu.Unlock()

	if v.observer != nil {
		v.observer.ObserveValuation(report.Total.InexactFloat64(), report.ValuedAt, nil)
	}

	v.logger.Info("Portfolio valued",
		"balances", balances.Len(),
		"shown", len(views),
		"total_usd", report.Total.StringFixed(2),
		"recomputed", report.Recomputed,
	)
	return report, nil
}

// Last returns the most recent report
func (v *Valuator) Last() (Report, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return Report{}, false
	}
	return *v.last, true
}

// Latest returns the last report while it is younger than maxAge and
// revalues otherwise.
func (v *Valuator) Latest(ctx context.Context, maxAge time.Duration) (Report, error) {
	if report, ok := v.Last(); ok && time.Since(report.ValuedAt) < maxAge {
		return report, nil
	}
	return v.Revalue(ctx)
}

// CacheStats reports projection cache hits and recomputes
func (v *Valuator) CacheStats() (hits, recomputes uint64) {
	return v.cache.Stats()
}
