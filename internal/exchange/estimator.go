// Package exchange estimates the output of swapping one asset for another
// from independently resolved unit prices.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/matrixise/wallet-valuator/internal/price"
)

// Default pair selected by callers that have no preference
const (
	DefaultSource      = "ETH"
	DefaultDestination = "USDC"
)

// Display precision
const (
	OutputPlaces     = 6
	InputValuePlaces = 2
)

var amountPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// Loading reports which side is still waiting for its price
type Loading struct {
	Source      bool `json:"source"`
	Destination bool `json:"destination"`
}

// Estimate is a point-in-time view of the estimator. Output is nil whenever
// an estimate cannot be given.
type Estimate struct {
	Source      string           `json:"source"`
	Destination string           `json:"destination"`
	Amount      string           `json:"amount"`
	Output      *decimal.Decimal `json:"output"`
	Formatted   string           `json:"formatted,omitempty"`
	InputValue  string           `json:"inputValue,omitempty"`
	Loading     Loading          `json:"loading"`
}

// Estimator pairs a source and a destination price slot with an input amount.
type Estimator struct {
	logger *slog.Logger

	mu          sync.Mutex
	source      *price.Slot
	destination *price.Slot
	amount      string
}

// NewEstimator creates an estimator with both sides idle
func NewEstimator(resolver *price.Resolver, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		logger:      logger,
		source:      price.NewSlot("source", resolver, logger),
		destination: price.NewSlot("destination", resolver, logger),
	}
}

// SetSource selects the asset being sold
func (e *Estimator) SetSource(symbol string) {
	e.mu.Lock()
	slot := e.source
	e.mu.Unlock()
	slot.Select(symbol)
}

// SetDestination selects the asset being bought
func (e *Estimator) SetDestination(symbol string) {
	e.mu.Lock()
	slot := e.destination
	e.mu.Unlock()
	slot.Select(symbol)
}

// SetAmount records the raw input quantity. Invalid input is kept as is and
// yields no estimate.
func (e *Estimator) SetAmount(amount string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.amount = amount
}

// Swap exchanges source and destination together with their current prices.
// Nothing is re-resolved.
func (e *Estimator) Swap() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source, e.destination = e.destination, e.source
	e.logger.Debug("Exchange sides swapped")
}

// Estimate computes the current estimate
func (e *Estimator) Estimate() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimateLocked()
}

func (e *Estimator) estimateLocked() Estimate {
	src, dst := e.source.Current(), e.destination.Current()
	est := Estimate{
		Source:      src.Symbol,
		Destination: dst.Symbol,
		Amount:      e.amount,
		Loading: Loading{
			Source:      src.Result.Loading(),
			Destination: dst.Result.Loading(),
		},
	}

	qty, ok := ParseAmount(e.amount)
	if !ok {
		return est
	}
	srcPrice, ok := src.Result.Value()
	if !ok {
		return est
	}
	est.InputValue = qty.Mul(srcPrice).StringFixed(InputValuePlaces)

	dstPrice, ok := dst.Result.Value()
	if !ok || dstPrice.IsZero() {
		return est
	}
	out := qty.Mul(srcPrice).Div(dstPrice)
	est.Output = &out
	est.Formatted = out.StringFixed(OutputPlaces)
	return est
}

// Wait blocks until neither side is loading, then returns the estimate.
func (e *Estimator) Wait(ctx context.Context) (Estimate, error) {
	e.mu.Lock()
	src, dst := e.source, e.destination
	e.mu.Unlock()

	if _, err := src.Wait(ctx); err != nil {
		return e.Estimate(), fmt.Errorf("waiting for source price: %w", err)
	}
	if _, err := dst.Wait(ctx); err != nil {
		return e.Estimate(), fmt.Errorf("waiting for destination price: %w", err)
	}
	return e.Estimate(), nil
}

// Close cancels in-flight price queries on both sides
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source.Close()
	e.destination.Close()
}

// ParseAmount parses a non-negative decimal quantity made of digits and at
// most one dot.
func ParseAmount(s string) (decimal.Decimal, bool) {
	if s == "" || !amountPattern.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
