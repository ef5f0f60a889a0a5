package price

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Feed looks up the current unit price of a symbol. Implementations must
// return ErrUnknownSymbol for symbols they do not price and must honor ctx.
type Feed interface {
	Lookup(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Default simulated latency bounds
const (
	DefaultMinDelay = 800 * time.Millisecond
	DefaultMaxDelay = 2000 * time.Millisecond
)

// DefaultPrices returns the built-in price table of the simulated feed
func DefaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ETH":  decimal.NewFromInt(3850),
		"USDC": decimal.NewFromInt(1),
		"USDT": decimal.RequireFromString("1.001"),
		"WBTC": decimal.NewFromInt(102500),
		"DAI":  decimal.RequireFromString("0.999"),
	}
}

// SimulatedFeed serves a static price table after a random delay. It stands
// in for a remote quote service.
type SimulatedFeed struct {
	prices      map[string]decimal.Decimal
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
}

// FeedOption configures a SimulatedFeed
type FeedOption func(*SimulatedFeed)

// WithDelay sets the latency range [minDelay, maxDelay)
func WithDelay(minDelay, maxDelay time.Duration) FeedOption {
	return func(f *SimulatedFeed) {
		f.minDelay = minDelay
		f.maxDelay = maxDelay
	}
}

// WithFailureRate makes a fraction of lookups fail with ErrFeedUnavailable
func WithFailureRate(rate float64) FeedOption {
	return func(f *SimulatedFeed) {
		f.failureRate = rate
	}
}

// NewSimulatedFeed creates a feed serving prices. A nil map serves
// DefaultPrices.
func NewSimulatedFeed(prices map[string]decimal.Decimal, opts ...FeedOption) *SimulatedFeed {
	if prices == nil {
		prices = DefaultPrices()
	}
	f := &SimulatedFeed{
		prices:   make(map[string]decimal.Decimal, len(prices)),
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
	}
	for symbol, p := range prices {
		f.prices[symbol] = p
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Lookup waits for the simulated latency, then returns the price of symbol.
// Cancelling ctx stops the timer and returns ctx.Err().
func (f *SimulatedFeed) Lookup(ctx context.Context, symbol string) (decimal.Decimal, error) {
	timer := time.NewTimer(f.delay())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case <-timer.C:
	}

	if f.failureRate > 0 && rand.Float64() < f.failureRate {
		return decimal.Zero, fmt.Errorf("lookup %s: %w", symbol, ErrFeedUnavailable)
	}
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("lookup %s: %w", symbol, ErrUnknownSymbol)
	}
	return p, nil
}

// Symbols lists the priced symbols in alphabetical order
func (f *SimulatedFeed) Symbols() []string {
	symbols := make([]string, 0, len(f.prices))
	for s := range f.prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (f *SimulatedFeed) delay() time.Duration {
	if f.maxDelay <= f.minDelay {
		return f.minDelay
	}
	return f.minDelay + rand.N(f.maxDelay-f.minDelay)
}
