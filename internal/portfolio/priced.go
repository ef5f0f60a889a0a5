package portfolio

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/matrixise/wallet-valuator/internal/price"
	"github.com/matrixise/wallet-valuator/internal/valuation"
)

// DefaultConcurrency bounds parallel price lookups
const DefaultConcurrency = 4

// PricedProvider fills prices the inner provider lacks by asking a price
// resolver. Symbols the resolver cannot price stay absent and value to zero.
type PricedProvider struct {
	inner       Provider
	resolver    *price.Resolver
	concurrency int
	logger      *slog.Logger

	mu     sync.Mutex
	base   *valuation.PriceTable
	merged *valuation.PriceTable
	values map[string]decimal.Decimal
}

// NewPricedProvider wraps inner
func NewPricedProvider(inner Provider, resolver *price.Resolver, logger *slog.Logger) *PricedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricedProvider{
		inner:       inner,
		resolver:    resolver,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// Load returns the inner balances with a completed price table. The merged
// table keeps its identity while every price it holds is unchanged.
func (p *PricedProvider) Load(ctx context.Context) (*valuation.BalanceSet, *valuation.PriceTable, error) {
	balances, prices, err := p.inner.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	missing := missingSymbols(balances, prices)
	if len(missing) == 0 {
		return balances, prices, nil
	}

	resolved := make([]price.Result, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, symbol := range missing {
		g.Go(func() error {
			resolved[i] = p.resolver.Resolve(gctx, symbol)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	values := make(map[string]decimal.Decimal, len(missing))
	for i, symbol := range missing {
		if v, ok := resolved[i].Value(); ok {
			values[symbol] = v
		} else {
			p.logger.Debug("No price for symbol", "symbol", symbol, "state", resolved[i].State)
		}
	}

	return balances, p.merge(prices, values), nil
}

func (p *PricedProvider) merge(base *valuation.PriceTable, values map[string]decimal.Decimal) *valuation.PriceTable {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.merged != nil && p.base == base && sameValues(p.values, values) {
		return p.merged
	}

	all := make(map[string]decimal.Decimal, base.Len()+len(values))
	for symbol, v := range values {
		all[symbol] = v
	}
	for _, symbol := range base.Symbols() {
		v, _ := base.Price(symbol)
		all[symbol] = v
	}

	p.base = base
	p.values = values
	p.merged = valuation.NewPriceTable(all)
	return p.merged
}

func missingSymbols(balances *valuation.BalanceSet, prices *valuation.PriceTable) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, b := range balances.Items() {
		if seen[b.Symbol] {
			continue
		}
		seen[b.Symbol] = true
		if _, ok := prices.Price(b.Symbol); !ok {
			missing = append(missing, b.Symbol)
		}
	}
	sort.Strings(missing)
	return missing
}

func sameValues(a, b map[string]decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !va.Equal(vb) {
			return false
		}
	}
	return true
}
