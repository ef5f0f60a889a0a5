// Package valuation turns raw balances and a price table into ordered,
// display-ready views.
package valuation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Balance is a single asset holding as reported upstream. Amount may be zero
// or negative; such balances are filtered out during projection.
type Balance struct {
	Symbol  string          `json:"symbol" yaml:"symbol"`
	Amount  decimal.Decimal `json:"amount" yaml:"amount"`
	Network string          `json:"network" yaml:"network"`
}

// BalanceSet is an immutable snapshot of balances. The pointer identity of a
// set is what Cache compares, so providers must hand out a new set whenever
// the underlying balances change.
type BalanceSet struct {
	items []Balance
}

// NewBalanceSet copies items into a new snapshot
func NewBalanceSet(items ...Balance) *BalanceSet {
	return &BalanceSet{items: append([]Balance(nil), items...)}
}

// Items returns a copy of the balances in upstream order
func (s *BalanceSet) Items() []Balance {
	if s == nil {
		return nil
	}
	return append([]Balance(nil), s.items...)
}

// Len returns the number of balances in the set
func (s *BalanceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// PriceLookup resolves a unit price for a symbol
type PriceLookup interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// PriceTable is an immutable symbol to unit price snapshot. Like BalanceSet,
// its pointer is its identity.
type PriceTable struct {
	prices map[string]decimal.Decimal
}

// NewPriceTable copies prices into a new snapshot. Non-positive prices are
// dropped and behave as unknown.
func NewPriceTable(prices map[string]decimal.Decimal) *PriceTable {
	t := &PriceTable{prices: make(map[string]decimal.Decimal, len(prices))}
	for symbol, p := range prices {
		if !p.IsPositive() {
			continue
		}
		t.prices[symbol] = p
	}
	return t
}

// Price returns the unit price for symbol, if known
func (t *PriceTable) Price(symbol string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	p, ok := t.prices[symbol]
	return p, ok
}

// Symbols lists the priced symbols in byte order
func (t *PriceTable) Symbols() []string {
	if t == nil {
		return nil
	}
	symbols := make([]string, 0, len(t.prices))
	for s := range t.prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of known prices
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.prices)
}

// View is a display-ready projection of a Balance. Views are created fresh on
// every recomputation and must not be mutated.
type View struct {
	Symbol          string          `json:"symbol"`
	Amount          decimal.Decimal `json:"amount"`
	Network         string          `json:"network"`
	FormattedAmount string          `json:"formattedAmount"`
	USDValue        decimal.Decimal `json:"usdValue"`
}

// Key identifies a row independently of its position in the list.
func (v View) Key() string {
	return fmt.Sprintf("%s-%s", v.Symbol, v.Network)
}

// Total sums the fiat value of views
func Total(views []View) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		total = total.Add(v.USDValue)
	}
	return total
}
