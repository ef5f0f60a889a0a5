package valuation

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/matrixise/wallet-valuator/internal/network"
)

// AmountPlaces is the number of fractional digits in View.FormattedAmount.
// Rounding is half away from zero (decimal.Decimal.StringFixed).
const AmountPlaces = 4

// Projector filters, orders and values balances. It holds no mutable state
// and is safe for concurrent use.
type Projector struct {
	table  *network.Table
	locale language.Tag
	logger *slog.Logger
}

// Option configures a Projector
type Option func(*Projector)

// WithLocale sets the collation used to break priority ties by symbol
func WithLocale(tag language.Tag) Option {
	return func(p *Projector) {
		p.locale = tag
	}
}

// WithLogger sets the logger used for dropped-balance diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = logger
	}
}

// NewProjector creates a Projector ranking networks with table. A nil table
// ranks nothing, so every balance is dropped.
func NewProjector(table *network.Table, opts ...Option) *Projector {
	p := &Projector{
		table:  table,
		locale: language.English,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project keeps balances on ranked networks with a positive amount, orders
// them by network priority (descending) then symbol, and attaches the fiat
// value. A missing price values the balance at zero. The result is never nil.
func (p *Projector) Project(balances []Balance, prices PriceLookup) []View {
	kept := make([]Balance, 0, len(balances))
	for _, b := range balances {
		if !p.table.Ranked(b.Network) {
			p.logger.Debug("Balance dropped", "symbol", b.Symbol, "network", b.Network, "reason", "unranked network")
			continue
		}
		if !b.Amount.IsPositive() {
			p.logger.Debug("Balance dropped", "symbol", b.Symbol, "network", b.Network, "reason", "non-positive amount")
			continue
		}
		kept = append(kept, b)
	}

	// Collator keeps an internal buffer, one per call.
	col := collate.New(p.locale)
	sort.SliceStable(kept, func(i, j int) bool {
		return p.less(col, kept[i], kept[j])
	})

	views := make([]View, 0, len(kept))
	for _, b := range kept {
		views = append(views, View{
			Symbol:          b.Symbol,
			Amount:          b.Amount,
			Network:         b.Network,
			FormattedAmount: b.Amount.StringFixed(AmountPlaces),
			USDValue:        usdValue(b, prices),
		})
	}
	return views
}

// less orders by priority, collated symbol, raw symbol, network and amount.
// The trailing keys make the comparator total.
func (p *Projector) less(col *collate.Collator, a, b Balance) bool {
	pa, pb := p.table.Priority(a.Network), p.table.Priority(b.Network)
	if pa != pb {
		return pa > pb
	}
	if c := col.CompareString(a.Symbol, b.Symbol); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
		return c < 0
	}
	if c := strings.Compare(a.Network, b.Network); c != 0 {
		return c < 0
	}
	return a.Amount.LessThan(b.Amount)
}

func usdValue(b Balance, prices PriceLookup) decimal.Decimal {
	if prices == nil {
		return decimal.Zero
	}
	price, ok := prices.Price(b.Symbol)
	if !ok {
		return decimal.Zero
	}
	return price.Mul(b.Amount)
}
