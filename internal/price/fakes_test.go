package price

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// funcFeed adapts a function to Feed
type funcFeed func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f funcFeed) Lookup(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

// countingFeed wraps a static table and counts lookups
type countingFeed struct {
	prices map[string]decimal.Decimal
	calls  atomic.Int64
}

func (f *countingFeed) Lookup(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.calls.Add(1)
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, ErrUnknownSymbol
	}
	return p, nil
}

type reply struct {
	price decimal.Decimal
	err   error
}

// request is one lookup parked in a gateFeed until the test answers it
type request struct {
	ctx    context.Context
	symbol string
	reply  chan reply
}

func (r *request) answer(price string) {
	r.reply <- reply{price: decimal.RequireFromString(price)}
}

func (r *request) fail(err error) {
	r.reply <- reply{err: err}
}

// gateFeed hands every lookup to the test, which decides when and how it
// completes. With ignoreCancel set, lookups keep waiting for an answer even
// after their context is cancelled.
type gateFeed struct {
	requests     chan *request
	ignoreCancel bool
}

func newGateFeed() *gateFeed {
	return &gateFeed{requests: make(chan *request, 16)}
}

func (f *gateFeed) Lookup(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := &request{ctx: ctx, symbol: symbol, reply: make(chan reply, 1)}
	f.requests <- req

	if f.ignoreCancel {
		r := <-req.reply
		return r.price, r.err
	}
	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case r := <-req.reply:
		return r.price, r.err
	}
}
