package price

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Resolver defaults
const (
	DefaultCacheTTL   = 5 * time.Minute
	DefaultMaxRetries = 3
	DefaultRetryDelay = 200 * time.Millisecond
)

// Resolver answers price queries through a Feed. Terminal results are kept in
// a TTL cache so a symbol that was already resolved is answered without
// waiting. Transient feed errors are retried with exponential backoff.
type Resolver struct {
	feed       Feed
	cache      *ttlcache.Cache[string, Result]
	cacheTTL   time.Duration
	maxRetries uint
	retryDelay time.Duration
	limiter    *rate.Limiter
	observer   Observer
	logger     *slog.Logger
}

// Observer is told the outcome of every Resolve call that reached the feed
type Observer interface {
	ObserveResolve(state State, elapsed time.Duration)
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCacheTTL sets how long resolved prices stay cached. Zero disables the
// cache.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n uint) ResolverOption {
	return func(r *Resolver) {
		r.maxRetries = n
	}
}

// WithRetryDelay sets the initial backoff interval
func WithRetryDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.retryDelay = d
	}
}

// WithRateLimit throttles feed lookups, retries included
func WithRateLimit(limiter *rate.Limiter) ResolverOption {
	return func(r *Resolver) {
		r.limiter = limiter
	}
}

// WithObserver registers an observer for resolve outcomes
func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = o
	}
}

// WithResolverLogger sets the logger
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver in front of feed
func NewResolver(feed Feed, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		feed:       feed,
		cacheTTL:   DefaultCacheTTL,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = ttlcache.New[string, Result](
		ttlcache.WithTTL[string, Result](r.cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, Result](),
	)
	return r
}

// Cached returns the cached result for symbol without contacting the feed.
func (r *Resolver) Cached(symbol string) (Result, bool) {
	if r.cacheTTL <= 0 {
		return Result{}, false
	}
	item := r.cache.Get(symbol)
	if item == nil {
		return Result{}, false
	}
	return item.Value(), true
}

// Resolve returns the price of symbol. It blocks until the feed answers,
// retries are exhausted or ctx is cancelled, in which case the result is
// Cancelled. An empty symbol resolves to Idle immediately.
func (r *Resolver) Resolve(ctx context.Context, symbol string) Result {
	if symbol == "" {
		return Result{State: Idle}
	}
	if res, ok := r.Cached(symbol); ok {
		return res
	}
	if ctx.Err() != nil {
		return Result{State: Cancelled}
	}

	started := time.Now()
	res := r.lookup(ctx, symbol)
	if r.observer != nil {
		r.observer.ObserveResolve(res.State, time.Since(started))
	}
	return res
}

func (r *Resolver) lookup(ctx context.Context, symbol string) Result {
	operation := func() (decimal.Decimal, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return decimal.Zero, backoff.Permanent(err)
			}
		}
		p, err := r.feed.Lookup(ctx, symbol)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrUnknownSymbol) || ctx.Err() != nil {
			return decimal.Zero, backoff.Permanent(err)
		}
		return decimal.Zero, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryDelay
	policy.MaxInterval = r.retryDelay * 10

	notify := func(err error, d time.Duration) {
		r.logger.Debug("Price lookup failed, retrying", "symbol", symbol, "error", err, "backoff", d)
	}

	p, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.maxRetries+1),
		backoff.WithNotify(notify))

	switch {
	case ctx.Err() != nil:
		return Result{State: Cancelled}
	case errors.Is(err, ErrUnknownSymbol):
		res := Result{State: Unknown}
		r.store(symbol, res)
		return res
	case err != nil:
		r.logger.Warn("Price lookup gave up", "symbol", symbol, "error", err, "attempts", r.maxRetries+1)
		return Result{State: Unknown}
	}

	res := Result{State: Resolved, Price: p}
	r.store(symbol, res)
	return res
}

// CacheMetrics exposes hit/miss counters of the price cache
func (r *Resolver) CacheMetrics() ttlcache.Metrics {
	return r.cache.Metrics()
}

func (r *Resolver) store(symbol string, res Result) {
	if r.cacheTTL <= 0 {
		return
	}
	r.cache.Set(symbol, res, ttlcache.DefaultTTL)
}
