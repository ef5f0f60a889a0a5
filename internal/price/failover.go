package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCooldown is how long a failing feed is skipped before it is tried again
const DefaultCooldown = time.Minute

// Endpoint is one named feed behind a FailoverFeed
type Endpoint struct {
	Name string
	Feed Feed
}

type endpointStatus struct {
	Endpoint
	healthy       bool
	lastError     error
	lastErrorTime time.Time
}

// FailoverFeed spreads lookups over several feeds. A feed failing with
// anything but ErrUnknownSymbol is skipped for a cooldown and the next one is
// asked instead.
type FailoverFeed struct {
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	endpoints    []*endpointStatus
	currentIndex int
}

// NewFailoverFeed creates a failover over endpoints, tried in order. A zero
// cooldown uses DefaultCooldown.
func NewFailoverFeed(endpoints []Endpoint, cooldown time.Duration, logger *slog.Logger) (*FailoverFeed, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one price feed is required")
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = slog.Default()
	}

	ff := &FailoverFeed{
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
		endpoints: make([]*endpointStatus, 0, len(endpoints)),
	}
	for _, ep := range endpoints {
		ff.endpoints = append(ff.endpoints, &endpointStatus{Endpoint: ep, healthy: true})
	}
	return ff, nil
}

// Lookup asks the current feed first and fails over on transient errors.
// Unknown symbols and cancellation are returned as is.
func (ff *FailoverFeed) Lookup(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var lastErr error
	tried := 0

	for _, ep := range ff.candidates() {
		tried++
		p, err := ep.Feed.Lookup(ctx, symbol)
		switch {
		case err == nil:
			ff.markHealthy(ep)
			return p, nil
		case errors.Is(err, ErrUnknownSymbol), ctx.Err() != nil:
			return decimal.Zero, err
		}
		ff.markUnhealthy(ep, err)
		lastErr = err
	}

	if lastErr == nil {
		return decimal.Zero, fmt.Errorf("lookup %s: all %d feeds cooling down: %w", symbol, len(ff.endpoints), ErrFeedUnavailable)
	}
	return decimal.Zero, fmt.Errorf("lookup %s: %d feeds failed: %w", symbol, tried, lastErr)
}

// Healthy returns how many feeds are currently usable
func (ff *FailoverFeed) Healthy() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	n := 0
	for _, ep := range ff.endpoints {
		if ep.healthy {
			n++
		}
	}
	return n
}

// candidates lists the feeds to try in round-robin order from the current
// one, leaving out those still cooling down.
func (ff *FailoverFeed) candidates() []*endpointStatus {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	now := ff.now()
	out := make([]*endpointStatus, 0, len(ff.endpoints))
	for i := range ff.endpoints {
		ep := ff.endpoints[(ff.currentIndex+i)%len(ff.endpoints)]
		if ep.healthy || now.Sub(ep.lastErrorTime) > ff.cooldown {
			out = append(out, ep)
		}
	}
	return out
}

func (ff *FailoverFeed) markHealthy(ep *endpointStatus) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if !ep.healthy {
		ff.logger.Info("Price feed recovered", "feed", ep.Name)
	}
	ep.healthy = true
	ep.lastError = nil
	for i, candidate := range ff.endpoints {
		if candidate == ep {
			ff.currentIndex = i
			break
		}
	}
}

func (ff *FailoverFeed) markUnhealthy(ep *endpointStatus, err error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	ep.healthy = false
	ep.lastError = err
	ep.lastErrorTime = ff.now()

	ff.logger.Warn("Marked price feed as unhealthy, will retry after cooldown",
		"feed", ep.Name,
		"error", err,
		"retry_after", ff.cooldown)
}
