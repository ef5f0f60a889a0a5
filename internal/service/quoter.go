package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/price"
)

// DefaultQuoteTimeout bounds how long a quote waits for both prices
const DefaultQuoteTimeout = 10 * time.Second

// Quoter answers one-off exchange estimates from a shared resolver, so
// prices resolved for one quote are reused by the next.
type Quoter struct {
	resolver *price.Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewQuoter creates a Quoter. A zero timeout uses DefaultQuoteTimeout.
func NewQuoter(resolver *price.Resolver, timeout time.Duration, logger *slog.Logger) *Quoter {
	if timeout <= 0 {
		timeout = DefaultQuoteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Quoter{resolver: resolver, timeout: timeout, logger: logger}
}

// Quote estimates how much of to is received for amount of from. On timeout
// the partial estimate is returned along with the error.
func (q *Quoter) Quote(ctx context.Context, from, to, amount string) (exchange.Estimate, error) {
	if from == "" {
		from = exchange.DefaultSource
	}
	if to == "" {
		to = exchange.DefaultDestination
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	est := exchange.NewEstimator(q.resolver, q.logger)
	defer est.Close()

	est.SetSource(from)
	est.SetDestination(to)
	est.SetAmount(amount)

	result, err := est.Wait(ctx)
	if err != nil {
		return result, fmt.Errorf("quote %s->%s: %w", from, to, err)
	}

	q.logger.Debug("Quote computed", "from", from, "to", to, "amount", amount, "output", result.Formatted)
	return result, nil
}
