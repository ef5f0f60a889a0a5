package price

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingFeed(calls *atomic.Int64) Feed {
	return funcFeed(func(context.Context, string) (decimal.Decimal, error) {
		calls.Add(1)
		return decimal.Zero, ErrFeedUnavailable
	})
}

func TestNewFailoverFeedRequiresEndpoints(t *testing.T) {
	_, err := NewFailoverFeed(nil, 0, nil)
	assert.Error(t, err)
}

func TestFailoverFeedFailsOver(t *testing.T) {
	var primaryCalls atomic.Int64
	secondary := &countingFeed{prices: DefaultPrices()}

	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "primary", Feed: failingFeed(&primaryCalls)},
		{Name: "secondary", Feed: secondary},
	}, time.Minute, nil)
	require.NoError(t, err)

	p, err := ff.Lookup(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3850).Equal(p))
	assert.Equal(t, 1, ff.Healthy())

	// The primary is cooling down, so it is not asked again
	_, err = ff.Lookup(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(1), primaryCalls.Load())
	assert.Equal(t, int64(2), secondary.calls.Load())
}

func TestFailoverFeedRetriesAfterCooldown(t *testing.T) {
	var primaryCalls atomic.Int64
	secondary := &countingFeed{prices: DefaultPrices()}

	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "primary", Feed: failingFeed(&primaryCalls)},
		{Name: "secondary", Feed: secondary},
	}, time.Minute, nil)
	require.NoError(t, err)

	now := time.Now()
	ff.now = func() time.Time { return now }

	_, err = ff.Lookup(context.Background(), "ETH")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = ff.Lookup(context.Background(), "ETH")
	require.NoError(t, err)

	// Secondary is current, the primary comes back as a fallback only
	assert.Equal(t, int64(1), primaryCalls.Load())
	assert.Equal(t, 1, ff.Healthy())
}

func TestFailoverFeedUnknownSymbolIsAuthoritative(t *testing.T) {
	primary := &countingFeed{prices: DefaultPrices()}
	secondary := &countingFeed{prices: map[string]decimal.Decimal{"NOPE": decimal.NewFromInt(1)}}

	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "primary", Feed: primary},
		{Name: "secondary", Feed: secondary},
	}, 0, nil)
	require.NoError(t, err)

	_, err = ff.Lookup(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.Equal(t, int64(0), secondary.calls.Load())
	assert.Equal(t, 2, ff.Healthy())
}

func TestFailoverFeedAllFailing(t *testing.T) {
	var a, b atomic.Int64
	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "a", Feed: failingFeed(&a)},
		{Name: "b", Feed: failingFeed(&b)},
	}, time.Minute, nil)
	require.NoError(t, err)

	_, err = ff.Lookup(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, 0, ff.Healthy())

	// Everything is cooling down now
	_, err = ff.Lookup(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, int64(1), a.Load())
	assert.Equal(t, int64(1), b.Load())
}

func TestFailoverFeedCancelled(t *testing.T) {
	var calls atomic.Int64
	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "slow", Feed: NewSimulatedFeed(nil, WithDelay(time.Second, time.Second))},
		{Name: "other", Feed: failingFeed(&calls)},
	}, 0, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ff.Lookup(ctx, "ETH")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), calls.Load())
	assert.Equal(t, 2, ff.Healthy())
}

func TestResolverOverFailoverFeed(t *testing.T) {
	var calls atomic.Int64
	ff, err := NewFailoverFeed([]Endpoint{
		{Name: "down", Feed: failingFeed(&calls)},
		{Name: "up", Feed: &countingFeed{prices: DefaultPrices()}},
	}, 0, nil)
	require.NoError(t, err)

	r := NewResolver(ff, WithMaxRetries(0))
	res := r.Resolve(context.Background(), "WBTC")
	assert.Equal(t, Resolved, res.State)
	assert.True(t, decimal.NewFromInt(102500).Equal(res.Price))
}
