package valuation

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/wallet-valuator/internal/network"
)

// sameSlice reports whether a and b share a backing array
func sameSlice(a, b []View) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return &a[0] == &b[0] && len(a) == len(b)
}

func TestCacheReturnsIdenticalSlice(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	c := NewCache(NewProjector(network.Default()))

	first := c.Get(set, prices)
	second := c.Get(set, prices)

	require.Len(t, first, 4)
	assert.True(t, sameSlice(first, second))
	hits, recomputes := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), recomputes)
}

func TestCacheRecomputesOnIdentityChange(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	c := NewCache(NewProjector(network.Default()))

	first := c.Get(set, prices)

	t.Run("equal content new balance set", func(t *testing.T) {
		next := c.Get(NewBalanceSet(balances...), prices)
		assert.False(t, sameSlice(first, next))
		assert.Equal(t, symbols(first), symbols(next))
	})

	t.Run("new price table", func(t *testing.T) {
		cheaper := NewPriceTable(map[string]decimal.Decimal{"OSMO": dec("1")})
		next := c.Get(set, cheaper)
		require.Len(t, next, 4)
		assert.True(t, dec("250.75").Equal(next[0].USDValue))
	})

	_, recomputes := c.Stats()
	assert.Equal(t, uint64(3), recomputes)
}

func TestCacheInvalidate(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	c := NewCache(NewProjector(network.Default()))

	first := c.Get(set, prices)
	c.Invalidate()
	second := c.Get(set, prices)

	assert.False(t, sameSlice(first, second))
	assert.Equal(t, symbols(first), symbols(second))
}

func TestCacheNilInputs(t *testing.T) {
	c := NewCache(NewProjector(network.Default()))

	views := c.Get(nil, nil)
	assert.NotNil(t, views)
	assert.Empty(t, views)

	c.Get(nil, nil)
	hits, recomputes := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), recomputes)
}

func TestCacheBalanceSetIsSnapshot(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	balances[1].Amount = dec("0")

	c := NewCache(NewProjector(network.Default()))
	views := c.Get(set, prices)

	require.Len(t, views, 4)
	assert.Equal(t, "OSMO", views[0].Symbol)
	assert.Equal(t, 5, set.Len())
}

func TestCacheConcurrentGet(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	c := NewCache(NewProjector(network.Default()))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.Len(t, c.Get(set, prices), 4)
			}
		}()
	}
	wg.Wait()

	hits, recomputes := c.Stats()
	assert.Equal(t, uint64(1), recomputes)
	assert.Equal(t, uint64(1599), hits)
}

func TestCacheLookupReportsOwnRecompute(t *testing.T) {
	balances, prices := walletFixture()
	set := NewBalanceSet(balances...)
	c := NewCache(NewProjector(network.Default()))

	var (
		wg      sync.WaitGroup
		flagged atomic.Int64
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, recomputed := c.Lookup(set, prices); recomputed {
				flagged.Add(1)
			}
		}()
	}
	wg.Wait()

	_, recomputes := c.Stats()
	assert.Equal(t, uint64(1), recomputes)
	assert.Equal(t, int64(1), flagged.Load())

	_, recomputed := c.Lookup(set, prices)
	assert.False(t, recomputed)

	c.Invalidate()
	_, recomputed = c.Lookup(set, prices)
	assert.True(t, recomputed)
}
