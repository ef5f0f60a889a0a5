package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/wallet-valuator/internal/price"
)

func TestObserveResolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveResolve(price.Resolved, 900*time.Millisecond)
	m.ObserveResolve(price.Resolved, 1200*time.Millisecond)
	m.ObserveResolve(price.Unknown, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolves.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolves.WithLabelValues("unknown")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.resolveDuration))
}

func TestObserveValuation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	at := time.Unix(1700000000, 0)

	m.ObserveValuation(5664.1375, at, nil)
	m.ObserveValuation(1, at.Add(time.Minute), errors.New("no holdings"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.valuations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.valuations.WithLabelValues("error")))
	assert.Equal(t, 5664.1375, testutil.ToFloat64(m.portfolioTotal))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.lastValuation))
}

func TestRegisterCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCache(reg, func() (uint64, uint64) { return 7, 3 })

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, f := range families {
		got[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 7.0, got["wallet_valuator_projection_cache_hits_total"])
	assert.Equal(t, 3.0, got["wallet_valuator_projection_cache_recomputes_total"])
}

func TestRegisterPriceCache(t *testing.T) {
	feed := price.NewSimulatedFeed(nil, price.WithDelay(0, 0))
	resolver := price.NewResolver(feed)
	reg := prometheus.NewRegistry()
	RegisterPriceCache(reg, func() (uint64, uint64) {
		m := resolver.CacheMetrics()
		return m.Hits, m.Misses
	})

	ctx := context.Background()
	resolver.Resolve(ctx, "ETH")
	resolver.Resolve(ctx, "ETH")
	resolver.Resolve(ctx, "ETH")

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, f := range families {
		got[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	assert.Equal(t, 2.0, got["wallet_valuator_price_cache_hits_total"])
	assert.Equal(t, 1.0, got["wallet_valuator_price_cache_misses_total"])
}

func TestMetricsSatisfiesObserver(t *testing.T) {
	var _ price.Observer = New(prometheus.NewRegistry())
}
