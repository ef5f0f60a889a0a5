// Package metrics exports Prometheus collectors for price resolution and
// portfolio valuation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matrixise/wallet-valuator/internal/price"
)

const namespace = "wallet_valuator"

// CacheStats reports projection cache counters
type CacheStats func() (hits, recomputes uint64)

// PriceCacheStats reports resolver price cache counters
type PriceCacheStats func() (hits, misses uint64)

// Metrics holds the application collectors
type Metrics struct {
	resolves        *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	valuations      *prometheus.CounterVec
	portfolioTotal  prometheus.Gauge
	lastValuation   prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolves_total",
			Help:      "Price queries that reached the feed, by outcome.",
		}, []string{"state"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_resolve_duration_seconds",
			Help:      "Time spent resolving a price, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		valuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuations_total",
			Help:      "Portfolio valuations, by result.",
		}, []string{"result"}),
		portfolioTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_total_usd",
			Help:      "Fiat value of the displayed holdings at the last valuation.",
		}),
		lastValuation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_valuation_timestamp_seconds",
			Help:      "Unix time of the last successful valuation.",
		}),
	}
	reg.MustRegister(m.resolves, m.resolveDuration, m.valuations, m.portfolioTotal, m.lastValuation)
	return m
}

// ObserveResolve implements price.Observer
func (m *Metrics) ObserveResolve(state price.State, elapsed time.Duration) {
	m.resolves.WithLabelValues(state.String()).Inc()
	m.resolveDuration.Observe(elapsed.Seconds())
}

// ObserveValuation records a valuation attempt. total is ignored on error.
func (m *Metrics) ObserveValuation(total float64, at time.Time, err error) {
	if err != nil {
		m.valuations.WithLabelValues("error").Inc()
		return
	}
	m.valuations.WithLabelValues("ok").Inc()
	m.portfolioTotal.Set(total)
	m.lastValuation.Set(float64(at.Unix()))
}

// RegisterCache exports projection cache counters read from stats
func RegisterCache(reg prometheus.Registerer, stats CacheStats) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_hits_total",
			Help:      "Valuations served from the projection cache.",
		}, func() float64 {
			hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_recomputes_total",
			Help:      "Valuations that recomputed the projection.",
		}, func() float64 {
			_, recomputes := stats()
			return float64(recomputes)
		}),
	)
}

// RegisterPriceCache exports resolver price cache counters read from stats
func RegisterPriceCache(reg prometheus.Registerer, stats PriceCacheStats) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Price queries answered from the resolver cache.",
		}, func() float64 {
			hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_misses_total",
			Help:      "Price queries that missed the resolver cache.",
		}, func() float64 {
			_, misses := stats()
			return float64(misses)
		}),
	)
}
