package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"seasonfarm/core/events"
	"seasonfarm/native/farm"
)

// tokenDecimals is the precision of every season token.
const tokenDecimals = 18

type FarmMetrics struct {
	deposits     *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	donations    *prometheus.CounterVec
	donated      *prometheus.CounterVec
	harvested    *prometheus.CounterVec
	positions    *prometheus.GaugeVec
	rpcRequests  *prometheus.CounterVec
	rpcLatency   *prometheus.HistogramVec
	rpcThrottles *prometheus.CounterVec
	droppedFeed  prometheus.Counter
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

// Farm returns the lazily registered farm metrics.
func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Name:      "deposits_total",
				Help:      "Liquidity tokens deposited segmented by trading pair.",
			}, []string{"pair"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Name:      "withdrawals_total",
				Help:      "Liquidity tokens withdrawn segmented by trading pair.",
			}, []string{"pair"}),
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Name:      "donations_total",
				Help:      "Donations received segmented by season token.",
			}, []string{"season"}),
			donated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Name:      "donated_tokens_total",
				Help:      "Whole season tokens donated to the farm.",
			}, []string{"season"}),
			harvested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Name:      "harvested_tokens_total",
				Help:      "Whole season tokens paid out to liquidity providers.",
			}, []string{"season"}),
			positions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "seasonfarm",
				Name:      "positions",
				Help:      "Liquidity tokens currently deposited per trading pair.",
			}, []string{"pair"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "seasonfarm",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution of JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			rpcThrottles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
			droppedFeed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events dropped because a stream subscriber was too slow.",
			}),
		}
		prometheus.MustRegister(
			farmRegistry.deposits,
			farmRegistry.withdrawals,
			farmRegistry.donations,
			farmRegistry.donated,
			farmRegistry.harvested,
			farmRegistry.positions,
			farmRegistry.rpcRequests,
			farmRegistry.rpcLatency,
			farmRegistry.rpcThrottles,
			farmRegistry.droppedFeed,
		)
	})
	return farmRegistry
}

// Emit records committed farm events. It satisfies events.Emitter so the
// registry can be attached to the runtime next to the stream feed.
func (m *FarmMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	attrs := payload.Attributes
	switch payload.Type {
	case farm.EventTypePositionDeposited:
		m.deposits.WithLabelValues(attrs["pair"]).Inc()
		m.positions.WithLabelValues(attrs["pair"]).Inc()
	case farm.EventTypePositionWithdrawn:
		m.withdrawals.WithLabelValues(attrs["pair"]).Inc()
		m.positions.WithLabelValues(attrs["pair"]).Dec()
	case farm.EventTypeDonationReceived:
		season := attrs["season"]
		m.donations.WithLabelValues(season).Inc()
		m.donated.WithLabelValues(season).Add(wholeTokens(attrs["amount"]))
	case farm.EventTypeRewardsHarvested:
		for s := farm.Spring; s <= farm.Winter; s++ {
			if amount, ok := attrs[s.String()]; ok {
				m.harvested.WithLabelValues(s.String()).Add(wholeTokens(amount))
			}
		}
	}
}

// ObserveRequest records the outcome and latency of a JSON-RPC call.
func (m *FarmMetrics) ObserveRequest(method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordThrottle counts a rate limited request.
func (m *FarmMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rpcThrottles.WithLabelValues(reason).Inc()
}

// RecordDropped adds events dropped by the stream feed.
func (m *FarmMetrics) RecordDropped(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.droppedFeed.Add(float64(n))
}

func wholeTokens(raw string) float64 {
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return 0
	}
	value, _ := amount.Shift(-tokenDecimals).Float64()
	return value
}
