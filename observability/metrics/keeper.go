package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// KeeperMetrics instruments the donation keeper.
type KeeperMetrics struct {
	donations *prometheus.CounterVec
	donated   *prometheus.CounterVec
	lastRun   *prometheus.GaugeVec
}

var (
	keeperOnce     sync.Once
	keeperRegistry *KeeperMetrics
)

// Keeper returns the lazily registered keeper metrics.
func Keeper() *KeeperMetrics {
	keeperOnce.Do(func() {
		keeperRegistry = &KeeperMetrics{
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Subsystem: "keeper",
				Name:      "donations_total",
				Help:      "Scheduled donations segmented by schedule and outcome.",
			}, []string{"schedule", "outcome"}),
			donated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seasonfarm",
				Subsystem: "keeper",
				Name:      "donated_tokens_total",
				Help:      "Whole tokens donated by the keeper per schedule.",
			}, []string{"schedule"}),
			lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "seasonfarm",
				Subsystem: "keeper",
				Name:      "last_donation_timestamp_seconds",
				Help:      "Unix time of the last successful donation per schedule.",
			}, []string{"schedule"}),
		}
		prometheus.MustRegister(
			keeperRegistry.donations,
			keeperRegistry.donated,
			keeperRegistry.lastRun,
		)
	})
	return keeperRegistry
}

// RecordDonation tracks the outcome of a scheduled donation. Amount is in
// base units and only counted for successful donations.
func (m *KeeperMetrics) RecordDonation(schedule, outcome, amount string, unix int64) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(schedule, outcome).Inc()
	if outcome != "ok" {
		return
	}
	m.donated.WithLabelValues(schedule).Add(wholeTokens(amount))
	m.lastRun.WithLabelValues(schedule).Set(float64(unix))
}
