// Package metrics exposes engine and ledger state as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "gridsim"

// Collector groups the simulator metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	cash          prometheus.Gauge
	openPositions *prometheus.GaugeVec
	actions       *prometheus.CounterVec
	feedFailures  *prometheus.CounterVec
	tickDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash_balance",
			Help:      "Virtual cash balance of the ledger.",
		}),
		openPositions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open grid steps per instrument.",
		}, []string{"instrument"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed ledger actions.",
		}, []string{"instrument", "action"}),
		feedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_failures_total",
			Help:      "Ticks skipped because the price was unavailable.",
		}, []string{"instrument"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one engine iteration including the price request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"instrument"}),
	}

	for _, col := range []prometheus.Collector{c.cash, c.openPositions, c.actions, c.feedFailures, c.tickDuration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collector) SetCash(cash decimal.Decimal) {
	if c == nil {
		return
	}
	c.cash.Set(cash.InexactFloat64())
}

func (c *Collector) SetOpenPositions(instrument string, n int) {
	if c == nil {
		return
	}
	c.openPositions.WithLabelValues(instrument).Set(float64(n))
}

func (c *Collector) IncAction(instrument, action string) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(instrument, action).Inc()
}

func (c *Collector) IncFeedFailure(instrument string) {
	if c == nil {
		return
	}
	c.feedFailures.WithLabelValues(instrument).Inc()
}

func (c *Collector) ObserveTick(instrument string, d time.Duration) {
	if c == nil {
		return
	}
	c.tickDuration.WithLabelValues(instrument).Observe(d.Seconds())
}
