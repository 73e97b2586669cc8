package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.SetCash(decimal.RequireFromString("993997"))
	c.SetOpenPositions("BTC_USDT", 2)
	c.IncAction("BTC_USDT", "open")
	c.IncAction("BTC_USDT", "open")
	c.IncFeedFailure("BTC_USDT")
	c.ObserveTick("BTC_USDT", 20*time.Millisecond)

	assert.Equal(t, 993997.0, testutil.ToFloat64(c.cash))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.openPositions.WithLabelValues("BTC_USDT")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actions.WithLabelValues("BTC_USDT", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.feedFailures.WithLabelValues("BTC_USDT")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.tickDuration))
}

func TestCollector_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SetCash(decimal.NewFromInt(1))
		c.SetOpenPositions("BTC_USDT", 1)
		c.IncAction("BTC_USDT", "close")
		c.IncFeedFailure("BTC_USDT")
		c.ObserveTick("BTC_USDT", time.Second)
	})
}
