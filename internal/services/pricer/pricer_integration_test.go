//go:build integration

package pricer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/gridsim/internal/clients"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// To run these tests, use: go test -tags=integration -v ./internal/services/pricer/...
func TestPricers_GetPrice_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	hl, err := clients.NewHyperliquidClient("", "")
	require.NoError(t, err)

	pricers := map[string]Pricer{
		"binance":     NewBinancePricer(clients.NewBinanceClient()),
		"bybit":       NewBybitPricer(clients.NewBybitClient()),
		"hyperliquid": NewHyperliquidPricer(hl.Info()),
	}

	for name, p := range pricers {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			pair := domain.Pair{From: "BTC", To: "USDT"}
			price, err := p.GetPrice(ctx, pair)
			require.NoError(t, err)
			assert.True(t, price.GreaterThan(decimal.Zero), "Expected price > 0 for %s, got %s", pair.String(), price.String())
			t.Logf("Current %s price on %s: %s", pair.String(), name, price.String())
		})
	}

	t.Run("returns error for invalid pair", func(t *testing.T) {
		_, err := pricers["binance"].GetPrice(context.Background(), domain.Pair{From: "INVALID", To: "PAIR"})
		assert.ErrorIs(t, err, ErrPriceUnavailable)
	})
}
