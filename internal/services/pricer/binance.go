package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// BinancePricer reads last trade prices from the Binance public API.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// GetPrice fetches the current market price from Binance public API.
func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, unavailable(err, "binance price request for %s", pair.String())
	}
	if len(prices) == 0 {
		return decimal.Zero, unavailable(nil, "binance API returned empty prices for %s", pair.String())
	}

	return parsePrice(prices[0].Price, pair, "binance")
}
