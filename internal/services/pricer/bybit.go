package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// BybitPricer reads spot last prices from the Bybit v5 market API.
type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// GetPrice returns the spot last price. The SDK takes no context, so the
// request runs in its own goroutine and a cancelled ctx returns immediately;
// the abandoned request finishes in the background.
func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)

	go func() {
		raw, err := p.lastPrice(pair)
		done <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return decimal.Zero, unavailable(ctx.Err(), "bybit price request for %s", pair.String())
	case res := <-done:
		if res.err != nil {
			return decimal.Zero, res.err
		}
		return parsePrice(res.raw, pair, "bybit")
	}
}

func (p *BybitPricer) lastPrice(pair domain.Pair) (string, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	resp, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return "", unavailable(err, "bybit price request for %s", pair.String())
	}
	if resp.Result.Spot == nil || len(resp.Result.Spot.List) == 0 {
		return "", unavailable(nil, "bybit returned no ticker for %s", pair.String())
	}
	return resp.Result.Spot.List[0].LastPrice, nil
}
