package pricer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// DefaultMidsTTL is how long one allMids snapshot serves every instrument.
const DefaultMidsTTL = 500 * time.Millisecond

// midsSource is the part of the Hyperliquid Info client the pricer needs.
type midsSource interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer reads mid prices from the Hyperliquid public Info API.
// allMids returns every coin at once, so one snapshot is shared by all
// engines for DefaultMidsTTL instead of each engine issuing its own request.
type HyperliquidPricer struct {
	info midsSource
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	mids      map[string]string
	fetchedAt time.Time
}

func NewHyperliquidPricer(info midsSource) *HyperliquidPricer {
	return &HyperliquidPricer{info: info, ttl: DefaultMidsTTL, now: time.Now}
}

// GetPrice returns the mid price of pair.From; Hyperliquid quotes every coin in USD.
func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, unavailable(nil, "hyperliquid info client is nil")
	}

	mids, err := p.snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	mid, ok := mids[pair.From]
	if !ok || mid == "" {
		return decimal.Zero, unavailable(nil, "hyperliquid has no mid price for %s", pair.From)
	}

	return parsePrice(mid, pair, "hyperliquid")
}

// snapshot holds the lock across the request so concurrent callers wait for
// one fetch rather than racing their own.
func (p *HyperliquidPricer) snapshot(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mids != nil && p.now().Sub(p.fetchedAt) < p.ttl {
		return p.mids, nil
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return nil, unavailable(err, "hyperliquid mids request")
	}

	p.mids = mids
	p.fetchedAt = p.now()
	return mids, nil
}
