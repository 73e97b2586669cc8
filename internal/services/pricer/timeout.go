package pricer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

type timeoutPricer struct {
	next    Pricer
	timeout time.Duration
}

// WithTimeout bounds every GetPrice call of next by d. A non-positive d returns next unchanged.
func WithTimeout(next Pricer, d time.Duration) Pricer {
	if d <= 0 {
		return next
	}
	return &timeoutPricer{next: next, timeout: d}
}

func (p *timeoutPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.next.GetPrice(ctx, pair)
}
