// Package pricer adapts exchange market-data APIs to a single "current price" call.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal/domain"
)

// ErrPriceUnavailable marks a feed failure the caller should treat as transient.
var ErrPriceUnavailable = errors.New("price unavailable")

// Pricer returns the current price of an instrument.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

func unavailable(err error, format string, args ...any) error {
	if err == nil {
		return errors.Wrapf(ErrPriceUnavailable, format, args...)
	}
	return errors.Wrapf(ErrPriceUnavailable, format+": %v", append(args, err)...)
}

func parsePrice(raw string, pair domain.Pair, source string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, unavailable(err, "%s returned malformed price %q for %s", source, raw, pair.String())
	}
	if !price.IsPositive() {
		return decimal.Zero, unavailable(nil, "%s returned non-positive price %s for %s", source, raw, pair.String())
	}
	return price, nil
}
