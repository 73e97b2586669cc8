package domain

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position is one open layer of an instrument's grid.
// Quantity is fixed when the position is opened and never changes.
type Position struct {
	Instrument Pair            `json:"instrument"`
	Step       int             `json:"step"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// NewPosition constructs a validated position.
func NewPosition(instrument Pair, step int, entryPrice, quantity decimal.Decimal, openedAt time.Time) (Position, error) {
	if instrument.IsZero() {
		return Position{}, errors.New("position instrument is required")
	}
	if step < 1 {
		return Position{}, errors.Errorf("step must be >= 1, got %d", step)
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return Position{}, errors.Errorf("entry price must be positive, got %s", entryPrice.String())
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return Position{}, errors.Errorf("quantity must be positive, got %s", quantity.String())
	}

	return Position{
		Instrument: instrument,
		Step:       step,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		OpenedAt:   openedAt,
	}, nil
}

// Notional returns the entry value of the position before fees.
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Quantity)
}

// ChangePercent returns the price move since entry, in percent.
func (p Position) ChangePercent(price decimal.Decimal) decimal.Decimal {
	return PercentageDiff(price, p.EntryPrice)
}

// SortByStepDesc orders positions from the highest step to the lowest.
func SortByStepDesc(positions []Position) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Step > positions[j].Step
	})
}

// SortByStepAsc orders positions from the lowest step to the highest.
func SortByStepAsc(positions []Position) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Step < positions[j].Step
	})
}
