package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent records one successful ledger mutation.
type LedgerEvent struct {
	Seq        uint64          `json:"seq"`
	ID         string          `json:"id"`
	Kind       Action          `json:"kind"`
	Instrument Pair            `json:"instrument"`
	Step       int             `json:"step"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	// Profit is set for close events only.
	Profit decimal.Decimal `json:"profit,omitempty"`
	// Cash is the balance right after the mutation.
	Cash decimal.Decimal `json:"cash"`
	Time time.Time       `json:"ts"`
}
