package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade is the realized outcome of closing one grid step.
type ClosedTrade struct {
	Instrument Pair            `json:"instrument"`
	Step       int             `json:"step"`
	Profit     decimal.Decimal `json:"profit"`
	ClosedAt   time.Time       `json:"closed_at"`
}

// TotalProfit sums realized profit over trades.
func TotalProfit(trades []ClosedTrade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Profit)
	}
	return total
}
