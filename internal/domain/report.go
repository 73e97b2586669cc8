package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PositionView is an open position as seen at the current price.
type PositionView struct {
	Step          int             `json:"step"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// TickReport is the per-tick status of one instrument engine.
type TickReport struct {
	Instrument        Pair            `json:"instrument"`
	Time              time.Time       `json:"ts"`
	Price             decimal.Decimal `json:"price"`
	Cash              decimal.Decimal `json:"cash"`
	Running           bool            `json:"running"`
	ThrottleRemaining time.Duration   `json:"throttle_remaining"`
	Positions         []PositionView  `json:"positions"`
	RealizedProfit    decimal.Decimal `json:"realized_profit"`
	RecentTrades      []ClosedTrade   `json:"recent_trades,omitempty"`
}

// NewPositionViews builds step-ascending views of positions at price.
func NewPositionViews(positions []Position, price decimal.Decimal) []PositionView {
	ordered := make([]Position, len(positions))
	copy(ordered, positions)
	SortByStepAsc(ordered)

	views := make([]PositionView, 0, len(ordered))
	for _, p := range ordered {
		views = append(views, PositionView{
			Step:          p.Step,
			EntryPrice:    p.EntryPrice,
			Quantity:      p.Quantity,
			ChangePercent: p.ChangePercent(price),
		})
	}
	return views
}

// String renders the report as a compact multi-line status block.
func (r TickReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] price: %s | cash: %s | realized: %s\n",
		r.Instrument.String(), r.Price.StringFixed(2), r.Cash.StringFixed(0), r.RealizedProfit.StringFixed(0))
	if r.Running && r.ThrottleRemaining > 0 {
		fmt.Fprintf(&b, "  throttle: %.1fs\n", r.ThrottleRemaining.Seconds())
	}
	for _, p := range r.Positions {
		fmt.Fprintf(&b, "  [%2d] %12s | %7s%%\n", p.Step, p.EntryPrice.StringFixed(1), signed(p.ChangePercent.StringFixed(2)))
	}

	return strings.TrimRight(b.String(), "\n")
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}
