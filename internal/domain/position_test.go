package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p, err := NewPosition(btc, 1, decimal.NewFromInt(100), decimal.NewFromInt(60), at)
	require.NoError(t, err)
	assert.True(t, p.Notional().Equal(decimal.NewFromInt(6000)))
	assert.True(t, p.ChangePercent(decimal.NewFromInt(99)).Equal(decimal.NewFromInt(-1)))

	tests := []struct {
		name       string
		instrument Pair
		step       int
		price, qty decimal.Decimal
	}{
		{"no instrument", Pair{}, 1, decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"step zero", btc, 0, decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"zero price", btc, 1, decimal.Zero, decimal.NewFromInt(1)},
		{"negative quantity", btc, 1, decimal.NewFromInt(1), decimal.NewFromInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPosition(tt.instrument, tt.step, tt.price, tt.qty, at)
			require.Error(t, err)
		})
	}
}

func TestSortBySteps(t *testing.T) {
	positions := []Position{{Step: 2}, {Step: 3}, {Step: 1}}

	SortByStepDesc(positions)
	assert.Equal(t, []int{3, 2, 1}, steps(positions))

	SortByStepAsc(positions)
	assert.Equal(t, []int{1, 2, 3}, steps(positions))
}

func TestTickReportString(t *testing.T) {
	positions := []Position{
		{Instrument: btc, Step: 2, EntryPrice: decimal.RequireFromString("99"), Quantity: decimal.NewFromInt(1)},
		{Instrument: btc, Step: 1, EntryPrice: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)},
	}
	r := TickReport{
		Instrument:        btc,
		Price:             decimal.NewFromInt(99),
		Cash:              decimal.NewFromInt(987994),
		Running:           true,
		ThrottleRemaining: 1500 * time.Millisecond,
		Positions:         NewPositionViews(positions, decimal.NewFromInt(99)),
		RealizedProfit:    decimal.Zero,
	}

	require.Len(t, r.Positions, 2)
	assert.Equal(t, 1, r.Positions[0].Step)

	out := r.String()
	assert.Contains(t, out, "[BTC_USDT] price: 99.00 | cash: 987994")
	assert.Contains(t, out, "throttle: 1.5s")
	assert.Contains(t, out, "-1.00%")
	assert.Contains(t, out, "+0.00%")
}

func TestTotalProfit(t *testing.T) {
	trades := []ClosedTrade{
		{Instrument: btc, Step: 1, Profit: decimal.RequireFromString("23.985")},
		{Instrument: btc, Step: 2, Profit: decimal.NewFromInt(-6)},
	}
	assert.Equal(t, "17.985", TotalProfit(trades).String())
	assert.True(t, TotalProfit(nil).IsZero())
}

func steps(positions []Position) []int {
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Step)
	}
	return out
}
