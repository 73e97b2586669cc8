package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var btc = Pair{From: "BTC", To: "USDT"}

func mustPosition(t *testing.T, step int, price string) Position {
	t.Helper()
	p, err := NewPosition(btc, step, decimal.RequireFromString(price), decimal.NewFromInt(1), time.Now())
	require.NoError(t, err)
	return p
}

func testConfig() StrategyConfig {
	return StrategyConfig{
		Instrument: btc,
		TargetRate: decimal.RequireFromString("0.005"),
		DropRate:   decimal.RequireFromString("-0.01"),
		MaxSteps:   3,
	}
}

func TestEvaluateTakeProfit_NoPositions(t *testing.T) {
	decision := EvaluateTakeProfit(nil, decimal.NewFromInt(100), testConfig())

	require.False(t, decision.ShouldSell)
	require.Equal(t, ReasonNoPositions, decision.Reason)
}

func TestEvaluateTakeProfit_Threshold(t *testing.T) {
	positions := []Position{mustPosition(t, 1, "100")}

	below := EvaluateTakeProfit(positions, decimal.RequireFromString("100.49"), testConfig())
	require.False(t, below.ShouldSell)
	require.Equal(t, ReasonTargetNotReached, below.Reason)

	// 100 * 1.005 = 100.5
	at := EvaluateTakeProfit(positions, decimal.RequireFromString("100.5"), testConfig())
	require.True(t, at.ShouldSell)
	require.Equal(t, 1, at.Step)
	require.True(t, at.TargetPrice.Equal(decimal.RequireFromString("100.5")))
}

func TestEvaluateTakeProfit_HighestStepFirst(t *testing.T) {
	// every step is in profit at 200; the highest step must win.
	positions := []Position{
		mustPosition(t, 1, "100"),
		mustPosition(t, 3, "98"),
		mustPosition(t, 2, "99"),
	}

	decision := EvaluateTakeProfit(positions, decimal.NewFromInt(200), testConfig())

	require.True(t, decision.ShouldSell)
	require.Equal(t, 3, decision.Step)
	require.Equal(t, 1, positions[0].Step, "input order must not be modified")
}

func TestEvaluateTakeProfit_SkipsUnprofitableHigherStep(t *testing.T) {
	positions := []Position{
		mustPosition(t, 1, "90"),
		mustPosition(t, 2, "120"),
	}

	decision := EvaluateTakeProfit(positions, decimal.NewFromInt(100), testConfig())

	require.True(t, decision.ShouldSell)
	require.Equal(t, 1, decision.Step)
}

func TestEvaluateAddOn(t *testing.T) {
	tests := []struct {
		name      string
		positions []Position
		price     string
		shouldBuy bool
		step      int
		reason    string
	}{
		{
			name:      "empty grid opens step 1",
			positions: nil,
			price:     "100",
			shouldBuy: true,
			step:      1,
			reason:    ReasonEmptyGrid,
		},
		{
			name:      "price at drop threshold",
			positions: []Position{mustPosition(t, 1, "100")},
			price:     "99",
			shouldBuy: true,
			step:      2,
			reason:    ReasonPriceDroppedBelow,
		},
		{
			name:      "price above drop threshold",
			positions: []Position{mustPosition(t, 1, "100")},
			price:     "99.5",
			shouldBuy: false,
			step:      2,
			reason:    ReasonDropNotReached,
		},
		{
			name:      "threshold uses latest step entry",
			positions: []Position{mustPosition(t, 2, "90"), mustPosition(t, 1, "100")},
			price:     "95",
			shouldBuy: false,
			step:      3,
			reason:    ReasonDropNotReached,
		},
		{
			name: "max steps reached",
			positions: []Position{
				mustPosition(t, 1, "100"),
				mustPosition(t, 2, "99"),
				mustPosition(t, 3, "98"),
			},
			price:     "1",
			shouldBuy: false,
			step:      3,
			reason:    ReasonMaxStepsReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := EvaluateAddOn(tt.positions, decimal.RequireFromString(tt.price), testConfig())
			require.Equal(t, tt.shouldBuy, decision.ShouldBuy)
			require.Equal(t, tt.step, decision.Step)
			require.Equal(t, tt.reason, decision.Reason)
		})
	}
}

func TestPercentageDiff(t *testing.T) {
	require.True(t, PercentageDiff(decimal.NewFromInt(110), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(10)))
	require.True(t, PercentageDiff(decimal.NewFromInt(90), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(-10)))
	require.True(t, PercentageDiff(decimal.NewFromInt(90), decimal.Zero).IsZero())
}
