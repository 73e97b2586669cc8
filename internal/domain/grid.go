package domain

import (
	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// decision reasons
const (
	ReasonNoPositions       = "no_positions"
	ReasonTargetNotReached  = "target_not_reached"
	ReasonTargetReached     = "target_reached"
	ReasonEmptyGrid         = "empty_grid"
	ReasonMaxStepsReached   = "max_steps_reached"
	ReasonDropNotReached    = "drop_not_reached"
	ReasonPriceDroppedBelow = "price_dropped_below_last_step"
)

// SellDecision is the result of take-profit evaluation.
type SellDecision struct {
	ShouldSell  bool
	Step        int
	TargetPrice decimal.Decimal
	Reason      string
}

// BuyDecision is the result of add-on evaluation.
type BuyDecision struct {
	ShouldBuy bool
	Step      int
	// ThresholdPrice is the price at or below which the add-on fires. Zero for the first step.
	ThresholdPrice decimal.Decimal
	Reason         string
}

// TakeProfitPrice returns entry*(1+targetRate).
func TakeProfitPrice(entry, targetRate decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Add(targetRate))
}

// AddOnPrice returns lastEntry*(1+dropRate).
func AddOnPrice(lastEntry, dropRate decimal.Decimal) decimal.Decimal {
	return lastEntry.Mul(decimal.NewFromInt(1).Add(dropRate))
}

// EvaluateTakeProfit walks positions by step descending and picks the first
// whose take-profit price is reached. First match wins, even when a lower
// step would realize more profit.
func EvaluateTakeProfit(positions []Position, price decimal.Decimal, cfg StrategyConfig) SellDecision {
	if len(positions) == 0 {
		return SellDecision{Reason: ReasonNoPositions}
	}

	ordered := make([]Position, len(positions))
	copy(ordered, positions)
	SortByStepDesc(ordered)

	for _, p := range ordered {
		target := TakeProfitPrice(p.EntryPrice, cfg.TargetRate)
		if price.GreaterThanOrEqual(target) {
			return SellDecision{
				ShouldSell:  true,
				Step:        p.Step,
				TargetPrice: target,
				Reason:      ReasonTargetReached,
			}
		}
	}

	return SellDecision{Reason: ReasonTargetNotReached}
}

// EvaluateAddOn decides whether to open the next grid step.
func EvaluateAddOn(positions []Position, price decimal.Decimal, cfg StrategyConfig) BuyDecision {
	if len(positions) == 0 {
		return BuyDecision{ShouldBuy: true, Step: 1, Reason: ReasonEmptyGrid}
	}

	latest := positions[0]
	for _, p := range positions[1:] {
		if p.Step > latest.Step {
			latest = p
		}
	}

	if latest.Step >= cfg.MaxSteps {
		return BuyDecision{Step: latest.Step, Reason: ReasonMaxStepsReached}
	}

	threshold := AddOnPrice(latest.EntryPrice, cfg.DropRate)
	if price.LessThanOrEqual(threshold) {
		return BuyDecision{
			ShouldBuy:      true,
			Step:           latest.Step + 1,
			ThresholdPrice: threshold,
			Reason:         ReasonPriceDroppedBelow,
		}
	}

	return BuyDecision{Step: latest.Step + 1, ThresholdPrice: threshold, Reason: ReasonDropNotReached}
}

// PercentageDiff returns percentage difference between current and reference values.
func PercentageDiff(current, reference decimal.Decimal) decimal.Decimal {
	if reference.IsZero() {
		return decimal.Zero
	}
	return current.Sub(reference).Div(reference).Mul(decimal.NewFromInt(percentageMultiplier))
}
