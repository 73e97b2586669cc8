package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// defaults for newly added instruments and for malformed persisted rows.
var (
	DefaultTargetRate = decimal.RequireFromString("0.005")
	DefaultDropRate   = decimal.RequireFromString("-0.01")
)

const DefaultMaxSteps = 30

// StrategyConfig holds the grid parameters of one instrument.
type StrategyConfig struct {
	Instrument Pair            `json:"instrument" yaml:"instrument"`
	TargetRate decimal.Decimal `json:"target_rate" yaml:"target_rate"`
	DropRate   decimal.Decimal `json:"drop_rate" yaml:"drop_rate"`
	MaxSteps   int             `json:"max_steps" yaml:"max_steps"`
}

// DefaultStrategyConfig returns the default grid parameters for the instrument.
func DefaultStrategyConfig(instrument Pair) StrategyConfig {
	return StrategyConfig{
		Instrument: instrument,
		TargetRate: DefaultTargetRate,
		DropRate:   DefaultDropRate,
		MaxSteps:   DefaultMaxSteps,
	}
}

// NewStrategyConfig creates a validated StrategyConfig.
func NewStrategyConfig(instrument Pair, targetRate, dropRate decimal.Decimal, maxSteps int) (StrategyConfig, error) {
	cfg := StrategyConfig{
		Instrument: instrument,
		TargetRate: targetRate,
		DropRate:   dropRate,
		MaxSteps:   maxSteps,
	}
	if err := cfg.Validate(); err != nil {
		return StrategyConfig{}, err
	}
	return cfg, nil
}

// Validate checks the config invariants.
func (c StrategyConfig) Validate() error {
	minusOne := decimal.NewFromInt(-1)
	if c.Instrument.IsZero() {
		return fmt.Errorf("instrument is required")
	}
	if c.TargetRate.LessThanOrEqual(minusOne) {
		return fmt.Errorf("targetRate must be greater than -1, got %s", c.TargetRate.String())
	}
	if c.DropRate.LessThanOrEqual(minusOne) {
		return fmt.Errorf("dropRate must be greater than -1, got %s", c.DropRate.String())
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("maxSteps must be >= 1, got %d", c.MaxSteps)
	}
	return nil
}

// String renders rates as percentages, e.g. "BTC_USDT target 0.50% / drop -1.00% / max 30".
func (c StrategyConfig) String() string {
	hundred := decimal.NewFromInt(percentageMultiplier)
	return fmt.Sprintf("%s target %s%% / drop %s%% / max %d",
		c.Instrument.String(),
		c.TargetRate.Mul(hundred).StringFixed(2),
		c.DropRate.Mul(hundred).StringFixed(2),
		c.MaxSteps)
}
