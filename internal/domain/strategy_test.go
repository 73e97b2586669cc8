package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategyConfig_Validation(t *testing.T) {
	tests := []struct {
		name       string
		instrument Pair
		target     string
		drop       string
		maxSteps   int
		errMsg     string
	}{
		{name: "valid", instrument: btc, target: "0.005", drop: "-0.01", maxSteps: 30},
		{name: "missing instrument", target: "0.005", drop: "-0.01", maxSteps: 30, errMsg: "instrument is required"},
		{name: "target at -1", instrument: btc, target: "-1", drop: "-0.01", maxSteps: 30, errMsg: "targetRate"},
		{name: "drop below -1", instrument: btc, target: "0.005", drop: "-1.5", maxSteps: 30, errMsg: "dropRate"},
		{name: "zero max steps", instrument: btc, target: "0.005", drop: "-0.01", maxSteps: 0, errMsg: "maxSteps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewStrategyConfig(tt.instrument, decimal.RequireFromString(tt.target), decimal.RequireFromString(tt.drop), tt.maxSteps)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.maxSteps, cfg.MaxSteps)
		})
	}
}

func TestDefaultStrategyConfig(t *testing.T) {
	cfg := DefaultStrategyConfig(btc)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "BTC_USDT target 0.50% / drop -1.00% / max 30", cfg.String())
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("  btc_usdt ")
	require.NoError(t, err)
	assert.Equal(t, btc, pair)
	assert.Equal(t, "BTCUSDT", pair.Symbol())

	_, err = ParsePair("BTCUSDT")
	require.Error(t, err)

	_, err = ParsePair("BTC_")
	require.Error(t, err)
}

func TestPair_TextRoundTrip(t *testing.T) {
	text, err := btc.MarshalText()
	require.NoError(t, err)

	var decoded Pair
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, btc, decoded)
}
