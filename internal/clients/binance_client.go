// Package clients builds exchange SDK clients for public market data.
package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a client without API keys; price endpoints are public.
func NewBinanceClient() *binance.Client {
	return binance.NewClient("", "")
}
