package internal

import (
	"fmt"

	"github.com/vadiminshakov/gridsim/config"
	"github.com/vadiminshakov/gridsim/internal/clients"
	"github.com/vadiminshakov/gridsim/internal/services/pricer"
)

// NewPricer returns the price feed for platform. All feeds use public
// market-data endpoints and need no credentials.
func NewPricer(platform, hyperliquidURL string) (pricer.Pricer, error) {
	switch platform {
	case config.PlatformBinance, "":
		return pricer.NewBinancePricer(clients.NewBinanceClient()), nil
	case config.PlatformBybit:
		return pricer.NewBybitPricer(clients.NewBybitClient()), nil
	case config.PlatformHyperliquid:
		c, err := clients.NewHyperliquidClient("", hyperliquidURL)
		if err != nil {
			return nil, err
		}
		return pricer.NewHyperliquidPricer(c.Info()), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
}
