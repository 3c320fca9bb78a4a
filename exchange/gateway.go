// Package exchange defines the market-data/order gateway the trading engine
// talks to. The engine never imports a concrete exchange client; it accepts
// this interface and the process wiring decides what stands behind it.
package exchange

import (
	"github.com/evdnx/govb/types"
)

// Gateway bundles every exchange call the loop makes. All methods are
// synchronous; callers own pacing and error recovery.
type Gateway interface {
	// CurrentPrices returns the last trade price per requested ticker.
	CurrentPrices(tickers []string) (map[string]float64, error)

	// DayCandles returns up to count daily OHLCV bars, oldest first.
	DayCandles(ticker string, count int) ([]types.Candle, error)

	// OrderBookTop returns the best bid level.
	OrderBookTop(ticker string) (types.OrderBookLevel, error)

	// Balances returns every non-zero account balance, quote currency
	// included.
	Balances() ([]types.Balance, error)

	// MarketBuy spends krwAmount at market.
	MarketBuy(ticker string, krwAmount float64) error

	// MarketSell sells qty of the base asset at market.
	MarketSell(ticker string, qty float64) error

	// LimitSell places a resting ask. A non-nil error means the order was
	// not accepted; callers fall back to MarketSell.
	LimitSell(ticker string, price, qty float64) error
}
