package exchange

import (
	"github.com/evdnx/govb/logger"
)

// DryRun passes every market data call through to the wrapped gateway and
// swallows order submissions, logging what would have been sent. This is the
// default mode: live trading has to be switched on explicitly.
type DryRun struct {
	Gateway
	log logger.Logger
}

func NewDryRun(gw Gateway, log logger.Logger) *DryRun {
	return &DryRun{Gateway: gw, log: log}
}

func (d *DryRun) MarketBuy(ticker string, krwAmount float64) error {
	d.log.Info("dry_run_market_buy",
		logger.String("ticker", ticker),
		logger.Float64("krw", krwAmount),
	)
	return nil
}

func (d *DryRun) MarketSell(ticker string, qty float64) error {
	d.log.Info("dry_run_market_sell",
		logger.String("ticker", ticker),
		logger.Float64("qty", qty),
	)
	return nil
}

func (d *DryRun) LimitSell(ticker string, price, qty float64) error {
	d.log.Info("dry_run_limit_sell",
		logger.String("ticker", ticker),
		logger.Float64("price", price),
		logger.Float64("qty", qty),
	)
	return nil
}
