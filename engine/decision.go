package engine

import (
	"math"
	"time"

	"github.com/evdnx/govb/config"
	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/metrics"
)

// BudgetPerCoin splits the available cash evenly across the remaining
// position slots. Zero when every slot is taken (or oversubscribed).
func BudgetPerCoin(krwBalance float64, parallelPositions, heldCount int) float64 {
	free := parallelPositions - heldCount
	if free <= 0 {
		return 0
	}
	return math.Floor(krwBalance / float64(free))
}

// exitThreshold is the tiered take-profit gain for a candidate's volume
// rank. Tighter thresholds for higher-ranked (more liquid) candidates.
func exitThreshold(rank int) float64 {
	switch {
	case rank < 1:
		return 0.005
	case rank < 5:
		return 0.01
	case rank < 10:
		return 0.015
	default:
		return 0.10
	}
}

// Decider executes the per-tick buy and sell decisions against the book.
// All order failures are logged and left for the next tick's re-evaluation;
// the decision functions are idempotent, so the next tick is the retry.
type Decider struct {
	gw   exchange.Gateway
	log  logger.Logger
	cfg  config.Config
	pace time.Duration // delay between consecutive order submissions
}

func NewDecider(gw exchange.Gateway, log logger.Logger, cfg config.Config, pace time.Duration) *Decider {
	return &Decider{gw: gw, log: log, cfg: cfg, pace: pace}
}

// Buy walks the ranked candidates in order and market-buys every one that
// is not already held, spending the fee-adjusted per-coin budget. With
// StrictEntry enabled the richer gate applies on top: positive volume
// ratio, price at or above the daily high, and the high within 2% of the
// target.
func (d *Decider) Buy(book *Book, candidates []Candidate, prices map[string]float64, budget float64) {
	if budget <= 0 {
		return
	}
	spend := budget - budget*d.cfg.FeeRate

	for _, c := range candidates {
		st := book.State(c.Ticker)
		price, ok := prices[c.Ticker]
		if st == nil || !ok || st.Held() {
			continue
		}
		if d.cfg.StrictEntry {
			if c.VolumeRatio <= 0 || price < st.DailyHigh || st.DailyHigh >= st.Target*1.02 {
				continue
			}
		}

		if err := d.gw.MarketBuy(c.Ticker, spend); err != nil {
			d.log.Error("buy_failed", logger.String("ticker", c.Ticker), logger.Err(err))
			continue
		}
		metrics.OrdersSubmitted.WithLabelValues("market_buy").Inc()
		d.log.Info("buy_submitted",
			logger.String("ticker", c.Ticker),
			logger.Float64("krw", spend),
			logger.Float64("price", price),
			logger.Float64("volume_ratio", c.VolumeRatio),
		)
		if d.pace > 0 {
			time.Sleep(d.pace)
		}
	}
}

// EvaluateExits runs the tiered trailing stop over the ranked candidates
// that are currently held. A firing tier sells the full position at market
// and blacklists the ticker until the next reset (or periodic wipe).
//
// The span and close values are carried into the evaluation and logged but
// gate nothing; the levels are kept flowing for the day the strategy
// starts branching on them.
func (d *Decider) EvaluateExits(book *Book, candidates []Candidate, prices map[string]float64) {
	for _, c := range candidates {
		st := book.State(c.Ticker)
		price, ok := prices[c.Ticker]
		if st == nil || !ok || !st.Held() || st.Target <= 0 {
			continue
		}

		gain := (price - st.Target) / st.Target
		if gain < exitThreshold(st.Rank) {
			continue
		}

		ascent := 0.0
		if st.OpeningReference > 0 {
			ascent = (price - st.OpeningReference) / st.OpeningReference
		}
		gapFromHigh := 0.0
		if st.DailyHigh > 0 {
			gapFromHigh = 1 - price/st.DailyHigh
		}

		if err := d.sellAll(c.Ticker, st); err != nil {
			continue
		}
		st.Blacklisted = true
		d.log.Info("take_profit_exit",
			logger.String("ticker", c.Ticker),
			logger.Int("rank", st.Rank),
			logger.Float64("gain", gain),
			logger.Float64("ascent", ascent),
			logger.Float64("gap_from_high", gapFromHigh),
			logger.Float64("span_a", st.SpanA),
			logger.Float64("span_b", st.SpanB),
		)
	}
}

// StopLoss is the unconditional exit path, independent of ranking: every
// held watched ticker that fell out of the candidate portfolio, or whose
// gain breached the stop-loss threshold, is sold in full. No blacklisting;
// the ticker may be re-entered the moment it qualifies again.
func (d *Decider) StopLoss(book *Book, candidates []Candidate, prices map[string]float64) {
	inPortfolio := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		inPortfolio[c.Ticker] = true
	}

	for _, t := range book.Tickers() {
		st := book.State(t)
		if !st.Held() {
			continue
		}
		price, ok := prices[t]
		if !ok {
			continue
		}

		gain := 0.0
		if st.Target > 0 {
			gain = (price - st.Target) / st.Target
		}
		if inPortfolio[t] && gain > d.cfg.StopLossPct {
			continue
		}

		if err := d.sellAll(t, st); err != nil {
			continue
		}
		d.log.Info("stop_loss_exit",
			logger.String("ticker", t),
			logger.Float64("gain", gain),
			logger.Bool("in_portfolio", inPortfolio[t]),
		)
	}
}

func (d *Decider) sellAll(ticker string, st *TickerState) error {
	qty := st.HeldQty
	if err := d.gw.MarketSell(ticker, qty); err != nil {
		d.log.Error("sell_failed", logger.String("ticker", ticker), logger.Err(err))
		return err
	}
	metrics.OrdersSubmitted.WithLabelValues("market_sell").Inc()
	st.HeldQty = 0
	if d.pace > 0 {
		time.Sleep(d.pace)
	}
	return nil
}
