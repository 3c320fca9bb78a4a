package engine

import (
	"context"
	"time"

	"github.com/evdnx/govb/config"
	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/ichimoku"
	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/metrics"
	"github.com/evdnx/govb/types"
)

// Trader is the single logical thread of control: one polling loop that
// owns every piece of shared state. The periodic blacklist wipe is just
// another event processed inside Tick, at the same serialization point as
// everything else, so no writer ever races the take-profit path.
type Trader struct {
	cfg       config.Config
	gw        exchange.Gateway
	log       logger.Logger
	book      *Book
	selector  *Selector
	decider   *Decider
	scheduler *Scheduler

	lastBlacklistWipe time.Time
}

func NewTrader(cfg config.Config, gw exchange.Gateway, spans ichimoku.SpanProvider, log logger.Logger) *Trader {
	return &Trader{
		cfg:               cfg,
		gw:                gw,
		log:               log,
		book:              NewBook(cfg.WatchedTickers),
		selector:          NewSelector(gw, log, fetchPace),
		decider:           NewDecider(gw, log, cfg, cfg.PollInterval()),
		scheduler:         NewScheduler(gw, spans, log, cfg.KFactor, cfg.SettleDelay()),
		lastBlacklistWipe: time.Now(),
	}
}

// Book exposes the engine state for inspection; callers must not retain it
// across ticks.
func (t *Trader) Book() *Book { return t.book }

// Run performs the startup setup (windows, targets, spans, seeded highs —
// never a sell) and then ticks until the context is cancelled. In-flight
// exchange calls are not interrupted; cancellation takes effect between
// iterations.
func (t *Trader) Run(ctx context.Context) error {
	t.scheduler.Setup(time.Now(), t.book)
	t.seedHighs()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("trader_stopped")
			return ctx.Err()
		case <-time.After(t.cfg.PollInterval()):
		}
		t.Tick(time.Now())
	}
}

// Tick processes one polling iteration at the given instant. Every phase
// recovers from its own failures; nothing here aborts the loop.
func (t *Trader) Tick(now time.Time) {
	metrics.TicksProcessed.Inc()

	// Scheduled event: periodic blacklist wipe.
	if now.Sub(t.lastBlacklistWipe) >= t.cfg.BlacklistResetInterval() {
		t.book.ClearBlacklist()
		t.lastBlacklistWipe = now
		t.log.Info("blacklist_cleared", logger.Time("at", now))
	}

	// Session boundary: full reset instead of a trading tick.
	if t.scheduler.InResetWindow(now) {
		t.scheduler.Reset(now, t.book)
		return
	}

	prices, err := t.gw.CurrentPrices(t.book.Tickers())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("prices").Inc()
		t.log.Warn("price_fetch_failed", logger.Err(err))
		return
	}
	t.book.UpdateHighs(prices)

	candidates := t.selector.Select(t.book, prices, t.cfg.ParallelPositions)

	balances, err := t.gw.Balances()
	if err != nil {
		metrics.FetchErrors.WithLabelValues("balances").Inc()
		t.log.Warn("balance_fetch_failed", logger.Err(err))
		return
	}
	t.book.SetHoldings(balances)

	budget := BudgetPerCoin(krwBalance(balances), t.cfg.ParallelPositions, t.book.HeldCount())
	metrics.BudgetPerCoin.Set(budget)

	// Buys run first, against the pre-buy holdings snapshot; the exits
	// below see the same snapshot, so a position opened this tick is not
	// flipped until the next iteration re-derives holdings.
	t.decider.Buy(t.book, candidates, prices, budget)
	t.decider.EvaluateExits(t.book, candidates, prices)
	t.decider.StopLoss(t.book, candidates, prices)

	metrics.BlacklistSize.Set(float64(t.book.BlacklistedCount()))
}

// seedHighs primes the daily highs from today's candle at process start.
// Mid-session restarts would otherwise begin with highs at zero and
// misreport the gap from the high until enough prices stream in.
func (t *Trader) seedHighs() {
	for _, ticker := range t.book.Tickers() {
		candles, err := t.gw.DayCandles(ticker, 10)
		if err != nil || len(candles) == 0 {
			metrics.FetchErrors.WithLabelValues("candles").Inc()
			t.log.Warn("high_seed_failed", logger.String("ticker", ticker), logger.Err(err))
			continue
		}
		t.book.State(ticker).DailyHigh = candles[len(candles)-1].High
	}
}

func krwBalance(balances []types.Balance) float64 {
	for _, b := range balances {
		if b.Currency == "KRW" {
			return b.Amount
		}
	}
	return 0
}
