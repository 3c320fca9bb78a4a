package engine

import (
	"time"

	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/ichimoku"
	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/metrics"
)

// The exchange settles the daily candle at 09:00 KST; the reset window
// opens one minute later to let the first candle data land.
const (
	resetHour     = 9
	resetMinute   = 1
	resetDuration = 20 * time.Second

	// Fetch pacing during a reset, matching the exchange rate limit.
	fetchPace = 100 * time.Millisecond
)

// Session holds the derived time windows of one trading day. A new Session
// replaces the old one at every detected boundary crossing.
type Session struct {
	// Reset windows, evaluated against both today and tomorrow; the
	// tomorrow window guards the midnight rollover while the loop runs.
	SellStart, SellEnd   time.Time
	SetupStart, SetupEnd time.Time

	// Afternoon volume window start.
	VolumeTime time.Time

	// Portfolio check windows (09:30 and 13:30, ten seconds each).
	MorningCheckStart, MorningCheckEnd     time.Time
	AfternoonCheckStart, AfternoonCheckEnd time.Time
}

// NewSession derives every window from the current instant's calendar day.
func NewSession(now time.Time) Session {
	at := func(day time.Time, hour, min, sec int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, min, sec, 0, day.Location())
	}
	tomorrow := now.AddDate(0, 0, 1)

	s := Session{}
	s.SellStart = at(now, resetHour, resetMinute, 0)
	s.SellEnd = s.SellStart.Add(resetDuration)
	s.SetupStart = at(tomorrow, resetHour, resetMinute, 0)
	s.SetupEnd = s.SetupStart.Add(resetDuration)
	s.VolumeTime = at(now, 13, 0, 0)
	s.MorningCheckStart = at(now, 9, 30, 0)
	s.MorningCheckEnd = s.MorningCheckStart.Add(10 * time.Second)
	s.AfternoonCheckStart = at(now, 13, 30, 0)
	s.AfternoonCheckEnd = s.AfternoonCheckStart.Add(10 * time.Second)
	return s
}

// InResetWindow reports whether now falls in [start, end) of either the
// today or the tomorrow reset window.
func (s Session) InResetWindow(now time.Time) bool {
	in := func(start, end time.Time) bool {
		return !now.Before(start) && now.Before(end)
	}
	return in(s.SellStart, s.SellEnd) || in(s.SetupStart, s.SetupEnd)
}

// Scheduler tracks the session boundaries and performs the full daily
// reset. It is driven synchronously from the trader loop; it never runs
// concurrently with tick processing.
type Scheduler struct {
	gw      exchange.Gateway
	spans   ichimoku.SpanProvider
	log     logger.Logger
	kFactor float64
	pace    time.Duration
	settle  time.Duration

	session Session
}

func NewScheduler(gw exchange.Gateway, spans ichimoku.SpanProvider, log logger.Logger,
	kFactor float64, settle time.Duration) *Scheduler {
	return &Scheduler{
		gw:      gw,
		spans:   spans,
		log:     log,
		kFactor: kFactor,
		pace:    fetchPace,
		settle:  settle,
		session: NewSession(time.Now()),
	}
}

// Session returns the currently active window set.
func (sc *Scheduler) Session() Session { return sc.session }

// InResetWindow reports whether now crosses a session boundary.
func (sc *Scheduler) InResetWindow(now time.Time) bool {
	return sc.session.InResetWindow(now)
}

// Setup prepares a fresh process without touching positions: the day's
// windows are computed and targets and spans refreshed, but nothing is sold,
// the blacklist is left alone and no settle delay applies. The full Reset is
// reserved for boundary crossings; a mid-session restart must not liquidate
// whatever the account already holds.
func (sc *Scheduler) Setup(now time.Time, book *Book) {
	sc.log.Info("session_setup", logger.Time("at", now))
	sc.session = NewSession(now)
	sc.refreshTargets(book)
	sc.refreshSpans(book)
}

// Reset handles a session boundary:
//
//  1. final sell attempt for every outstanding balance (resting limit at
//     the best bid, market fallback),
//  2. recompute the day's windows from now,
//  3. recompute opening reference / target and refresh spans per ticker,
//  4. clear blacklist, daily highs and the rank cache,
//  5. settle delay so the same window is not re-entered.
//
// Every step degrades independently; a failed fetch leaves the ticker
// skipped for the session rather than aborting the reset. Triggering Reset
// twice inside one window changes nothing beyond the re-fetch.
func (sc *Scheduler) Reset(now time.Time, book *Book) {
	sc.log.Info("session_reset_start", logger.Time("at", now))
	metrics.SessionResets.Inc()

	sc.finalSell(book)

	sc.session = NewSession(now)
	sc.log.Info("session_windows",
		logger.Time("sell_start", sc.session.SellStart),
		logger.Time("setup_start", sc.session.SetupStart),
		logger.Time("volume_time", sc.session.VolumeTime),
		logger.Time("morning_check", sc.session.MorningCheckStart),
		logger.Time("afternoon_check", sc.session.AfternoonCheckStart),
	)

	book.ResetSession()
	sc.refreshTargets(book)
	sc.refreshSpans(book)

	sc.log.Info("session_reset_done")
	if sc.settle > 0 {
		time.Sleep(sc.settle)
	}
}

// finalSell flushes every outstanding position before the new session:
// a limit order at the best bid for the matchable size, falling back to a
// market order for the full quantity when the limit order is rejected.
func (sc *Scheduler) finalSell(book *Book) {
	balances, err := sc.gw.Balances()
	if err != nil {
		metrics.FetchErrors.WithLabelValues("balances").Inc()
		sc.log.Error("final_sell_balance_failed", logger.Err(err))
		return
	}
	book.SetHoldings(balances)

	for _, t := range book.Tickers() {
		st := book.State(t)
		if !st.Held() {
			continue
		}
		top, err := sc.gw.OrderBookTop(t)
		if err != nil {
			metrics.FetchErrors.WithLabelValues("orderbook").Inc()
			sc.log.Error("final_sell_book_failed", logger.String("ticker", t), logger.Err(err))
			continue
		}
		qty := st.HeldQty
		if top.BidSize < qty {
			qty = top.BidSize
		}
		if err := sc.gw.LimitSell(t, top.BidPrice, qty); err != nil {
			sc.log.Warn("final_limit_sell_failed",
				logger.String("ticker", t), logger.Err(err))
			if err := sc.gw.MarketSell(t, st.HeldQty); err != nil {
				sc.log.Error("final_market_sell_failed",
					logger.String("ticker", t), logger.Err(err))
				continue
			}
			metrics.OrdersSubmitted.WithLabelValues("market_sell").Inc()
		} else {
			metrics.OrdersSubmitted.WithLabelValues("limit_sell").Inc()
		}
		st.HeldQty = 0
		if sc.pace > 0 {
			time.Sleep(sc.pace)
		}
	}
}

func (sc *Scheduler) refreshTargets(book *Book) {
	for _, t := range book.Tickers() {
		st := book.State(t)
		candles, err := sc.gw.DayCandles(t, 10)
		if err != nil {
			metrics.FetchErrors.WithLabelValues("candles").Inc()
			sc.log.Error("target_fetch_failed", logger.String("ticker", t), logger.Err(err))
			st.OpeningReference, st.Target = 0, 0
			continue
		}
		open, target, err := Targets(candles, sc.kFactor)
		if err != nil {
			sc.log.Error("target_calc_failed", logger.String("ticker", t), logger.Err(err))
			st.OpeningReference, st.Target = 0, 0
			continue
		}
		st.OpeningReference, st.Target = open, target
		sc.log.Info("target_set",
			logger.String("ticker", t),
			logger.Float64("open", open),
			logger.Float64("target", target),
		)
		if sc.pace > 0 {
			time.Sleep(sc.pace)
		}
	}
}

func (sc *Scheduler) refreshSpans(book *Book) {
	for _, t := range book.Tickers() {
		st := book.State(t)
		st.SpanA, st.SpanB = sc.spans.Spans(t)
		if sc.pace > 0 {
			time.Sleep(sc.pace)
		}
	}
}
