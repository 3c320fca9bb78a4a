package engine

import (
	"sort"
	"time"

	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/metrics"
)

// Candidate is one entry of the ranked buy list.
type Candidate struct {
	Ticker      string
	VolumeRatio float64
}

// Selector ranks breakout candidates by relative volume. Volume ratios are
// fetched only for tickers that pass the breakout filter, so a quiet tick
// costs no candle requests.
type Selector struct {
	gw   exchange.Gateway
	log  logger.Logger
	pace time.Duration // delay between per-ticker candle fetches
}

func NewSelector(gw exchange.Gateway, log logger.Logger, pace time.Duration) *Selector {
	return &Selector{gw: gw, log: log, pace: pace}
}

// Select returns the top-n buy candidates, volume ratio descending.
//
// Step 1 filters: price >= target, not blacklisted, and a valid (positive)
// target for this session. Step 2 ranks the survivors by volume ratio.
// Ties keep the watch-list order: the sort is stable over the Book's
// configured iteration order, which is the documented deterministic
// tie-break. Every qualifying ticker gets its 0-based rank cached on its
// state (the exit tiers key off it); only the top n are returned.
func (s *Selector) Select(book *Book, prices map[string]float64, n int) []Candidate {
	for _, t := range book.Tickers() {
		book.State(t).Rank = -1
	}

	var qualified []Candidate
	for _, t := range book.Tickers() {
		st := book.State(t)
		price, ok := prices[t]
		if !ok || st.Blacklisted || st.Target <= 0 || price < st.Target {
			continue
		}
		qualified = append(qualified, Candidate{Ticker: t, VolumeRatio: s.volumeRatio(t, st)})
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].VolumeRatio > qualified[j].VolumeRatio
	})
	for i, c := range qualified {
		book.State(c.Ticker).Rank = i
	}

	if len(qualified) > n {
		qualified = qualified[:n]
	}
	return qualified
}

func (s *Selector) volumeRatio(ticker string, st *TickerState) float64 {
	candles, err := s.gw.DayCandles(ticker, 10)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("volume").Inc()
		s.log.Warn("volume_fetch_failed", logger.String("ticker", ticker), logger.Err(err))
		st.VolumeRatio = 0
		return 0
	}
	st.VolumeRatio = VolumeRatio(candles)
	if s.pace > 0 {
		time.Sleep(s.pace)
	}
	return st.VolumeRatio
}
