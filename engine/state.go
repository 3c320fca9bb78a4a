package engine

import (
	"strings"

	"github.com/evdnx/govb/types"
)

// TickerState is the per-ticker mutable state for one trading session. The
// Book owns all instances; nothing outside the engine mutates them.
type TickerState struct {
	// Recomputed once per session and constant between resets.
	OpeningReference float64
	Target           float64
	SpanA, SpanB     float64

	// Refreshed on every tick.
	VolumeRatio float64
	DailyHigh   float64 // monotone within a session, zeroed at reset
	HeldQty     float64 // derived from the balance query, never owned here
	Rank        int     // 0-based volume rank; -1 when unranked this tick

	// Set on a take-profit exit, cleared by session reset or the periodic
	// blacklist wipe. Blocks re-entry while true.
	Blacklisted bool
}

// Held reports whether the exchange balance for this ticker is positive.
func (s *TickerState) Held() bool { return s.HeldQty > 0 }

// Book is the engine-owned state for every watched ticker. It replaces the
// ambient global maps of the original script with a single explicit owner.
type Book struct {
	order  []string
	states map[string]*TickerState
}

func NewBook(tickers []string) *Book {
	b := &Book{
		order:  append([]string(nil), tickers...),
		states: make(map[string]*TickerState, len(tickers)),
	}
	for _, t := range b.order {
		b.states[t] = &TickerState{Rank: -1}
	}
	return b
}

// Tickers returns the watch-list in its configured order.
func (b *Book) Tickers() []string {
	return append([]string(nil), b.order...)
}

// State returns the state for a watched ticker, nil for unknown tickers.
func (b *Book) State(ticker string) *TickerState {
	return b.states[ticker]
}

// UpdateHighs raises each ticker's daily high to the current price where it
// exceeds the stored value. Highs never move down between resets.
func (b *Book) UpdateHighs(prices map[string]float64) {
	for _, t := range b.order {
		if p, ok := prices[t]; ok && p > b.states[t].DailyHigh {
			b.states[t].DailyHigh = p
		}
	}
}

// SetHoldings maps a balance query onto the watch-list. Balance rows carry
// bare currency codes; watched tickers are quote-qualified ("KRW-XRP"), so
// each row is requalified before lookup.
func (b *Book) SetHoldings(balances []types.Balance) {
	for _, t := range b.order {
		b.states[t].HeldQty = 0
	}
	for _, bal := range balances {
		if bal.Currency == "KRW" {
			continue
		}
		t := "KRW-" + strings.ToUpper(bal.Currency)
		if st, ok := b.states[t]; ok {
			st.HeldQty = bal.Amount
		}
	}
}

// HeldCount returns how many watched tickers currently have a positive
// balance; it feeds the per-coin budget split.
func (b *Book) HeldCount() int {
	n := 0
	for _, t := range b.order {
		if b.states[t].Held() {
			n++
		}
	}
	return n
}

// ResetSession clears everything a new trading day invalidates: blacklist
// flags, daily highs, rank cache and volume ratios. Targets and spans are
// left alone; the scheduler repopulates them right after.
func (b *Book) ResetSession() {
	for _, t := range b.order {
		st := b.states[t]
		st.Blacklisted = false
		st.DailyHigh = 0
		st.Rank = -1
		st.VolumeRatio = 0
	}
}

// ClearBlacklist drops every re-entry block. Called by the periodic wipe,
// which runs at the same serialization point as tick processing.
func (b *Book) ClearBlacklist() {
	for _, t := range b.order {
		b.states[t].Blacklisted = false
	}
}

// BlacklistedCount feeds the blacklist gauge.
func (b *Book) BlacklistedCount() int {
	n := 0
	for _, t := range b.order {
		if b.states[t].Blacklisted {
			n++
		}
	}
	return n
}
