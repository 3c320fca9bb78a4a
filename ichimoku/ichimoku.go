// Package ichimoku computes the two Ichimoku leading spans from daily
// candles. The engine only consumes the pair of numbers; the full cloud is
// never materialized.
package ichimoku

import (
	"fmt"

	"github.com/evdnx/govb/exchange"
	"github.com/evdnx/govb/logger"
	"github.com/evdnx/govb/types"
)

// Standard Ichimoku periods and the forward displacement of the spans.
const (
	tenkanPeriod = 9
	kijunPeriod  = 26
	spanBPeriod  = 52
	displacement = 26

	// CandleWindow is how many daily bars the provider fetches; enough
	// for span B's 52-bar window displaced 26 bars back.
	CandleWindow = 100
)

// SpanProvider supplies the current leading spans per ticker. (0, 0) means
// "unavailable"; consumers treat that as missing data, never as a level.
type SpanProvider interface {
	Spans(ticker string) (spanA, spanB float64)
}

// LeadingSpans returns senkou span A and B for the most recent bar of an
// oldest-first candle sequence. The spans are displaced forward, so the
// values projected onto the latest bar derive from the bar `displacement`
// periods back.
func LeadingSpans(candles []types.Candle) (float64, float64, error) {
	j := len(candles) - 1 - displacement
	if j < spanBPeriod-1 {
		return 0, 0, fmt.Errorf("ichimoku: need at least %d candles, got %d",
			spanBPeriod+displacement, len(candles))
	}

	tenkan := midpoint(candles, j, tenkanPeriod)
	kijun := midpoint(candles, j, kijunPeriod)
	spanA := (tenkan + kijun) / 2
	spanB := midpoint(candles, j, spanBPeriod)
	return spanA, spanB, nil
}

// midpoint is (highest high + lowest low) / 2 over the n bars ending at i.
func midpoint(candles []types.Candle, i, n int) float64 {
	hi := candles[i].High
	lo := candles[i].Low
	for k := i - n + 1; k < i; k++ {
		if candles[k].High > hi {
			hi = candles[k].High
		}
		if candles[k].Low < lo {
			lo = candles[k].Low
		}
	}
	return (hi + lo) / 2
}

// GatewayProvider fetches candles through the exchange gateway. Errors
// degrade to (0, 0) and a log line; span refresh must never stall a session
// reset.
type GatewayProvider struct {
	gw  exchange.Gateway
	log logger.Logger
}

func NewGatewayProvider(gw exchange.Gateway, log logger.Logger) *GatewayProvider {
	return &GatewayProvider{gw: gw, log: log}
}

func (p *GatewayProvider) Spans(ticker string) (float64, float64) {
	candles, err := p.gw.DayCandles(ticker, CandleWindow)
	if err != nil {
		p.log.Warn("span_fetch_failed", logger.String("ticker", ticker), logger.Err(err))
		return 0, 0
	}
	a, b, err := LeadingSpans(candles)
	if err != nil {
		p.log.Warn("span_calc_failed", logger.String("ticker", ticker), logger.Err(err))
		return 0, 0
	}
	return a, b
}
