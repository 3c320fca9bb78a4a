// Package engine holds the trading decision core: breakout targets, the
// per-ticker state book, candidate selection, the buy/sell decision paths
// and the session scheduler driving the polling loop.
package engine

import (
	"errors"

	"github.com/evdnx/govb/types"
)

// ErrInsufficientCandles is returned when a target cannot be derived;
// callers skip the ticker for the cycle instead of aborting.
var ErrInsufficientCandles = errors.New("engine: need at least two daily candles")

// Targets derives the day's opening reference and breakout target from an
// oldest-first candle sequence. The prior day's bar is candles[len-2]:
//
//	openingReference = prevClose
//	target           = prevClose + k * (prevHigh - prevLow)
func Targets(candles []types.Candle, k float64) (openingReference, target float64, err error) {
	if len(candles) < 2 {
		return 0, 0, ErrInsufficientCandles
	}
	prev := candles[len(candles)-2]
	openingReference = prev.Close
	target = prev.Close + k*(prev.High-prev.Low)
	return openingReference, target, nil
}

// VolumeRatio is today's cumulative volume over the prior day's. The error
// sentinel is 0: a zero ratio sorts last in the volume ranking, so a failed
// fetch can never promote a candidate.
func VolumeRatio(candles []types.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	prev := candles[len(candles)-2]
	today := candles[len(candles)-1]
	if prev.Volume <= 0 {
		return 0
	}
	return today.Volume / prev.Volume
}
