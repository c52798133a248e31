package signal

import (
	"math"

	"market-sentry/internal/domain"
)

// Detect returns the names of the signals newly triggered at the latest bar
// of an analyzed series. A signal is newly triggered only on the bar where its
// condition flips from false (or undefined) to true; a condition that merely
// stays true never re-fires. Signals for historical bars are never reported.
func Detect(a *Analyzed) []string {
	if a == nil || len(a.Series.Bars) < 2 {
		return nil
	}

	t := len(a.Series.Bars) - 1
	closes := make([]float64, len(a.Series.Bars))
	for i := range a.Series.Bars {
		closes[i] = a.Series.Bars[i].Close
	}

	out := make([]string, 0, 4)
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}

	add(domain.SignalPriceAboveEMA200, crossAbove(closes, a.EMA200, t))
	add(domain.SignalPriceBelowEMA200, crossBelow(closes, a.EMA200, t))
	add(domain.SignalCrossAboveSMA200, crossAbove(closes, a.SMA200, t))
	add(domain.SignalCrossBelowSMA200, crossBelow(closes, a.SMA200, t))
	add(domain.SignalCrossAboveVWAP, crossAbove(closes, a.VWAP, t))
	add(domain.SignalCrossBelowVWAP, crossBelow(closes, a.VWAP, t))
	add(domain.SignalHighBreak20, breakoutAbove(closes, a.High20, t))
	add(domain.SignalLowBreak20, breakoutBelow(closes, a.Low20, t))
	add(domain.SignalEMA9AboveEMA21, crossAbove(a.EMA9, a.EMA21, t))
	add(domain.SignalEMA9BelowEMA21, crossBelow(a.EMA9, a.EMA21, t))
	add(domain.SignalGoldenCross, crossAbove(a.EMA50, a.EMA200, t))
	add(domain.SignalDeathCross, crossBelow(a.EMA50, a.EMA200, t))

	return out
}

// crossAbove holds at bar t iff a[t-1] <= l[t-1] and a[t] > l[t]. NaN at any
// of the four positions makes the comparison false, so undefined indicators
// can never trigger.
func crossAbove(a, l []float64, t int) bool {
	if t < 1 || t >= len(a) || t >= len(l) {
		return false
	}
	return a[t-1] <= l[t-1] && a[t] > l[t]
}

func crossBelow(a, l []float64, t int) bool {
	if t < 1 || t >= len(a) || t >= len(l) {
		return false
	}
	return a[t-1] >= l[t-1] && a[t] < l[t]
}

// breakoutAbove compares the close against the previous bar's rolling high,
// not the current bar's, so the breakout level never includes the bar being
// tested. Requires the window to have been full at t-1; before that the
// signal is not evaluable.
func breakoutAbove(closes, high []float64, t int) bool {
	if t < 1 || t >= len(closes) || t >= len(high) {
		return false
	}
	if math.IsNaN(high[t-1]) {
		return false
	}
	broke := closes[t] > high[t-1]
	if !broke {
		return false
	}
	// Already broken out on the previous bar: not a new trigger.
	if t >= 2 && !math.IsNaN(high[t-2]) && closes[t-1] > high[t-2] {
		return false
	}
	return true
}

func breakoutBelow(closes, low []float64, t int) bool {
	if t < 1 || t >= len(closes) || t >= len(low) {
		return false
	}
	if math.IsNaN(low[t-1]) {
		return false
	}
	broke := closes[t] < low[t-1]
	if !broke {
		return false
	}
	if t >= 2 && !math.IsNaN(low[t-2]) && closes[t-1] < low[t-2] {
		return false
	}
	return true
}
