package signal

import (
	"math"
	"sort"

	"market-sentry/internal/domain"
)

const (
	emaShortSpan  = 9
	emaMidSpan    = 21
	emaSlowSpan   = 50
	emaLongSpan   = 200
	smaLongWindow = 200
	rangeWindow   = 20
	rsiPeriod     = 14
)

// Analyzed is a series augmented with its indicator columns. Every column has
// the same length as Bars; positions where an indicator is not yet defined
// hold NaN rather than zero.
type Analyzed struct {
	Series domain.Series

	EMA9   []float64
	EMA21  []float64
	EMA50  []float64
	EMA200 []float64
	SMA200 []float64
	High20 []float64
	Low20  []float64
	VWAP   []float64
	RSI14  []float64
}

// Analyze derives the indicator columns for one series. The series is sorted
// by timestamp first so callers may pass provider output as-is. Returns
// domain.ErrInsufficientData when there are fewer than two bars, since no
// transition can be evaluated at all.
func Analyze(s domain.Series) (*Analyzed, error) {
	bars := make([]domain.Bar, len(s.Bars))
	copy(bars, s.Bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	s.Bars = bars

	if len(bars) < 2 {
		return nil, domain.ErrInsufficientData
	}

	closes := make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close
	}

	return &Analyzed{
		Series: s,
		EMA9:   emaSeries(closes, emaShortSpan),
		EMA21:  emaSeries(closes, emaMidSpan),
		EMA50:  emaSeries(closes, emaSlowSpan),
		EMA200: emaSeries(closes, emaLongSpan),
		SMA200: smaSeries(closes, smaLongWindow),
		High20: rollingMax(closes, rangeWindow),
		Low20:  rollingMin(closes, rangeWindow),
		VWAP:   vwapSeries(bars),
		RSI14:  rsiSeries(closes, rsiPeriod),
	}, nil
}

// LatestRSI returns the RSI at the last bar, or false when it is undefined.
func (a *Analyzed) LatestRSI() (float64, bool) {
	if a == nil || len(a.RSI14) == 0 {
		return 0, false
	}
	v := a.RSI14[len(a.RSI14)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// HasLongWindows reports whether the 200-bar indicators are defined at the
// latest bar.
func (a *Analyzed) HasLongWindows() bool {
	if a == nil || len(a.SMA200) == 0 {
		return false
	}
	return !math.IsNaN(a.SMA200[len(a.SMA200)-1])
}

// emaSeries masks the recursive EMA during its warm-up: the smoothing is
// seeded with the first close, but the value is not considered defined until
// span bars exist, which keeps 200-span signals silent on short series.
func emaSeries(values []float64, span int) []float64 {
	out := nanSeries(len(values))
	raw := emaRecursive(values, span)
	for i := span - 1; i < len(values); i++ {
		out[i] = raw[i]
	}
	return out
}

func emaRecursive(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func smaSeries(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if len(values) < window {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func rollingMax(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for _, v := range values[i-window+2 : i+1] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func rollingMin(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for _, v := range values[i-window+2 : i+1] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// vwapSeries computes cumulative close*volume over cumulative volume, with the
// accumulators reset at every UTC calendar-day boundary so state never leaks
// across sessions. NaN while cumulative volume is zero.
func vwapSeries(bars []domain.Bar) []float64 {
	out := nanSeries(len(bars))
	var sumPV, sumV float64
	var day int

	for i, b := range bars {
		d := b.Timestamp.UTC().YearDay() + b.Timestamp.UTC().Year()*1000
		if i == 0 || d != day {
			day = d
			sumPV = 0
			sumV = 0
		}
		sumPV += b.Close * b.Volume
		sumV += b.Volume
		if sumV > 0 {
			out[i] = sumPV / sumV
		}
	}
	return out
}

// rsiSeries is the Wilder-smoothed relative strength index. Undefined for the
// first period bars.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
