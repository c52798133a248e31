package signal

import (
	"sort"

	"market-sentry/internal/domain"
)

// ResampleWeekly aggregates a daily series into ISO calendar weeks, keeping
// the last close of each week and summing volume. The bar keeps the timestamp
// of the last observation in its week.
func ResampleWeekly(s domain.Series) domain.Series {
	return resample(s, domain.TimeframeWeekly, func(b domain.Bar) [2]int {
		y, w := b.Timestamp.UTC().ISOWeek()
		return [2]int{y, w}
	})
}

// ResampleMonthly aggregates a daily series into calendar months with the
// same last-close rule.
func ResampleMonthly(s domain.Series) domain.Series {
	return resample(s, domain.TimeframeMonthly, func(b domain.Bar) [2]int {
		t := b.Timestamp.UTC()
		return [2]int{t.Year(), int(t.Month())}
	})
}

func resample(s domain.Series, timeframe string, bucket func(domain.Bar) [2]int) domain.Series {
	bars := make([]domain.Bar, len(s.Bars))
	copy(bars, s.Bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	out := domain.Series{Subject: s.Subject, Timeframe: timeframe}
	var cur [2]int
	for i, b := range bars {
		key := bucket(b)
		if i == 0 || key != cur {
			cur = key
			out.Bars = append(out.Bars, b)
			continue
		}
		last := &out.Bars[len(out.Bars)-1]
		last.Timestamp = b.Timestamp
		last.Close = b.Close
		last.Volume += b.Volume
	}
	return out
}
