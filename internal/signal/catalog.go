package signal

import "market-sentry/internal/domain"

// Meta carries the fixed presentation attributes of a catalog signal.
type Meta struct {
	Title       string
	Description string
	Color       string
	Bullish     bool
}

var catalog = map[string]Meta{
	domain.SignalPriceAboveEMA200: {
		Title:       "Price Above EMA 200",
		Description: "Price crossed above the 200-period exponential moving average",
		Color:       "green",
		Bullish:     true,
	},
	domain.SignalPriceBelowEMA200: {
		Title:       "Price Below EMA 200",
		Description: "Price crossed below the 200-period exponential moving average",
		Color:       "red",
	},
	domain.SignalCrossAboveSMA200: {
		Title:       "Cross Above SMA 200",
		Description: "Price crossed above the 200-period simple moving average",
		Color:       "green",
		Bullish:     true,
	},
	domain.SignalCrossBelowSMA200: {
		Title:       "Cross Below SMA 200",
		Description: "Price crossed below the 200-period simple moving average",
		Color:       "red",
	},
	domain.SignalCrossAboveVWAP: {
		Title:       "Cross Above VWAP",
		Description: "Price crossed above the volume-weighted average price",
		Color:       "green",
		Bullish:     true,
	},
	domain.SignalCrossBelowVWAP: {
		Title:       "Cross Below VWAP",
		Description: "Price crossed below the volume-weighted average price",
		Color:       "red",
	},
	domain.SignalHighBreak20: {
		Title:       "20-Period High Break",
		Description: "Price broke above the rolling 20-period high",
		Color:       "green",
		Bullish:     true,
	},
	domain.SignalLowBreak20: {
		Title:       "20-Period Low Break",
		Description: "Price broke below the rolling 20-period low",
		Color:       "red",
	},
	domain.SignalEMA9AboveEMA21: {
		Title:       "EMA 9/21 Bullish Cross",
		Description: "EMA 9 crossed above EMA 21",
		Color:       "green",
		Bullish:     true,
	},
	domain.SignalEMA9BelowEMA21: {
		Title:       "EMA 9/21 Bearish Cross",
		Description: "EMA 9 crossed below EMA 21",
		Color:       "red",
	},
	domain.SignalGoldenCross: {
		Title:       "Golden Cross",
		Description: "EMA 50 crossed above EMA 200",
		Color:       "gold",
		Bullish:     true,
	},
	domain.SignalDeathCross: {
		Title:       "Death Cross",
		Description: "EMA 50 crossed below EMA 200",
		Color:       "red",
	},
}

// MetaFor looks up the presentation metadata for a signal name.
func MetaFor(name string) (Meta, bool) {
	m, ok := catalog[name]
	return m, ok
}

// Names lists every catalog signal name.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}
