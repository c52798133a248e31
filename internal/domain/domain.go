package domain

import "time"

// Timeframe labels for the series a subject is analyzed at.
const (
	TimeframeHourly  = "1h"
	TimeframeDaily   = "1d"
	TimeframeWeekly  = "1w"
	TimeframeMonthly = "1M"
)

// Timeframes lists the analyzed timeframes in scan order.
var Timeframes = []string{TimeframeHourly, TimeframeDaily, TimeframeWeekly, TimeframeMonthly}

// Movement alert periods and the timeframe whose RSI gates each of them.
var MovementPeriods = []MovementPeriod{
	{Label: "1h", Timeframe: TimeframeHourly},
	{Label: "24h", Timeframe: TimeframeDaily},
	{Label: "7d", Timeframe: TimeframeWeekly},
}

type MovementPeriod struct {
	Label     string
	Timeframe string
}

// Subject is one tradable instrument as ranked by market capitalization.
// Refreshed every scan cycle, never persisted.
type Subject struct {
	ID          string  `json:"id"`
	Ticker      string  `json:"ticker"`
	Name        string  `json:"name"`
	PriceUSD    float64 `json:"price_usd"`
	MarketCap   float64 `json:"market_cap"`
	Change1hPct float64 `json:"change_1h_pct"`
	Change24Pct float64 `json:"change_24h_pct"`
	Change7dPct float64 `json:"change_7d_pct"`
}

// Bar is one timestamped close/volume observation.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Series is the ordered bar sequence for one subject and timeframe.
// Bars are timestamp-ascending with no duplicate timestamps.
type Series struct {
	Subject   string `json:"subject"`
	Timeframe string `json:"timeframe"`
	Bars      []Bar  `json:"bars"`
}

// Signal names. Each is a strict transition between two consecutive bars,
// never a level check.
const (
	SignalPriceAboveEMA200 = "price_above_ema200"
	SignalPriceBelowEMA200 = "price_below_ema200"
	SignalCrossAboveSMA200 = "cross_above_sma200"
	SignalCrossBelowSMA200 = "cross_below_sma200"
	SignalCrossAboveVWAP   = "cross_above_vwap"
	SignalCrossBelowVWAP   = "cross_below_vwap"
	SignalHighBreak20      = "20p_high_break"
	SignalLowBreak20       = "20p_low_break"
	SignalEMA9AboveEMA21   = "ema9_above_ema21"
	SignalEMA9BelowEMA21   = "ema9_below_ema21"
	SignalGoldenCross      = "golden_cross"
	SignalDeathCross       = "death_cross"
)

// DefaultSignalType marks the non-advanced destination binding for a ticker.
const DefaultSignalType = "NONE"

type NotificationKind string

const (
	KindSignal   NotificationKind = "signal"
	KindMovement NotificationKind = "movement"
	KindWebhook  NotificationKind = "webhook"
)

// NotificationRequest is one unit of work for the dispatcher. Created by the
// market scanner or the webhook ingestor, consumed exactly once, not persisted.
type NotificationRequest struct {
	Kind       NotificationKind
	Ticker     string
	SignalName string // catalog name for scan-sourced signal alerts
	SignalType string // routing key: catalog name for scan signals, payload signal_type for webhooks
	Timeframe  string // timeframe or movement period label
	Message    string // webhook alert text

	// ServerID routes webhook-sourced requests to one owning group.
	// Zero means broadcast to every enabled destination for the ticker.
	ServerID int64

	PriceUSD  float64
	MarketCap float64
	ChangePct float64
	RSI       float64

	// Extra webhook fields echoed into the delivered message, in payload order.
	Extras []ExtraField
}

type ExtraField struct {
	Name  string
	Value string
}

// Destination is one delivery target: a chat channel bound to a ticker and
// signal type by the owning server.
type Destination struct {
	ChannelID  int64  `json:"channel_id"`
	ServerID   int64  `json:"server_id"`
	Ticker     string `json:"ticker"`
	SignalType string `json:"signal_type"`
}
