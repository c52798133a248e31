package dispatch

import (
	"fmt"
	"strings"

	"market-sentry/internal/domain"
	"market-sentry/internal/signal"
)

func formatMessage(req domain.NotificationRequest) string {
	switch req.Kind {
	case domain.KindSignal:
		return formatSignalMessage(req)
	case domain.KindMovement:
		return formatMovementMessage(req)
	default:
		return formatWebhookMessage(req)
	}
}

func formatSignalMessage(req domain.NotificationRequest) string {
	title := req.SignalName
	description := ""
	if meta, ok := signal.MetaFor(req.SignalName); ok {
		title = meta.Title
		description = meta.Description
	}

	lines := []string{
		fmt.Sprintf("%s: %s [%s]", req.Ticker, title, req.Timeframe),
	}
	if description != "" {
		lines = append(lines, description)
	}
	if req.PriceUSD != 0 {
		lines = append(lines, fmt.Sprintf("Price: $%.4f", req.PriceUSD))
	}
	return strings.Join(lines, "\n")
}

func formatMovementMessage(req domain.NotificationRequest) string {
	direction := "UP"
	if req.ChangePct < 0 {
		direction = "DOWN"
	}
	lines := []string{
		fmt.Sprintf("%s is moving %s: %+.2f%% in %s", req.Ticker, direction, req.ChangePct, req.Timeframe),
		fmt.Sprintf("Price: $%.4f", req.PriceUSD),
	}
	if req.MarketCap > 0 {
		lines = append(lines, fmt.Sprintf("Market Cap: $%.0f", req.MarketCap))
	}
	if req.RSI > 0 {
		lines = append(lines, fmt.Sprintf("RSI: %.1f", req.RSI))
	}
	return strings.Join(lines, "\n")
}

func formatWebhookMessage(req domain.NotificationRequest) string {
	lines := []string{fmt.Sprintf("Alert: %s", req.Ticker)}
	if req.Message != "" {
		lines = append(lines, req.Message)
	}
	if req.SignalType != "" && req.SignalType != domain.DefaultSignalType {
		lines = append(lines, "Advanced Signal: "+req.SignalType)
	}
	for _, f := range req.Extras {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Name, f.Value))
	}
	return strings.Join(lines, "\n")
}
