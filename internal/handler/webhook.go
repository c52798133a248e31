package handler

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"market-sentry/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// webhookPayload is the TradingView-style alert body. Only ticker, alert and
// server_id are required; everything else is echoed into the delivered
// message when present.
type webhookPayload struct {
	Ticker   string `json:"ticker" binding:"required"`
	Alert    string `json:"alert" binding:"required"`
	ServerID int64  `json:"server_id" binding:"required"`

	Secret     *string  `json:"secret"`
	SignalType *string  `json:"signal_type"`
	Time       *string  `json:"time"`
	Open       *float64 `json:"open"`
	Close      *float64 `json:"close"`
	High       *float64 `json:"high"`
	Low        *float64 `json:"low"`
	Interval   *string  `json:"interval"`
	Exchange   *string  `json:"exchange"`
}

// PostWebhook ingests one pushed alert. The response is deliberately uniform:
// a caller never learns whether a secret was required, matched, or whether a
// destination exists for the ticker.
func (h *Handler) PostWebhook(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-webhook")
	defer span.End()

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", domain.ErrMalformedPayload, err)})
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(payload.Ticker))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrMalformedPayload.Error()})
		return
	}
	span.SetAttributes(attribute.String("ticker", ticker))

	signalType := domain.DefaultSignalType
	if payload.SignalType != nil {
		if v := strings.ToUpper(strings.TrimSpace(*payload.SignalType)); v != "" {
			signalType = v
		}
	}

	if h.secrets != nil {
		stored, err := h.secrets.GetSecret(ctx, payload.ServerID)
		if err != nil {
			log.Printf("secret lookup failed for server %d: %v", payload.ServerID, err)
			c.JSON(http.StatusOK, gin.H{"status": "success"})
			return
		}
		if stored != "" {
			provided := ""
			if payload.Secret != nil {
				provided = strings.TrimSpace(*payload.Secret)
			}
			if provided != strings.TrimSpace(stored) {
				// Silent drop: same response as success.
				log.Printf("webhook secret mismatch for server %d, dropping", payload.ServerID)
				c.JSON(http.StatusOK, gin.H{"status": "success"})
				return
			}
		}
	}

	req := domain.NotificationRequest{
		Kind:       domain.KindWebhook,
		Ticker:     ticker,
		SignalType: signalType,
		Message:    strings.TrimSpace(payload.Alert),
		ServerID:   payload.ServerID,
		Extras:     extraFields(payload),
	}

	if err := h.queue.Enqueue(req); err != nil {
		log.Printf("webhook enqueue failed for %s: %v", ticker, err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func extraFields(p webhookPayload) []domain.ExtraField {
	var out []domain.ExtraField
	addStr := func(name string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			out = append(out, domain.ExtraField{Name: name, Value: strings.TrimSpace(*v)})
		}
	}
	addNum := func(name string, v *float64) {
		if v != nil {
			out = append(out, domain.ExtraField{Name: name, Value: formatNumber(*v)})
		}
	}

	addStr("Exchange", p.Exchange)
	if p.Time != nil && strings.TrimSpace(*p.Time) != "" {
		v := strings.TrimSpace(*p.Time)
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			v = ts.UTC().Format("2006-01-02 15:04 UTC")
		}
		out = append(out, domain.ExtraField{Name: "Time", Value: v})
	}
	addStr("Interval", p.Interval)
	addNum("High", p.High)
	addNum("Low", p.Low)
	addNum("Open", p.Open)
	addNum("Close", p.Close)
	return out
}

func formatNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}
