package handler

import (
	"context"

	"market-sentry/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// SecretStore reads the shared secret configured for an owning server.
// An empty secret means none is required.
type SecretStore interface {
	GetSecret(ctx context.Context, serverID int64) (string, error)
}

// Enqueuer accepts validated notification requests for dispatch.
type Enqueuer interface {
	Enqueue(req domain.NotificationRequest) error
}

type Handler struct {
	tracer  trace.Tracer
	secrets SecretStore
	queue   Enqueuer
}

func New(tracer trace.Tracer, secrets SecretStore, queue Enqueuer) *Handler {
	return &Handler{
		tracer:  tracer,
		secrets: secrets,
		queue:   queue,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/webhook", h.PostWebhook)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
