package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"market-sentry/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultQueueSize = 256

// DestinationStore is the read side of the destination/secret store the
// dispatcher resolves targets against.
type DestinationStore interface {
	LookupDestination(ctx context.Context, serverID int64, ticker, signalType string) (*domain.Destination, error)
	ListDestinationsForSignal(ctx context.Context, ticker, signalType string) ([]domain.Destination, error)
	AlertsEnabled(ctx context.Context, serverID int64) (bool, error)
}

// Sender delivers one formatted message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID int64, message string) error
}

// Dispatcher owns the single ordered queue between the producers (market
// scanner, webhook ingestor) and delivery. One consumer loop drains it, so
// delivery order is the enqueue order.
type Dispatcher struct {
	tracer trace.Tracer
	store  DestinationStore
	sender Sender
	queue  chan domain.NotificationRequest
}

func New(tracer trace.Tracer, store DestinationStore, sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		tracer: tracer,
		store:  store,
		sender: sender,
		queue:  make(chan domain.NotificationRequest, queueSize),
	}
}

// Enqueue adds a request to the queue without blocking the producer. A full
// queue drops the request; delivery is at-most-once and never guaranteed.
func (d *Dispatcher) Enqueue(req domain.NotificationRequest) error {
	select {
	case d.queue <- req:
		return nil
	default:
		log.Printf("dispatch queue full, dropping %s notification for %s", req.Kind, req.Ticker)
		return fmt.Errorf("dispatch queue full")
	}
}

// QueueDepth reports how many requests are waiting. Used for diagnostics.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Run drains the queue until ctx is cancelled. Per-item failures are logged
// and never stop the loop; pending items are abandoned on shutdown.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Println("Dispatcher starting...")
	for {
		select {
		case <-ctx.Done():
			log.Printf("Dispatcher stopped, %d pending items abandoned", len(d.queue))
			return
		case req := <-d.queue:
			d.process(ctx, req)
		}
	}
}

// process resolves and delivers one request. The recover guard keeps a
// malformed request from killing the consumer loop.
func (d *Dispatcher) process(ctx context.Context, req domain.NotificationRequest) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch panic for %s %s: %v", req.Kind, req.Ticker, r)
		}
	}()

	ctx, span := d.tracer.Start(ctx, "dispatch.process")
	defer span.End()

	destinations, err := d.resolve(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrDestinationUnresolved) {
			log.Printf("no destination for %s %s (%s), dropping", req.Kind, req.Ticker, req.SignalType)
		} else {
			log.Printf("destination resolution failed for %s %s: %v", req.Kind, req.Ticker, err)
		}
		return
	}
	if len(destinations) == 0 {
		log.Printf("no destination for %s %s (%s), dropping", req.Kind, req.Ticker, req.SignalType)
		return
	}

	msg := formatMessage(req)
	for _, dest := range destinations {
		if err := d.sender.Send(ctx, dest.ChannelID, msg); err != nil {
			// Delivery failure is final: no retry, no requeue.
			log.Printf("delivery to channel %d failed: %v", dest.ChannelID, err)
		}
	}
}

func (d *Dispatcher) resolve(ctx context.Context, req domain.NotificationRequest) ([]domain.Destination, error) {
	signalType := req.SignalType
	if signalType == "" {
		signalType = domain.DefaultSignalType
	}

	if req.ServerID != 0 {
		enabled, err := d.store.AlertsEnabled(ctx, req.ServerID)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, domain.ErrDestinationUnresolved
		}
		dest, err := d.store.LookupDestination(ctx, req.ServerID, req.Ticker, signalType)
		if err != nil {
			return nil, err
		}
		if dest == nil {
			return nil, domain.ErrDestinationUnresolved
		}
		return []domain.Destination{*dest}, nil
	}

	return d.store.ListDestinationsForSignal(ctx, req.Ticker, signalType)
}
