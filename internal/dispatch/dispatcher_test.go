package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"market-sentry/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type fakeStore struct {
	destinations map[int64]map[string]*domain.Destination // serverID -> ticker|signalType
	broadcast    []domain.Destination
	disabled     map[int64]bool
	lookupErr    error
}

func (f *fakeStore) LookupDestination(ctx context.Context, serverID int64, ticker, signalType string) (*domain.Destination, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	byKey := f.destinations[serverID]
	if byKey == nil {
		return nil, nil
	}
	return byKey[ticker+"|"+signalType], nil
}

// ListDestinationsForSignal mirrors the store query: a destination matches on
// an exact signal type or its NONE default binding. An empty fixture type
// counts as NONE, like the column default.
func (f *fakeStore) ListDestinationsForSignal(ctx context.Context, ticker, signalType string) ([]domain.Destination, error) {
	want := strings.ToUpper(signalType)
	var out []domain.Destination
	for _, d := range f.broadcast {
		if d.Ticker != "" && d.Ticker != strings.ToUpper(ticker) {
			continue
		}
		st := d.SignalType
		if st == "" {
			st = domain.DefaultSignalType
		}
		if st == want || st == domain.DefaultSignalType {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) AlertsEnabled(ctx context.Context, serverID int64) (bool, error) {
	return !f.disabled[serverID], nil
}

type fakeSender struct {
	mu       sync.Mutex
	messages map[int64][]string
	fail     map[int64]bool
}

func (f *fakeSender) Send(ctx context.Context, channelID int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[channelID] {
		return errors.New("channel gone")
	}
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}
	f.messages[channelID] = append(f.messages[channelID], message)
	return nil
}

func (f *fakeSender) sent(channelID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[channelID]...)
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestProcessWebhookDeliversToBoundChannel(t *testing.T) {
	store := &fakeStore{destinations: map[int64]map[string]*domain.Destination{
		42: {"BTCUSD|NONE": {ChannelID: 7, ServerID: 42, Ticker: "BTCUSD", SignalType: "NONE"}},
	}}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 4)

	d.process(context.Background(), domain.NotificationRequest{
		Kind:     domain.KindWebhook,
		Ticker:   "BTCUSD",
		ServerID: 42,
		Message:  "moving up",
		Extras:   []domain.ExtraField{{Name: "Exchange", Value: "BINANCE"}},
	})

	got := sender.sent(7)
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if !strings.Contains(got[0], "Alert: BTCUSD") || !strings.Contains(got[0], "moving up") {
		t.Fatalf("unexpected message: %s", got[0])
	}
	if !strings.Contains(got[0], "Exchange: BINANCE") {
		t.Fatalf("expected echoed extras, got: %s", got[0])
	}
}

func TestProcessSkipsDisabledServer(t *testing.T) {
	store := &fakeStore{
		destinations: map[int64]map[string]*domain.Destination{
			42: {"BTCUSD|NONE": {ChannelID: 7}},
		},
		disabled: map[int64]bool{42: true},
	}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 4)

	d.process(context.Background(), domain.NotificationRequest{
		Kind: domain.KindWebhook, Ticker: "BTCUSD", ServerID: 42,
	})

	if len(sender.sent(7)) != 0 {
		t.Fatal("expected no delivery to a disabled server")
	}
}

func TestProcessUnresolvedDestinationDropsQuietly(t *testing.T) {
	store := &fakeStore{}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 4)

	d.process(context.Background(), domain.NotificationRequest{
		Kind: domain.KindWebhook, Ticker: "DOGEUSD", ServerID: 99,
	})
	// Nothing delivered, nothing crashed.
	if len(sender.messages) != 0 {
		t.Fatalf("expected no deliveries, got %+v", sender.messages)
	}
}

func TestProcessBroadcastsScanSignals(t *testing.T) {
	store := &fakeStore{broadcast: []domain.Destination{
		{ChannelID: 1}, {ChannelID: 2},
	}}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 4)

	d.process(context.Background(), domain.NotificationRequest{
		Kind:       domain.KindSignal,
		Ticker:     "BTC",
		SignalName: domain.SignalGoldenCross,
		Timeframe:  "1d",
		PriceUSD:   65000,
	})

	if len(sender.sent(1)) != 1 || len(sender.sent(2)) != 1 {
		t.Fatal("expected delivery to every broadcast destination")
	}
	if !strings.Contains(sender.sent(1)[0], "Golden Cross") {
		t.Fatalf("expected catalog title in message: %s", sender.sent(1)[0])
	}
}

func TestProcessScanSignalReachesSignalBoundChannel(t *testing.T) {
	store := &fakeStore{broadcast: []domain.Destination{
		{ChannelID: 9, Ticker: "BTC", SignalType: "20P_HIGH_BREAK"},
		{ChannelID: 3, Ticker: "BTC", SignalType: "NONE"},
		{ChannelID: 4, Ticker: "BTC", SignalType: "DEATH_CROSS"},
	}}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 4)

	// Shaped exactly like the scanner builds it: routing key is the name.
	d.process(context.Background(), domain.NotificationRequest{
		Kind:       domain.KindSignal,
		Ticker:     "BTC",
		SignalName: domain.SignalHighBreak20,
		SignalType: domain.SignalHighBreak20,
		Timeframe:  "1h",
		PriceUSD:   120,
	})

	if len(sender.sent(9)) != 1 {
		t.Fatal("expected the signal-bound channel to receive its signal")
	}
	if len(sender.sent(3)) != 1 {
		t.Fatal("expected the default binding to receive the signal too")
	}
	if len(sender.sent(4)) != 0 {
		t.Fatal("expected no delivery to a channel bound to a different signal")
	}
}

func TestProcessDeliveryFailureDoesNotAbortOthers(t *testing.T) {
	store := &fakeStore{broadcast: []domain.Destination{
		{ChannelID: 1}, {ChannelID: 2},
	}}
	sender := &fakeSender{fail: map[int64]bool{1: true}}
	d := New(testTracer(), store, sender, 4)

	d.process(context.Background(), domain.NotificationRequest{
		Kind: domain.KindMovement, Ticker: "ETH", Timeframe: "1h", ChangePct: -9.5, PriceUSD: 3000,
	})

	if len(sender.sent(2)) != 1 {
		t.Fatal("expected delivery to the healthy destination")
	}
}

func TestEnqueueFullQueueDrops(t *testing.T) {
	d := New(testTracer(), &fakeStore{}, &fakeSender{}, 1)

	if err := d.Enqueue(domain.NotificationRequest{Ticker: "A"}); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if err := d.Enqueue(domain.NotificationRequest{Ticker: "B"}); err == nil {
		t.Fatal("expected enqueue on a full queue to fail")
	}
	if d.QueueDepth() != 1 {
		t.Fatalf("expected depth 1, got %d", d.QueueDepth())
	}
}

func TestRunDrainsInFIFOOrder(t *testing.T) {
	store := &fakeStore{broadcast: []domain.Destination{{ChannelID: 5}}}
	sender := &fakeSender{}
	d := New(testTracer(), store, sender, 8)

	for _, ticker := range []string{"AAA", "BBB", "CCC"} {
		if err := d.Enqueue(domain.NotificationRequest{
			Kind: domain.KindMovement, Ticker: ticker, Timeframe: "1h", ChangePct: 8, PriceUSD: 1,
		}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for d.QueueDepth() > 0 {
		select {
		case <-deadline:
			t.Fatal("queue never drained")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	got := sender.sent(5)
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(got))
	}
	for i, ticker := range []string{"AAA", "BBB", "CCC"} {
		if !strings.Contains(got[i], ticker) {
			t.Fatalf("expected FIFO order, message %d was %q", i, got[i])
		}
	}
}

func TestFormatMovementMessageDirection(t *testing.T) {
	msg := formatMovementMessage(domain.NotificationRequest{
		Ticker: "BTC", Timeframe: "24h", ChangePct: -8.25, PriceUSD: 60000, RSI: 22.4,
	})
	if !strings.Contains(msg, "DOWN") || !strings.Contains(msg, "-8.25%") {
		t.Fatalf("unexpected movement message: %s", msg)
	}
	if !strings.Contains(msg, "RSI: 22.4") {
		t.Fatalf("expected RSI in message: %s", msg)
	}
}
