package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-sentry/internal/alert"
	"market-sentry/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type fakeMarket struct {
	subjects    []domain.Subject
	subjectsErr error
	series      map[string]map[string]domain.Series // ticker -> timeframe -> series
	seriesErr   map[string]error
	fetches     int
}

func (f *fakeMarket) TopSubjects(ctx context.Context, n int) ([]domain.Subject, error) {
	if f.subjectsErr != nil {
		return nil, f.subjectsErr
	}
	return f.subjects, nil
}

func (f *fakeMarket) SeriesForTimeframes(ctx context.Context, subject domain.Subject) (map[string]domain.Series, error) {
	f.fetches++
	if err := f.seriesErr[subject.Ticker]; err != nil {
		return nil, err
	}
	return f.series[subject.Ticker], nil
}

type captureQueue struct {
	requests []domain.NotificationRequest
}

func (c *captureQueue) Enqueue(req domain.NotificationRequest) error {
	c.requests = append(c.requests, req)
	return nil
}

func (c *captureQueue) byKind(kind domain.NotificationKind) []domain.NotificationRequest {
	var out []domain.NotificationRequest
	for _, r := range c.requests {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func newTestScanner(market MarketData, queue Enqueuer, cfg ScanConfig) *MarketScanner {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return NewMarketScanner(tracer, market, alert.NewRegistry(), queue, cfg).
		WithClock(func() time.Time { return fixed }, func(ctx context.Context, d time.Duration) {})
}

func hourlySeries(ticker string, closes []float64) domain.Series {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := domain.Series{Subject: ticker, Timeframe: domain.TimeframeHourly}
	for i, c := range closes {
		s.Bars = append(s.Bars, domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: c, Volume: 100})
	}
	return s
}

func breakoutCloses() []float64 {
	closes := make([]float64, 26)
	for i := 0; i < 25; i++ {
		closes[i] = 100 + float64(i%2)
	}
	closes[25] = 120
	return closes
}

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestRunCycleEmitsBreakoutSignalOnce(t *testing.T) {
	market := &fakeMarket{
		subjects: []domain.Subject{{ID: "bitcoin", Ticker: "BTC", PriceUSD: 120}},
		series: map[string]map[string]domain.Series{
			"BTC": {domain.TimeframeHourly: hourlySeries("BTC", breakoutCloses())},
		},
	}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{
		TopN:              10,
		SignalCooldown:    4 * time.Hour,
		MovementCooldown:  time.Hour,
		MovementThreshold: 999, // movements out of the way
	})

	scanner.RunCycle(context.Background())

	signals := queue.byKind(domain.KindSignal)
	breaks := 0
	for _, s := range signals {
		if s.SignalName == domain.SignalHighBreak20 {
			breaks++
			if s.Timeframe != domain.TimeframeHourly || s.Ticker != "BTC" {
				t.Fatalf("unexpected signal request: %+v", s)
			}
			if s.SignalType != domain.SignalHighBreak20 {
				t.Fatalf("expected routing key %s, got %s", domain.SignalHighBreak20, s.SignalType)
			}
		}
	}
	if breaks != 1 {
		t.Fatalf("expected exactly one 20p_high_break, got %d of %d signals", breaks, len(signals))
	}

	// Identical second cycle: every re-detection is inside its cooldown.
	scanner.RunCycle(context.Background())
	if got := len(queue.byKind(domain.KindSignal)); got != len(signals) {
		t.Fatalf("expected cooldown to suppress duplicates, got %d signals after %d", got, len(signals))
	}
}

func TestRunCycleMovementIsRSIGatedAndCooledDown(t *testing.T) {
	market := &fakeMarket{
		subjects: []domain.Subject{{
			ID: "x", Ticker: "X", PriceUSD: 129, MarketCap: 1e9, Change1hPct: 8,
		}},
		series: map[string]map[string]domain.Series{
			"X": {domain.TimeframeHourly: hourlySeries("X", risingCloses(30))},
		},
	}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{
		TopN:              10,
		SignalCooldown:    4 * time.Hour,
		MovementCooldown:  time.Hour,
		MovementThreshold: 7,
	})

	scanner.RunCycle(context.Background())

	moves := queue.byKind(domain.KindMovement)
	if len(moves) != 1 {
		t.Fatalf("expected exactly one movement request, got %d", len(moves))
	}
	if moves[0].SignalName != "1h_move" || moves[0].Ticker != "X" {
		t.Fatalf("unexpected movement request: %+v", moves[0])
	}
	if moves[0].RSI <= rsiOverbought {
		t.Fatalf("expected overbought RSI on a pure uptrend, got %f", moves[0].RSI)
	}

	scanner.RunCycle(context.Background())
	if got := len(queue.byKind(domain.KindMovement)); got != 1 {
		t.Fatalf("expected cooldown to block the second cycle, got %d movements", got)
	}
}

func TestRunCycleMovementBlockedByNeutralRSI(t *testing.T) {
	// Alternating closes keep RSI near 50; the 8% move alone must not fire.
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	market := &fakeMarket{
		subjects: []domain.Subject{{ID: "y", Ticker: "Y", Change1hPct: 8}},
		series: map[string]map[string]domain.Series{
			"Y": {domain.TimeframeHourly: hourlySeries("Y", closes)},
		},
	}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{
		TopN: 10, MovementThreshold: 7, MovementCooldown: time.Hour, SignalCooldown: time.Hour,
	})

	scanner.RunCycle(context.Background())
	if got := len(queue.byKind(domain.KindMovement)); got != 0 {
		t.Fatalf("expected no movement without RSI confirmation, got %d", got)
	}
}

func TestRunCycleTopFetchFailureAbortsCycle(t *testing.T) {
	market := &fakeMarket{subjectsErr: errors.New("provider down")}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{TopN: 10})

	scanner.RunCycle(context.Background())
	if market.fetches != 0 {
		t.Fatal("expected no subject fetches after top-N failure")
	}
	if len(queue.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(queue.requests))
	}
}

func TestRunCycleSubjectFailureSkipsOnlyThatSubject(t *testing.T) {
	market := &fakeMarket{
		subjects: []domain.Subject{
			{ID: "bad", Ticker: "BAD"},
			{ID: "good", Ticker: "GOOD", PriceUSD: 120},
		},
		seriesErr: map[string]error{"BAD": errors.New("fetch failed")},
		series: map[string]map[string]domain.Series{
			"GOOD": {domain.TimeframeHourly: hourlySeries("GOOD", breakoutCloses())},
		},
	}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{
		TopN: 10, SignalCooldown: time.Hour, MovementThreshold: 999,
	})

	scanner.RunCycle(context.Background())

	signals := queue.byKind(domain.KindSignal)
	if len(signals) == 0 {
		t.Fatal("expected the healthy subject to still emit")
	}
	for _, s := range signals {
		if s.Ticker != "GOOD" {
			t.Fatalf("unexpected ticker in %+v", s)
		}
	}
}

func TestRunCycleShortSeriesYieldsNothing(t *testing.T) {
	market := &fakeMarket{
		subjects: []domain.Subject{{ID: "z", Ticker: "Z"}},
		series: map[string]map[string]domain.Series{
			"Z": {domain.TimeframeHourly: hourlySeries("Z", []float64{100})},
		},
	}
	queue := &captureQueue{}
	scanner := newTestScanner(market, queue, ScanConfig{TopN: 10})

	scanner.RunCycle(context.Background())
	if len(queue.requests) != 0 {
		t.Fatalf("expected nothing from a one-bar series, got %d", len(queue.requests))
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	market := &fakeMarket{}
	scanner := newTestScanner(market, &captureQueue{}, ScanConfig{TopN: 5, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scanner.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner did not stop on cancel")
	}
}
