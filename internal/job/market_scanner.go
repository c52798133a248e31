package job

import (
	"context"
	"log"
	"math"
	"time"

	"market-sentry/internal/alert"
	"market-sentry/internal/domain"
	signalengine "market-sentry/internal/signal"

	"go.opentelemetry.io/otel/trace"
)

const (
	rsiOverbought = 70.0
	rsiOversold   = 30.0
)

// MarketData supplies the ranked subject list and per-subject series.
type MarketData interface {
	TopSubjects(ctx context.Context, n int) ([]domain.Subject, error)
	SeriesForTimeframes(ctx context.Context, subject domain.Subject) (map[string]domain.Series, error)
}

// Enqueuer accepts notification requests for delivery.
type Enqueuer interface {
	Enqueue(req domain.NotificationRequest) error
}

// ScanConfig is the static policy for the scan loop.
type ScanConfig struct {
	TopN              int
	Interval          time.Duration
	SignalCooldown    time.Duration
	MovementCooldown  time.Duration
	MovementThreshold float64 // absolute percent
	SubjectDelay      time.Duration
}

// MarketScanner periodically pulls the top-N subjects, evaluates technical
// signals and raw movement thresholds per timeframe, and enqueues admitted
// notifications.
type MarketScanner struct {
	tracer     trace.Tracer
	market     MarketData
	registry   *alert.Registry
	dispatcher Enqueuer
	cfg        ScanConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewMarketScanner(
	tracer trace.Tracer,
	market MarketData,
	registry *alert.Registry,
	dispatcher Enqueuer,
	cfg ScanConfig,
) *MarketScanner {
	return &MarketScanner{
		tracer:     tracer,
		market:     market,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Start runs one cycle immediately, then on every interval tick. Blocks until
// ctx is cancelled. A failed cycle never stops the loop; no state carries
// over between cycles.
func (s *MarketScanner) Start(ctx context.Context) {
	if s.market == nil || s.dispatcher == nil {
		log.Println("Market scanner disabled: missing market data or dispatcher")
		<-ctx.Done()
		return
	}

	log.Printf("Market scanner starting (top %d, every %s)...", s.cfg.TopN, s.cfg.Interval)
	s.RunCycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Market scanner stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one scan pass. A top-N fetch failure aborts the whole
// cycle; a failure on a single subject is logged and skipped.
func (s *MarketScanner) RunCycle(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "scanner.run-cycle")
	defer span.End()

	subjects, err := s.market.TopSubjects(ctx, s.cfg.TopN)
	if err != nil {
		log.Printf("scan cycle aborted: top subjects fetch failed: %v", err)
		return
	}

	for i, subject := range subjects {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && s.cfg.SubjectDelay > 0 {
			// Spacing between subjects keeps us inside provider quotas.
			s.sleep(ctx, s.cfg.SubjectDelay)
		}
		s.scanSubject(ctx, subject)
	}
}

func (s *MarketScanner) scanSubject(ctx context.Context, subject domain.Subject) {
	ctx, span := s.tracer.Start(ctx, "scanner.scan-subject")
	defer span.End()

	seriesByTF, err := s.market.SeriesForTimeframes(ctx, subject)
	if err != nil {
		log.Printf("skipping %s: series fetch failed: %v", subject.Ticker, err)
		return
	}

	analyzedByTF := make(map[string]*signalengine.Analyzed, len(seriesByTF))
	for _, tf := range domain.Timeframes {
		series, ok := seriesByTF[tf]
		if !ok {
			continue
		}
		analyzed, err := signalengine.Analyze(series)
		if err != nil {
			// Too short to evaluate; not an error for the cycle.
			continue
		}
		analyzedByTF[tf] = analyzed
		s.emitSignals(subject, tf, analyzed)
	}

	s.emitMovements(subject, analyzedByTF)
}

func (s *MarketScanner) emitSignals(subject domain.Subject, timeframe string, analyzed *signalengine.Analyzed) {
	for _, name := range signalengine.Detect(analyzed) {
		key := alert.Key{Subject: subject.Ticker, Name: name, Timeframe: timeframe}
		if !s.registry.Admit(key, s.now().UTC(), s.cfg.SignalCooldown) {
			continue
		}
		req := domain.NotificationRequest{
			Kind:       domain.KindSignal,
			Ticker:     subject.Ticker,
			SignalName: name,
			// Route by the signal name so per-signal channel bindings match;
			// default (NONE) bindings still receive it via the store query.
			SignalType: name,
			Timeframe:  timeframe,
			PriceUSD:   subject.PriceUSD,
			MarketCap:  subject.MarketCap,
		}
		if err := s.dispatcher.Enqueue(req); err != nil {
			log.Printf("enqueue signal %s for %s failed: %v", name, subject.Ticker, err)
		}
	}
}

// emitMovements checks the 1h/24h/7d percentage moves. A movement only fires
// when the magnitude clears the threshold and the matching timeframe's RSI
// confirms an overbought or oversold condition.
func (s *MarketScanner) emitMovements(subject domain.Subject, analyzedByTF map[string]*signalengine.Analyzed) {
	changes := map[string]float64{
		"1h":  subject.Change1hPct,
		"24h": subject.Change24Pct,
		"7d":  subject.Change7dPct,
	}

	for _, period := range domain.MovementPeriods {
		change := changes[period.Label]
		if math.Abs(change) < s.cfg.MovementThreshold {
			continue
		}
		analyzed := analyzedByTF[period.Timeframe]
		if analyzed == nil {
			continue
		}
		rsi, ok := analyzed.LatestRSI()
		if !ok || (rsi <= rsiOverbought && rsi >= rsiOversold) {
			continue
		}

		name := period.Label + "_move"
		key := alert.Key{Subject: subject.Ticker, Name: name, Timeframe: period.Label}
		if !s.registry.Admit(key, s.now().UTC(), s.cfg.MovementCooldown) {
			continue
		}

		req := domain.NotificationRequest{
			Kind:       domain.KindMovement,
			Ticker:     subject.Ticker,
			SignalName: name,
			SignalType: domain.DefaultSignalType,
			Timeframe:  period.Label,
			PriceUSD:   subject.PriceUSD,
			MarketCap:  subject.MarketCap,
			ChangePct:  change,
			RSI:        rsi,
		}
		if err := s.dispatcher.Enqueue(req); err != nil {
			log.Printf("enqueue movement %s for %s failed: %v", name, subject.Ticker, err)
		}
	}
}

// WithClock overrides the scanner clock and subject delay sleeper. Tests only.
func (s *MarketScanner) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) *MarketScanner {
	if now != nil {
		s.now = now
	}
	if sleep != nil {
		s.sleep = sleep
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
