package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"market-sentry/internal/domain"
	"market-sentry/internal/signal"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	topSubjectsTTL = 5 * time.Minute
	topSubjectsKey = "market:top:%d"
)

type MarketProvider interface {
	TopSubjects(ctx context.Context, n int) ([]domain.Subject, error)
	HistoricalSeries(ctx context.Context, subject domain.Subject, timeframe string) (domain.Series, error)
}

// MarketService serves ranked coins and per-timeframe close/volume history.
// Rankings are cached in Redis for a short window so back-to-back scan cycles
// and bot commands do not hammer the upstream API. Weekly and monthly series
// are resampled from the daily chart rather than fetched separately.
type MarketService struct {
	tracer   trace.Tracer
	provider MarketProvider
	redis    *redis.Client
}

func NewMarketService(tracer trace.Tracer, provider MarketProvider, redisClient *redis.Client) *MarketService {
	return &MarketService{tracer: tracer, provider: provider, redis: redisClient}
}

func (s *MarketService) TopSubjects(ctx context.Context, n int) ([]domain.Subject, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.top-subjects")
	defer span.End()

	key := fmt.Sprintf(topSubjectsKey, n)
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, key).Result(); err == nil {
			var cached []domain.Subject
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && len(cached) > 0 {
				return cached, nil
			}
		}
	}

	subjects, err := s.provider.TopSubjects(ctx, n)
	if err != nil {
		return nil, err
	}

	if s.redis != nil && len(subjects) > 0 {
		if raw, err := json.Marshal(subjects); err == nil {
			if err := s.redis.Set(ctx, key, raw, topSubjectsTTL).Err(); err != nil {
				log.Printf("top subjects cache write failed: %v", err)
			}
		}
	}
	return subjects, nil
}

// SeriesForTimeframes assembles history for every evaluation timeframe from
// two upstream fetches: a 30 day hourly chart and a one year daily chart.
func (s *MarketService) SeriesForTimeframes(ctx context.Context, subject domain.Subject) (map[string]domain.Series, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.series-for-timeframes")
	defer span.End()

	hourly, err := s.provider.HistoricalSeries(ctx, subject, domain.TimeframeHourly)
	if err != nil {
		return nil, fmt.Errorf("hourly series for %s: %w", subject.Ticker, err)
	}
	daily, err := s.provider.HistoricalSeries(ctx, subject, domain.TimeframeDaily)
	if err != nil {
		return nil, fmt.Errorf("daily series for %s: %w", subject.Ticker, err)
	}

	return map[string]domain.Series{
		domain.TimeframeHourly:  hourly,
		domain.TimeframeDaily:   daily,
		domain.TimeframeWeekly:  signal.ResampleWeekly(daily),
		domain.TimeframeMonthly: signal.ResampleMonthly(daily),
	}, nil
}
