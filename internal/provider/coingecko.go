package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"market-sentry/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	hourlyLookbackDays = 30
	dailyLookbackDays  = 365
)

type marketEntry struct {
	ID                  string   `json:"id"`
	Symbol              string   `json:"symbol"`
	Name                string   `json:"name"`
	CurrentPrice        float64  `json:"current_price"`
	MarketCap           float64  `json:"market_cap"`
	PriceChange1h       *float64 `json:"price_change_percentage_1h_in_currency"`
	PriceChange24h      *float64 `json:"price_change_percentage_24h_in_currency"`
	PriceChange7d       *float64 `json:"price_change_percentage_7d_in_currency"`
	PriceChangeFallback *float64 `json:"price_change_percentage_24h"`
}

type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// CoinGecko fetches market rankings and price history from the CoinGecko
// public API.
type CoinGecko struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

func NewCoinGecko(baseURL string, tracer trace.Tracer) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CoinGecko{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		tracer:  tracer,
	}
}

// WithHTTPClient overrides the underlying client, mainly for tests.
func (c *CoinGecko) WithHTTPClient(client *http.Client) *CoinGecko {
	c.client = client
	return c
}

// TopSubjects returns the top n coins by market capitalization with their
// 1h/24h/7d percentage changes.
func (c *CoinGecko) TopSubjects(ctx context.Context, n int) ([]domain.Subject, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.top-subjects")
	defer span.End()

	if n <= 0 {
		n = 20
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", fmt.Sprintf("%d", n))
	q.Set("page", "1")
	q.Set("price_change_percentage", "1h,24h,7d")

	var entries []marketEntry
	if err := c.getJSON(ctx, "/coins/markets?"+q.Encode(), &entries); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	subjects := make([]domain.Subject, 0, len(entries))
	for _, e := range entries {
		s := domain.Subject{
			ID:        e.ID,
			Ticker:    strings.ToUpper(e.Symbol),
			Name:      e.Name,
			PriceUSD:  e.CurrentPrice,
			MarketCap: e.MarketCap,
		}
		if e.PriceChange1h != nil {
			s.Change1hPct = *e.PriceChange1h
		}
		if e.PriceChange24h != nil {
			s.Change24Pct = *e.PriceChange24h
		} else if e.PriceChangeFallback != nil {
			s.Change24Pct = *e.PriceChangeFallback
		}
		if e.PriceChange7d != nil {
			s.Change7dPct = *e.PriceChange7d
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}

// HistoricalSeries fetches close/volume history for one coin. The hourly
// timeframe uses a 30 day hourly chart; everything else is built from a one
// year daily chart.
func (c *CoinGecko) HistoricalSeries(ctx context.Context, subject domain.Subject, timeframe string) (domain.Series, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.historical-series")
	defer span.End()

	days := dailyLookbackDays
	interval := "daily"
	if timeframe == domain.TimeframeHourly {
		days = hourlyLookbackDays
		interval = "hourly"
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", fmt.Sprintf("%d", days))
	q.Set("interval", interval)

	path := fmt.Sprintf("/coins/%s/market_chart?%s", url.PathEscape(subject.ID), q.Encode())
	var chart marketChart
	if err := c.getJSON(ctx, path, &chart); err != nil {
		return domain.Series{}, fmt.Errorf("fetch market chart for %s: %w", subject.ID, err)
	}

	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, v := range chart.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}

	bars := make([]domain.Bar, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		ms := int64(p[0])
		bars = append(bars, domain.Bar{
			Timestamp: time.UnixMilli(ms).UTC(),
			Close:     p[1],
			Volume:    volumes[ms],
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	return domain.Series{Subject: subject.Ticker, Timeframe: timeframe, Bars: bars}, nil
}

func (c *CoinGecko) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
