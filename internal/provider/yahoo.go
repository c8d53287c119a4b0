package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/marketmill/rotor/internal/domain/market"
	"github.com/marketmill/rotor/internal/net/ratelimit"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooConfig tunes the chart-API client.
type YahooConfig struct {
	BaseURL string

	// RequestsPerSecond is the burst-1 RPS ceiling toward the backend.
	RequestsPerSecond float64

	// DailyQuota is the total request budget per 24h, enforced FIFO.
	DailyQuota int

	Timeout time.Duration
}

// DefaultYahooConfig returns conservative free-tier limits.
func DefaultYahooConfig() YahooConfig {
	return YahooConfig{
		BaseURL:           defaultBaseURL,
		RequestsPerSecond: 2,
		DailyQuota:        2000,
		Timeout:           10 * time.Second,
	}
}

// YahooProvider implements Provider against the Yahoo Finance chart API.
// Every network call passes the daily quota bucket, then the RPS limiter,
// then the circuit breaker.
type YahooProvider struct {
	cfg     YahooConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	rps     *rate.Limiter
	quota   *ratelimit.Bucket
	cache   *CandleCache
	log     zerolog.Logger
}

var _ Provider = (*YahooProvider)(nil)

// NewYahooProvider creates the client. cache may be nil to disable caching.
func NewYahooProvider(cfg YahooConfig, cache *CandleCache, logger zerolog.Logger) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.DailyQuota <= 0 {
		cfg.DailyQuota = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{Name: "yahoo_chart"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}

	return &YahooProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		rps:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		quota:   ratelimit.NewBucket(cfg.DailyQuota),
		cache:   cache,
		log:     logger.With().Str("component", "yahoo_provider").Logger(),
	}
}

// QuotaRemaining reports whole tokens left in today's budget.
func (y *YahooProvider) QuotaRemaining() int {
	return y.quota.Remaining()
}

// Close releases the quota bucket's admission worker.
func (y *YahooProvider) Close() {
	y.quota.Close()
}

// chartResponse mirrors the subset of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchCandles returns up to days of daily closes for ticker, oldest first.
// Null bars from partially-reported sessions are dropped.
func (y *YahooProvider) FetchCandles(ctx context.Context, ticker string, days int) (market.Candles, error) {
	if days <= 0 {
		days = 1
	}

	if y.cache != nil {
		if candles, ok := y.cache.Get(ctx, ticker, days); ok {
			return candles, nil
		}
	}

	url := fmt.Sprintf("%s/%s?interval=1d&range=%dd", y.cfg.BaseURL, ticker, days)
	resp, err := y.get(ctx, url)
	if err != nil {
		return market.Candles{}, err
	}

	candles, err := parseChart(ticker, resp)
	if err != nil {
		return market.Candles{}, err
	}

	if y.cache != nil {
		y.cache.Set(ctx, days, candles)
	}
	return candles, nil
}

// FetchCurrentPrice returns the latest trade price, preferring the live
// market quote over the last daily close.
func (y *YahooProvider) FetchCurrentPrice(ctx context.Context, ticker string) (float64, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.cfg.BaseURL, ticker)
	resp, err := y.get(ctx, url)
	if err != nil {
		return 0, err
	}

	if len(resp.Chart.Result) > 0 && resp.Chart.Result[0].Meta.RegularMarketPrice > 0 {
		return resp.Chart.Result[0].Meta.RegularMarketPrice, nil
	}

	candles, err := parseChart(ticker, resp)
	if err != nil {
		return 0, err
	}
	price := candles.LastPrice()
	if price <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return price, nil
}

// FetchMultiplePrices resolves what it can; a failed ticker is logged and
// left out so one bad symbol cannot starve a cycle.
func (y *YahooProvider) FetchMultiplePrices(ctx context.Context, tickers []string) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		price, err := y.FetchCurrentPrice(ctx, ticker)
		if err != nil {
			y.log.Warn().Err(err).Str("ticker", ticker).Msg("price fetch failed, skipping")
			continue
		}
		prices[ticker] = price
	}
	return prices
}

func (y *YahooProvider) get(ctx context.Context, url string) (*chartResponse, error) {
	if err := y.quota.Acquire(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	}
	if err := y.rps.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}

	body, err := y.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "rotor/1.0")

		resp, err := y.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chart api status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	})
	if err != nil {
		return nil, fmt.Errorf("chart request: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body.([]byte), &parsed); err != nil {
		return nil, fmt.Errorf("chart decode: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	return &parsed, nil
}

func parseChart(ticker string, resp *chartResponse) (market.Candles, error) {
	if len(resp.Chart.Result) == 0 {
		return market.Candles{}, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return market.Candles{}, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	quote := result.Indicators.Quote[0]

	candles := market.Candles{Ticker: ticker}
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		volume := 0.0
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		candles.Dates = append(candles.Dates, time.Unix(ts, 0).UTC())
		candles.Prices = append(candles.Prices, *quote.Close[i])
		candles.Volumes = append(candles.Volumes, volume)
	}

	if candles.Len() == 0 {
		return market.Candles{}, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return candles, nil
}
