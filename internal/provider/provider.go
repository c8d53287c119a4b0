// Package provider fetches daily equity candles and live quotes from
// market-data backends, shielding callers behind quota admission, RPS
// throttling, a circuit breaker and a Redis read-through cache.
package provider

import (
	"context"
	"errors"

	"github.com/marketmill/rotor/internal/domain/market"
)

// Provider is the market-data surface the engine consumes.
type Provider interface {
	// FetchCandles returns up to days of daily closes for ticker, oldest
	// first.
	FetchCandles(ctx context.Context, ticker string, days int) (market.Candles, error)

	// FetchCurrentPrice returns the latest trade price for ticker.
	FetchCurrentPrice(ctx context.Context, ticker string) (float64, error)

	// FetchMultiplePrices resolves prices for every ticker it can.
	// Tickers that fail are absent from the result, never fatal.
	FetchMultiplePrices(ctx context.Context, tickers []string) map[string]float64
}

// ErrNoData is returned when the backend answers but carries no usable
// series for the ticker.
var ErrNoData = errors.New("provider: no data for ticker")

// ErrQuotaExhausted wraps admission failures from the daily quota bucket.
var ErrQuotaExhausted = errors.New("provider: daily quota exhausted")
