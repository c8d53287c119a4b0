package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/domain/market"
)

const (
	candleKeyPrefix = "rotor:candles:"

	// DefaultCandleTTL keeps a daily series warm for one trading session.
	DefaultCandleTTL = 15 * time.Minute
)

// CandleCache is a Redis read-through cache for daily candle series. A cache
// failure is treated as a miss; the provider always has the network path.
type CandleCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCandleCache connects to Redis and verifies the connection.
func NewCandleCache(addr, password string, db int, ttl time.Duration, logger zerolog.Logger) (*CandleCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newCandleCache(rdb, ttl, logger), nil
}

func newCandleCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CandleCache {
	if ttl <= 0 {
		ttl = DefaultCandleTTL
	}
	return &CandleCache{
		client: client,
		ttl:    ttl,
		log:    logger.With().Str("component", "candle_cache").Logger(),
	}
}

func candleKey(ticker string, days int) string {
	return fmt.Sprintf("%s%s:%dd", candleKeyPrefix, ticker, days)
}

// Get returns the cached series for ticker, or found=false on a miss.
func (c *CandleCache) Get(ctx context.Context, ticker string, days int) (market.Candles, bool) {
	raw, err := c.client.Get(ctx, candleKey(ticker, days)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache read failed, treating as miss")
		}
		return market.Candles{}, false
	}

	var candles market.Candles
	if err := json.Unmarshal([]byte(raw), &candles); err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("cache entry corrupt, treating as miss")
		return market.Candles{}, false
	}
	return candles, true
}

// Set stores a series. Failures are logged and swallowed.
func (c *CandleCache) Set(ctx context.Context, days int, candles market.Candles) {
	payload, err := json.Marshal(candles)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", candles.Ticker).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, candleKey(candles.Ticker, days), payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("ticker", candles.Ticker).Msg("cache write failed")
	}
}

// Close releases the Redis connection pool.
func (c *CandleCache) Close() error {
	return c.client.Close()
}
