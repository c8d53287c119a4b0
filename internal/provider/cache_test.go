package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmill/rotor/internal/domain/market"
)

func sampleCandles() market.Candles {
	return market.Candles{
		Ticker:  "NVDA",
		Dates:   []time.Time{time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		Prices:  []float64{105},
		Volumes: []float64{1_000_000},
	}
}

func TestCandleCache_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := newCandleCache(db, time.Minute, zerolog.Nop())

	payload, err := json.Marshal(sampleCandles())
	require.NoError(t, err)
	mock.ExpectGet("rotor:candles:NVDA:60d").SetVal(string(payload))

	candles, found := cache.Get(context.Background(), "NVDA", 60)
	assert.True(t, found)
	assert.Equal(t, "NVDA", candles.Ticker)
	assert.Equal(t, []float64{105}, candles.Prices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandleCache_MissAndErrorsAreMisses(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := newCandleCache(db, time.Minute, zerolog.Nop())
	ctx := context.Background()

	mock.ExpectGet("rotor:candles:AMD:30d").RedisNil()
	_, found := cache.Get(ctx, "AMD", 30)
	assert.False(t, found)

	mock.ExpectGet("rotor:candles:AMD:30d").SetErr(assert.AnError)
	_, found = cache.Get(ctx, "AMD", 30)
	assert.False(t, found, "transport errors degrade to misses")

	mock.ExpectGet("rotor:candles:AMD:30d").SetVal("{not json")
	_, found = cache.Get(ctx, "AMD", 30)
	assert.False(t, found, "corrupt entries degrade to misses")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandleCache_SetWritesWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := newCandleCache(db, 15*time.Minute, zerolog.Nop())

	payload, err := json.Marshal(sampleCandles())
	require.NoError(t, err)
	mock.ExpectSet("rotor:candles:NVDA:60d", payload, 15*time.Minute).SetVal("OK")

	cache.Set(context.Background(), 60, sampleCandles())
	assert.NoError(t, mock.ExpectationsWereMet())
}
