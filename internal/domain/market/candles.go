// Package market holds the shared market-data value types passed between the
// provider layer and the decision engine.
package market

import "time"

// Candles is a chronological (oldest-first) daily OHLCV history for one
// ticker, reduced to the close and volume series the engine consumes.
type Candles struct {
	Ticker  string      `json:"ticker"`
	Dates   []time.Time `json:"dates"`
	Prices  []float64   `json:"prices"`
	Volumes []float64   `json:"volumes"`
}

// Len returns the number of bars.
func (c Candles) Len() int { return len(c.Prices) }

// LastPrice returns the most recent close, or 0 for an empty series.
func (c Candles) LastPrice() float64 {
	if len(c.Prices) == 0 {
		return 0
	}
	return c.Prices[len(c.Prices)-1]
}

// LastVolume returns the most recent volume, or 0 for an empty series.
func (c Candles) LastVolume() float64 {
	if len(c.Volumes) == 0 {
		return 0
	}
	return c.Volumes[len(c.Volumes)-1]
}
