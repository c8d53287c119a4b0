// Package scoring turns indicator readings and an external catalyst signal
// into a single expected-return score in [0,1] per ticker.
package scoring

import (
	"math"

	"github.com/marketmill/rotor/internal/domain/indicators"
	"github.com/marketmill/rotor/internal/domain/market"
)

// Component weights. Catalyst dominates, momentum acceleration second, trend
// persistence third, entry timing last.
const (
	weightCatalyst     = 0.40
	weightAcceleration = 0.30
	weightTrend        = 0.20
	weightTiming       = 0.10
)

const (
	// MinHistory is the fewest price points a series needs before a ticker
	// can score above zero.
	MinHistory = 6

	// rotationThreshold is the minimum score advantage a candidate must
	// hold over an existing position before rotating is worthwhile.
	rotationThreshold = 0.02

	highConfidence = 0.8
	lowConfidence  = 0.2

	accelLookback = 5
	trendWindow   = 20
)

// RSI timing bands.
const (
	rsiEarlyEntryMin  = 40.0
	rsiEarlyEntryMax  = 60.0
	rsiMidMomentumMax = 70.0
	rsiLateMax        = 75.0
)

// Score is the per-ticker, per-cycle output of the scorer. Components keeps
// the weighted inputs for attribution.
type Score struct {
	Ticker         string             `json:"ticker"`
	ExpectedReturn float64            `json:"expected_return"`
	Components     map[string]float64 `json:"components"`
}

// Scorer computes expected-return scores. Stateless and safe to share across
// goroutines for parallel per-ticker evaluation.
type Scorer struct {
	rsiPeriod int
}

// NewScorer returns a scorer with standard indicator periods.
func NewScorer() *Scorer {
	return &Scorer{rsiPeriod: indicators.DefaultRSIPeriod}
}

// RotationThreshold returns the fixed 0.02 score-advantage bar for rotations.
func (s *Scorer) RotationThreshold() float64 { return rotationThreshold }

// ScoreTickerWithCandles combines the catalyst aggregate with momentum
// acceleration, trend persistence and an RSI/MACD timing factor. Series with
// fewer than MinHistory points score zero.
func (s *Scorer) ScoreTickerWithCandles(ticker string, candles market.Candles, catalyst float64) Score {
	if candles.Len() < MinHistory {
		return Score{
			Ticker:     ticker,
			Components: map[string]float64{"insufficient_data": float64(candles.Len())},
		}
	}

	catalyst = clamp01(catalyst)
	prices := candles.Prices

	acceleration := s.momentumAcceleration(prices)
	trend := trendPersistence(prices)
	timing := s.timingFactor(prices)

	raw := catalyst*weightCatalyst +
		acceleration*weightAcceleration +
		trend*weightTrend +
		timing*weightTiming

	macd := indicators.CalculateMACD(prices)

	return Score{
		Ticker:         ticker,
		ExpectedReturn: clamp01(raw),
		Components: map[string]float64{
			"catalyst":              catalyst,
			"momentum_acceleration": acceleration,
			"trend":                 trend,
			"timing":                timing,
			"rsi":                   indicators.CalculateRSI(prices, s.rsiPeriod),
			"macd_histogram":        macd.Histogram,
			"volume_ratio":          indicators.CalculateVolumeRatio(candles.Volumes),
		},
	}
}

// ApplyMomentumAcceleration applies a convexity remap: scores at or above the
// high-confidence band are pushed further up, scores at or below the
// low-confidence band further down, widening the gap between strong and weak
// signals. Monotone, non-linear, clamped to [0,1].
func (s *Scorer) ApplyMomentumAcceleration(score float64) float64 {
	switch {
	case score >= highConfidence:
		score += (score - highConfidence) * 0.5
	case score <= lowConfidence:
		score -= (lowConfidence - score) * 0.5
	}
	return clamp01(score)
}

// momentumAcceleration measures whether momentum is building: the 5-bar RSI
// delta plus the normalized 5-bar MACD-histogram delta, averaged and clamped
// to [-1, 1].
func (s *Scorer) momentumAcceleration(prices []float64) float64 {
	if len(prices) < accelLookback+1 {
		return 0
	}

	rsiNow := indicators.CalculateRSI(prices, s.rsiPeriod)
	rsiThen := indicators.CalculateRSI(prices[:len(prices)-accelLookback], s.rsiPeriod)
	rsiMomentum := (rsiNow - rsiThen) / 50.0

	macdMomentum := 0.0
	histSeries := histogramSeries(prices)
	if len(histSeries) > accelLookback {
		now := histSeries[len(histSeries)-1]
		then := histSeries[len(histSeries)-1-accelLookback]

		scale := 0.0001
		tail := histSeries
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		for _, h := range tail {
			if a := math.Abs(h); a > scale {
				scale = a
			}
		}
		macdMomentum = (now - then) / scale
	}

	return clamp((rsiMomentum+macdMomentum)/2, -1, 1)
}

// trendPersistence maps the fraction of up-closes over the trailing window to
// [0,1], so sustained uptrends outrank sustained downtrends at equal catalyst
// strength.
func trendPersistence(prices []float64) float64 {
	window := prices
	if len(window) > trendWindow+1 {
		window = window[len(window)-(trendWindow+1):]
	}
	if len(window) < 2 {
		return 0.5
	}

	up := 0
	for i := 1; i < len(window); i++ {
		if window[i] > window[i-1] {
			up++
		}
	}
	return float64(up) / float64(len(window)-1)
}

// timingFactor rewards entries at the start of a momentum move and penalizes
// chasing extended ones. Range [-0.5, 0.5].
func (s *Scorer) timingFactor(prices []float64) float64 {
	rsi := indicators.CalculateRSI(prices, s.rsiPeriod)
	macd := indicators.CalculateMACD(prices)
	macdPositive := macd.Histogram > 0

	hist := histogramSeries(prices)
	weakening := len(hist) > 1 && hist[len(hist)-1] < hist[len(hist)-2]

	switch {
	case rsi >= rsiEarlyEntryMin && rsi <= rsiEarlyEntryMax && macdPositive:
		return 0.5
	case rsi > rsiEarlyEntryMax && rsi <= rsiMidMomentumMax && macdPositive:
		return 0.25
	case rsi > rsiMidMomentumMax && rsi <= rsiLateMax:
		return 0
	case rsi > rsiLateMax || weakening:
		return -0.5
	}
	return 0
}

// histogramSeries recomputes the MACD histogram at each truncation length, in
// step with the growing-window signal-line semantics of the indicator
// package.
func histogramSeries(prices []float64) []float64 {
	if len(prices) < 26 {
		return nil
	}
	out := make([]float64, 0, len(prices)-25)
	for end := 26; end <= len(prices); end++ {
		out = append(out, indicators.CalculateMACD(prices[:end]).Histogram)
	}
	return out
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
