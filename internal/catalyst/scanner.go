// Package catalyst detects bullish catalysts over candle history and
// aggregates them into a normalized score per ticker. The decision engine
// depends only on the Scanner capability; this package also ships the
// default weighted implementation.
package catalyst

import (
	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/domain/indicators"
	"github.com/marketmill/rotor/internal/domain/market"
)

// Signal names.
const (
	SignalAnalystUpgrade   = "analyst_upgrade"
	SignalEarningsSurprise = "earnings_surprise"
	SignalRSICrossover     = "rsi_crossover_above_50"
	SignalMACDBullish      = "macd_bullish_crossover"
	SignalVolumeSurge      = "volume_surge"
	SignalNewsSentiment    = "news_sentiment_spike"
	SignalSectorRotation   = "sector_rotation_inflow"
)

// signalWeights sum to 1.0; the aggregate is the sum of triggered weights
// capped at 1.0.
var signalWeights = map[string]float64{
	SignalAnalystUpgrade:   0.25, // >=15% price-target upside
	SignalEarningsSurprise: 0.20, // >+10% surprise
	SignalRSICrossover:     0.15, // RSI crossing above 50 from below
	SignalMACDBullish:      0.15, // histogram crossing non-negative
	SignalVolumeSurge:      0.10, // >2x 20-day average volume
	SignalNewsSentiment:    0.10, // sentiment > 0.7
	SignalSectorRotation:   0.05, // positive sector momentum
}

// Trigger thresholds.
const (
	analystUpsideMin     = 0.15
	earningsSurpriseMin  = 0.10
	rsiCrossLevel        = 50.0
	rsiOverbought        = 75.0
	volumeSurgeThreshold = 2.0
	sentimentSpikeMin    = 0.7
	negativeDaysForExit  = 3
)

// Signals is the aggregated catalyst output for one ticker.
type Signals struct {
	Ticker          string   `json:"ticker"`
	Signals         []string `json:"signals"`
	AggregatedScore float64  `json:"aggregated_score"`
}

// Extras carries the optional alternative-data inputs a richer provider can
// supply. Zero values mean "unknown" and trigger nothing.
type Extras struct {
	AnalystTarget    float64
	EarningsSurprise float64
	NewsSentiment    float64
	SectorMomentum   float64
}

// Scanner is the catalyst capability the engine consumes.
type Scanner interface {
	// ScanMultiple returns catalyst signals aligned by index to the input.
	ScanMultiple(candlesList []market.Candles) []Signals
}

// WeightedScanner detects catalysts from price/volume patterns plus any
// supplied alternative signals, summing fixed weights per trigger.
type WeightedScanner struct {
	rsiPeriod int
	extras    map[string]Extras
	log       zerolog.Logger
}

var _ Scanner = (*WeightedScanner)(nil)

// NewWeightedScanner returns the default scanner.
func NewWeightedScanner(logger zerolog.Logger) *WeightedScanner {
	return &WeightedScanner{
		rsiPeriod: indicators.DefaultRSIPeriod,
		extras:    make(map[string]Extras),
		log:       logger.With().Str("component", "catalyst").Logger(),
	}
}

// SetExtras installs alternative-data inputs for a ticker ahead of a scan.
func (w *WeightedScanner) SetExtras(ticker string, extras Extras) {
	w.extras[ticker] = extras
}

// ScanMultiple scans every candle history, index-aligned with the input.
func (w *WeightedScanner) ScanMultiple(candlesList []market.Candles) []Signals {
	out := make([]Signals, len(candlesList))
	for i, candles := range candlesList {
		out[i] = w.scan(candles)
	}
	return out
}

func (w *WeightedScanner) scan(candles market.Candles) Signals {
	result := Signals{Ticker: candles.Ticker}
	if candles.Len() < 2 {
		return result
	}

	prices := candles.Prices
	extras := w.extras[candles.Ticker]

	if extras.AnalystTarget > 0 {
		current := candles.LastPrice()
		if current > 0 && (extras.AnalystTarget-current)/current >= analystUpsideMin {
			result.add(SignalAnalystUpgrade)
		}
	}

	if extras.EarningsSurprise > earningsSurpriseMin {
		result.add(SignalEarningsSurprise)
	}

	rsiNow := indicators.CalculateRSI(prices, w.rsiPeriod)
	rsiPrev := indicators.CalculateRSI(prices[:len(prices)-1], w.rsiPeriod)
	if rsiPrev <= rsiCrossLevel && rsiNow > rsiCrossLevel {
		result.add(SignalRSICrossover)
	}

	if hist := histogramTail(prices); indicators.DetectMACDCrossover(hist) {
		result.add(SignalMACDBullish)
	}

	if indicators.CalculateVolumeRatio(candles.Volumes) > volumeSurgeThreshold {
		result.add(SignalVolumeSurge)
	}

	if extras.NewsSentiment > sentimentSpikeMin {
		result.add(SignalNewsSentiment)
	}

	if extras.SectorMomentum > 0 {
		result.add(SignalSectorRotation)
	}

	if len(result.Signals) > 0 {
		w.log.Debug().
			Str("ticker", candles.Ticker).
			Strs("signals", result.Signals).
			Float64("score", result.AggregatedScore).
			Msg("catalysts detected")
	}
	return result
}

func (s *Signals) add(name string) {
	s.Signals = append(s.Signals, name)
	s.AggregatedScore += signalWeights[name]
	if s.AggregatedScore > 1 {
		s.AggregatedScore = 1
	}
}

// ExitCheck is the result of evaluating a held position for exit signals.
type ExitCheck struct {
	ShouldExit bool   `json:"should_exit"`
	Reason     string `json:"reason,omitempty"`
}

// ShouldExit evaluates exit signals for a held position: overbought RSI, a
// bearish MACD crossover, an achieved analyst target, or sustained negative
// momentum.
func (w *WeightedScanner) ShouldExit(candles market.Candles, consecutiveNegativeDays int) ExitCheck {
	if candles.Len() == 0 {
		return ExitCheck{}
	}

	prices := candles.Prices

	if rsi := indicators.CalculateRSI(prices, w.rsiPeriod); rsi > rsiOverbought {
		return ExitCheck{ShouldExit: true, Reason: "RSI > 75 (overbought)"}
	}

	if hist := histogramTail(prices); len(hist) >= 2 {
		if hist[len(hist)-2] > 0 && hist[len(hist)-1] <= 0 {
			return ExitCheck{ShouldExit: true, Reason: "MACD bearish crossover"}
		}
	}

	if extras := w.extras[candles.Ticker]; extras.AnalystTarget > 0 && candles.LastPrice() >= extras.AnalystTarget {
		return ExitCheck{ShouldExit: true, Reason: "analyst price target achieved"}
	}

	if consecutiveNegativeDays >= negativeDaysForExit {
		return ExitCheck{ShouldExit: true, Reason: "3 consecutive days of negative momentum"}
	}

	return ExitCheck{}
}

// histogramTail returns the last two growing-window MACD histogram values,
// enough for crossover detection without recomputing the full series.
func histogramTail(prices []float64) []float64 {
	if len(prices) < 27 {
		return nil
	}
	return []float64{
		indicators.CalculateMACD(prices[:len(prices)-1]).Histogram,
		indicators.CalculateMACD(prices).Histogram,
	}
}
