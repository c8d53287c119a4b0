// Package indicators provides technical indicator calculations over price and
// volume series. All functions are pure and deterministic: malformed or short
// input degrades to a documented neutral default rather than an error.
package indicators

import "math"

const (
	// DefaultRSIPeriod is the standard 14-bar RSI lookback.
	DefaultRSIPeriod = 14

	// neutralRSI is returned when there is not enough history to compute RSI.
	neutralRSI = 50.0

	// minLossDenominator substitutes for a zero average loss so RSI still
	// varies with period and average gain instead of pinning to a constant.
	minLossDenominator = 1e-8

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	volumeBaselineWindow = 20
)

// MACDResult holds the MACD line, signal line and histogram for a series.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateRSI computes the Relative Strength Index over the last period+1
// closes. Series shorter than period+1 return the neutral value 50.
func CalculateRSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return neutralRSI
	}

	window := prices[len(prices)-(period+1):]

	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += math.Abs(delta)
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		avgLoss = minLossDenominator
	}

	rsi := 100.0 - 100.0/(1.0+avgGain/avgLoss)
	return clamp(rsi, 0, 100)
}

// CalculateEMA computes an exponential moving average seeded with the first
// element and iterated across the entire series, so the result is
// path-dependent on the full history supplied.
func CalculateEMA(prices []float64, period int) float64 {
	switch len(prices) {
	case 0:
		return 0
	case 1:
		return prices[0]
	}

	multiplier := 2.0 / (float64(period) + 1.0)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = (p-ema)*multiplier + ema
	}
	return ema
}

// CalculateSMA computes the arithmetic mean of the last period elements, or 0
// when the series is shorter than period.
func CalculateSMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// CalculateMACD computes MACD(12,26) with a 9-period signal line. Series
// shorter than 26 return an all-zero result.
//
// The signal line is built from a growing-window MACD series: a MACD value is
// recomputed at every truncation length from 26 up to the full series, then
// the EMA(9) of the last 9 values is taken (mean of all values when fewer
// than 9 exist). This truncation behavior is the reference semantics; do not
// replace it with a rolling recurrence without revalidating outputs.
func CalculateMACD(prices []float64) MACDResult {
	if len(prices) < macdSlowPeriod {
		return MACDResult{}
	}

	macdSeries := make([]float64, 0, len(prices)-macdSlowPeriod+1)
	for end := macdSlowPeriod; end <= len(prices); end++ {
		window := prices[:end]
		macdSeries = append(macdSeries,
			CalculateEMA(window, macdFastPeriod)-CalculateEMA(window, macdSlowPeriod))
	}

	macd := macdSeries[len(macdSeries)-1]

	var signal float64
	if len(macdSeries) >= macdSignalPeriod {
		signal = CalculateEMA(macdSeries[len(macdSeries)-macdSignalPeriod:], macdSignalPeriod)
	} else {
		sum := 0.0
		for _, v := range macdSeries {
			sum += v
		}
		signal = sum / float64(len(macdSeries))
	}

	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// CalculateVolumeRatio compares the most recent volume against the mean of up
// to the previous 20 volumes. Returns 1 when no baseline exists or the
// baseline mean is zero.
func CalculateVolumeRatio(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 1
	}

	current := volumes[len(volumes)-1]
	baseline := volumes[:len(volumes)-1]
	if len(baseline) > volumeBaselineWindow {
		baseline = baseline[len(baseline)-volumeBaselineWindow:]
	}
	if len(baseline) == 0 {
		return 1
	}

	sum := 0.0
	for _, v := range baseline {
		sum += v
	}
	mean := sum / float64(len(baseline))
	if mean == 0 {
		return 1
	}

	return current / mean
}

// DetectMACDCrossover reports a bullish crossover: the second-to-last
// histogram value is negative and the last is non-negative.
func DetectMACDCrossover(histogram []float64) bool {
	if len(histogram) < 2 {
		return false
	}
	return histogram[len(histogram)-2] < 0 && histogram[len(histogram)-1] >= 0
}

// DetectRSIDivergence reports a bullish divergence: price makes a higher
// close while RSI makes a lower reading.
func DetectRSIDivergence(prices, rsi []float64) bool {
	if len(prices) < 2 || len(rsi) < 2 {
		return false
	}
	priceUp := prices[len(prices)-1] > prices[len(prices)-2]
	rsiDown := rsi[len(rsi)-1] < rsi[len(rsi)-2]
	return priceUp && rsiDown
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
