package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCalculateRSI_InsufficientHistory(t *testing.T) {
	for n := 0; n < 15; n++ {
		series := risingSeries(n, 100, 1)
		assert.Equal(t, 50.0, CalculateRSI(series, 14), "len=%d should return neutral", n)
	}
}

func TestCalculateRSI_AllGains(t *testing.T) {
	series := risingSeries(30, 100, 0.5)
	rsi := CalculateRSI(series, 14)

	// With zero losses the tiny substitute denominator drives RSI to the
	// top of the range.
	assert.InDelta(t, 100.0, rsi, 1e-4)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestCalculateRSI_AllLosses(t *testing.T) {
	series := risingSeries(30, 100, -0.5)
	assert.Equal(t, 0.0, CalculateRSI(series, 14))
}

func TestCalculateRSI_MixedMoves(t *testing.T) {
	series := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107, 109}
	rsi := CalculateRSI(series, 14)
	assert.Greater(t, rsi, 50.0, "net uptrend should read above neutral")
	assert.Less(t, rsi, 100.0)
}

func TestCalculateEMA_Defaults(t *testing.T) {
	assert.Equal(t, 0.0, CalculateEMA(nil, 12))
	assert.Equal(t, 42.0, CalculateEMA([]float64{42}, 12))
}

func TestCalculateEMA_PathDependent(t *testing.T) {
	full := risingSeries(50, 100, 1)
	tail := full[20:]

	// EMA is seeded from the first element, so truncating the head changes
	// the result even though the recent prices are identical.
	assert.NotEqual(t, CalculateEMA(full, 12), CalculateEMA(tail, 12))

	// A constant series converges on itself.
	flat := []float64{5, 5, 5, 5, 5, 5}
	assert.InDelta(t, 5.0, CalculateEMA(flat, 3), 1e-9)
}

func TestCalculateSMA(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSMA([]float64{1, 2}, 5))

	series := []float64{1, 2, 3, 4, 5, 6}
	assert.InDelta(t, 5.0, CalculateSMA(series, 3), 1e-9)   // (4+5+6)/3
	assert.InDelta(t, 3.5, CalculateSMA(series, 6), 1e-9)   // full mean
	assert.InDelta(t, 6.0, CalculateSMA(series, 1), 1e-9)
}

func TestCalculateMACD_InsufficientHistory(t *testing.T) {
	res := CalculateMACD(risingSeries(25, 100, 1))
	assert.Equal(t, MACDResult{}, res)
}

func TestCalculateMACD_HistogramIdentity(t *testing.T) {
	cases := [][]float64{
		risingSeries(26, 100, 1),
		risingSeries(60, 50, 0.25),
		append(risingSeries(40, 100, 1), risingSeries(20, 140, -2)...),
	}
	for _, series := range cases {
		res := CalculateMACD(series)
		assert.InDelta(t, res.MACD-res.Signal, res.Histogram, 1e-12)
	}
}

func TestCalculateMACD_UptrendPositive(t *testing.T) {
	res := CalculateMACD(risingSeries(80, 100, 1))
	assert.Greater(t, res.MACD, 0.0, "fast EMA should lead slow EMA in an uptrend")
}

func TestCalculateMACD_ShortSeriesSignalIsMean(t *testing.T) {
	// Exactly 26 bars: the growing-window series has one value, so the
	// signal equals the MACD and the histogram is zero.
	res := CalculateMACD(risingSeries(26, 100, 1))
	require.NotZero(t, res.MACD)
	assert.InDelta(t, res.MACD, res.Signal, 1e-12)
	assert.InDelta(t, 0.0, res.Histogram, 1e-12)
}

func TestCalculateVolumeRatio(t *testing.T) {
	assert.Equal(t, 1.0, CalculateVolumeRatio(nil))
	assert.Equal(t, 1.0, CalculateVolumeRatio([]float64{1000}), "no baseline volumes")
	assert.Equal(t, 1.0, CalculateVolumeRatio([]float64{0, 0, 500}), "zero baseline mean")

	// current 300 over baseline mean (100+200)/2 = 150.
	assert.InDelta(t, 2.0, CalculateVolumeRatio([]float64{100, 200, 300}), 1e-9)
}

func TestCalculateVolumeRatio_BaselineWindowCap(t *testing.T) {
	// 30 baseline bars at 100, then 5 recent bars at 1000 before the
	// current bar; only the previous 20 count toward the baseline.
	volumes := make([]float64, 0, 36)
	for i := 0; i < 30; i++ {
		volumes = append(volumes, 100)
	}
	for i := 0; i < 5; i++ {
		volumes = append(volumes, 1000)
	}
	volumes = append(volumes, 700)

	baselineMean := (15.0*100 + 5.0*1000) / 20.0
	assert.InDelta(t, 700.0/baselineMean, CalculateVolumeRatio(volumes), 1e-9)
}

func TestDetectMACDCrossover(t *testing.T) {
	assert.False(t, DetectMACDCrossover(nil))
	assert.False(t, DetectMACDCrossover([]float64{0.5}))
	assert.True(t, DetectMACDCrossover([]float64{-0.2, 0.1}))
	assert.True(t, DetectMACDCrossover([]float64{0.3, -0.2, 0.0}), "zero counts as crossed")
	assert.False(t, DetectMACDCrossover([]float64{0.1, 0.2}))
	assert.False(t, DetectMACDCrossover([]float64{-0.2, -0.1}))
}

func TestDetectRSIDivergence(t *testing.T) {
	assert.False(t, DetectRSIDivergence([]float64{100}, []float64{60}))
	assert.True(t, DetectRSIDivergence([]float64{100, 105}, []float64{65, 60}))
	assert.False(t, DetectRSIDivergence([]float64{105, 100}, []float64{65, 60}), "price falling")
	assert.False(t, DetectRSIDivergence([]float64{100, 105}, []float64{60, 65}), "rsi confirming")
}
