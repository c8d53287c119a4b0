// Package sizing converts scores and capital into share counts. Two
// independent strategies are exposed: a bounded score-scaled allocation and a
// conservative half-Kelly fraction. Callers pick one.
package sizing

import "math"

// Allocation bounds and scaling defaults.
const (
	BaseAllocation       = 0.50
	ConfidenceScaling    = 0.40
	DefaultMinAllocation = 0.10
	DefaultMaxAllocation = 0.90
	DefaultKellyMaxLoss  = 0.15
)

// PositionSize breaks down how an allocation was derived.
type PositionSize struct {
	BaseAllocation  float64 `json:"base_allocation"`
	ScoreAdjustment float64 `json:"score_adjustment"`
	FinalAllocation float64 `json:"final_allocation"`
	Shares          int     `json:"shares"`
}

// CalculatePositionSize sizes a position from portfolio value, price and
// score: a 50% base allocation scaled up to 40 points by conviction, clamped
// to [minAllocation, maxAllocation]. Shares are floor-divided and never
// negative.
func CalculatePositionSize(portfolioValue, currentPrice, score, minAllocation, maxAllocation float64) PositionSize {
	base := BaseAllocation
	adjustment := score * ConfidenceScaling
	final := clamp(base+adjustment, minAllocation, maxAllocation)

	shares := 0
	if currentPrice > 0 && portfolioValue > 0 {
		shares = int(math.Floor(portfolioValue * final / currentPrice))
	}
	if shares < 0 {
		shares = 0
	}

	return PositionSize{
		BaseAllocation:  base,
		ScoreAdjustment: adjustment,
		FinalAllocation: final,
		Shares:          shares,
	}
}

// CalculateKellyFraction computes a half-Kelly bet fraction from expected
// return and win probability. Odds are floored at 0.5 to keep the formula
// stable for weak edges; the result is clamped to [0.1, 0.9].
func CalculateKellyFraction(expectedReturn, winProbability, maxLoss float64) float64 {
	if maxLoss <= 0 {
		maxLoss = DefaultKellyMaxLoss
	}

	b := math.Max(0.5, expectedReturn/maxLoss)
	q := 1 - winProbability
	kelly := (b*winProbability - q) / b

	// Half-Kelly for conservatism.
	return clamp(kelly/2, DefaultMinAllocation, DefaultMaxAllocation)
}

// CalculateSharesWithCash floor-divides an allocation of cash into whole
// shares. The cost never exceeds the allocated cash.
func CalculateSharesWithCash(cash, currentPrice, maxAllocationOfCash float64) int {
	if cash <= 0 || currentPrice <= 0 || maxAllocationOfCash <= 0 {
		return 0
	}
	return int(math.Floor(cash * maxAllocationOfCash / currentPrice))
}

// IsValidSize reports whether a share count implies an allocation fraction
// within the [0.1, 0.9] bounds.
func IsValidSize(shares int, price, portfolioValue float64) bool {
	if shares <= 0 || portfolioValue <= 0 {
		return false
	}
	allocation := float64(shares) * price / portfolioValue
	return allocation >= DefaultMinAllocation && allocation <= DefaultMaxAllocation
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
