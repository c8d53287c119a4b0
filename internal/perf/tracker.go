// Package perf tracks portfolio value over time and derives the headline
// performance statistics for reports.
package perf

import (
	"math"
	"time"

	"github.com/marketmill/rotor/internal/domain/portfolio"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// ValuePoint is one observation of total portfolio value.
type ValuePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Stats is the summary block reported after each cycle.
type Stats struct {
	TotalReturnPercent float64 `json:"total_return_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	WinRate            float64 `json:"win_rate"`
	ClosedTrades       int     `json:"closed_trades"`
	Observations       int     `json:"observations"`
}

// Tracker accumulates value observations. Not safe for concurrent use; the
// cycle runner owns it.
type Tracker struct {
	points []ValuePoint
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends one observation. Out-of-order timestamps are accepted but
// degrade the return series; callers should record monotonically.
func (t *Tracker) Record(ts time.Time, value float64) {
	t.points = append(t.points, ValuePoint{Time: ts, Value: value})
}

// Points returns a copy of the recorded series.
func (t *Tracker) Points() []ValuePoint {
	out := make([]ValuePoint, len(t.points))
	copy(out, t.points)
	return out
}

// Returns computes the simple return between consecutive observations.
// Fewer than two observations yields an empty slice.
func (t *Tracker) Returns() []float64 {
	if len(t.points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(t.points)-1)
	for i := 1; i < len(t.points); i++ {
		prev := t.points[i-1].Value
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (t.points[i].Value-prev)/prev)
	}
	return out
}

// TotalReturnPercent measures first observation to last.
func (t *Tracker) TotalReturnPercent() float64 {
	if len(t.points) < 2 || t.points[0].Value <= 0 {
		return 0
	}
	first, last := t.points[0].Value, t.points[len(t.points)-1].Value
	return (last - first) / first * 100
}

// MaxDrawdownPercent is the worst peak-to-trough decline across the series.
// Zero or negative.
func (t *Tracker) MaxDrawdownPercent() float64 {
	worst := 0.0
	peak := 0.0
	for _, pt := range t.points {
		if pt.Value > peak {
			peak = pt.Value
		}
		if peak > 0 {
			dd := (pt.Value - peak) / peak * 100
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// SharpeRatio annualizes mean/stddev of the per-observation returns at 252
// trading days, with a zero risk-free rate. Returns 0 when the series is too
// short or flat.
func (t *Tracker) SharpeRatio() float64 {
	returns := t.Returns()
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}

// WinRate pairs exits with the entry that opened them and reports the
// fraction of exits closed above their entry price. Trades must be in ledger
// order. No closed trades yields 0.
func WinRate(trades []portfolio.Trade) (rate float64, closed int) {
	entries := make(map[string]float64)
	wins := 0
	for _, tr := range trades {
		switch tr.Type {
		case portfolio.TradeBuy, portfolio.TradeRotationIn:
			// Top-ups keep the original basis, matching the ledger.
			if _, ok := entries[tr.Ticker]; !ok {
				entries[tr.Ticker] = tr.Price
			}
		case portfolio.TradeSell, portfolio.TradeRotationOut:
			entry, ok := entries[tr.Ticker]
			if !ok {
				continue
			}
			delete(entries, tr.Ticker)
			closed++
			if tr.Price > entry {
				wins++
			}
		}
	}
	if closed == 0 {
		return 0, 0
	}
	return float64(wins) / float64(closed), closed
}

// Stats assembles the full summary from the value series and trade log.
func (t *Tracker) Stats(trades []portfolio.Trade) Stats {
	rate, closed := WinRate(trades)
	return Stats{
		TotalReturnPercent: t.TotalReturnPercent(),
		MaxDrawdownPercent: t.MaxDrawdownPercent(),
		SharpeRatio:        t.SharpeRatio(),
		WinRate:            rate,
		ClosedTrades:       closed,
		Observations:       len(t.points),
	}
}
