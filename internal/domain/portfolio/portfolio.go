// Package portfolio is the authoritative ledger for one portfolio: cash,
// positions, the append-only trade log, peak value, drawdown and the circuit
// breaker. A Portfolio is owned by a single decision cycle at a time; callers
// are responsible for never running overlapping cycles against the same
// instance. There is no internal locking.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Default risk thresholds, in percent.
const (
	DefaultStopLossPercent       = -15.0
	DefaultCircuitBreakerPercent = -30.0
)

// Portfolio tracks cash and holdings. Mutations go exclusively through
// AddPosition, RemovePosition, RotatePosition and UpdatePrices; every
// fallible mutation returns a Result instead of raising.
type Portfolio struct {
	capital     float64
	cash        float64
	peakValue   float64
	positions   map[string]*Position
	trades      []Trade
	nextTradeID int64
	createdAt   time.Time

	now func() time.Time
}

// New creates a ledger with the given starting capital. Non-positive capital
// is the one construction-time error treated as fatal.
func New(initialCapital float64) (*Portfolio, error) {
	if initialCapital <= 0 || math.IsNaN(initialCapital) || math.IsInf(initialCapital, 0) {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}
	return &Portfolio{
		capital:     initialCapital,
		cash:        initialCapital,
		peakValue:   initialCapital,
		positions:   make(map[string]*Position),
		nextTradeID: 1,
		createdAt:   time.Now().UTC(),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock overrides the ledger's time source. Used by tests and backtests.
func (p *Portfolio) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// AddPosition buys shares at price, creating or topping up a holding. On a
// top-up the entry price is left untouched; only shares and the current price
// move. Rejects with RejectInsufficientFunds when the cost exceeds cash.
func (p *Portfolio) AddPosition(ticker string, price float64, shares int, score float64) Result {
	return p.addPosition(ticker, price, shares, score, TradeBuy, "")
}

// AddPositionWithReason is AddPosition with a trade-log annotation.
func (p *Portfolio) AddPositionWithReason(ticker string, price float64, shares int, score float64, reason string) Result {
	return p.addPosition(ticker, price, shares, score, TradeBuy, reason)
}

func (p *Portfolio) addPosition(ticker string, price float64, shares int, score float64, tradeType TradeType, reason string) Result {
	cost := price * float64(shares)
	if cost > p.cash {
		return rejected(RejectInsufficientFunds)
	}

	if pos, held := p.positions[ticker]; held {
		pos.Shares += shares
		pos.CurrentPrice = price
		pos.CurrentScore = score
		if price > pos.PeakPrice {
			pos.PeakPrice = price
		}
	} else {
		p.positions[ticker] = &Position{
			Ticker:       ticker,
			Shares:       shares,
			EntryPrice:   price,
			EntryScore:   score,
			EntryTime:    p.now(),
			CurrentPrice: price,
			CurrentScore: score,
			PeakPrice:    price,
		}
	}

	p.cash -= cost
	p.appendTrade(ticker, tradeType, price, shares, score, reason)
	p.refreshPeak()
	return accepted()
}

// RemovePosition sells the entire holding at price and credits the proceeds
// to cash. Rejects with RejectUnknownPosition when the ticker is not held.
func (p *Portfolio) RemovePosition(ticker string, price float64) Result {
	return p.removePosition(ticker, price, TradeSell, "")
}

// RemovePositionWithReason is RemovePosition with a trade-log annotation.
func (p *Portfolio) RemovePositionWithReason(ticker string, price float64, reason string) Result {
	return p.removePosition(ticker, price, TradeSell, reason)
}

func (p *Portfolio) removePosition(ticker string, price float64, tradeType TradeType, reason string) Result {
	pos, held := p.positions[ticker]
	if !held {
		return rejected(RejectUnknownPosition)
	}

	proceeds := float64(pos.Shares) * price
	p.appendTrade(ticker, tradeType, price, pos.Shares, pos.CurrentScore, reason)
	p.cash += proceeds
	delete(p.positions, ticker)
	p.refreshPeak()
	return accepted()
}

// RotatePosition atomically sells oldTicker at oldPrice and buys as many
// shares of newTicker at newPrice as the proceeds cover. Either both legs
// apply and two trades are appended, or nothing changes. Rejects with
// RejectUnknownPosition or, when the new position would round to zero
// shares, RejectDegenerateRounding.
func (p *Portfolio) RotatePosition(oldTicker string, oldPrice float64, newTicker string, newPrice, newScore float64, reason string) Result {
	pos, held := p.positions[oldTicker]
	if !held {
		return rejected(RejectUnknownPosition)
	}
	if newPrice <= 0 {
		return rejected(RejectDegenerateRounding)
	}

	proceeds := float64(pos.Shares) * oldPrice
	newShares := int(math.Floor(proceeds / newPrice))
	if newShares == 0 {
		return rejected(RejectDegenerateRounding)
	}

	if res := p.removePosition(oldTicker, oldPrice, TradeRotationOut, reason); !res.OK() {
		return res
	}
	// Cannot fail: the buy cost floor-divides out of the credited proceeds.
	return p.addPosition(newTicker, newPrice, newShares, newScore, TradeRotationIn, reason)
}

// UpdatePrices marks every held ticker present in the map to its new price,
// advancing position peaks and then the portfolio peak value. Tickers absent
// from the map carry their stale price forward.
func (p *Portfolio) UpdatePrices(prices map[string]float64) {
	for ticker, price := range prices {
		if pos, held := p.positions[ticker]; held {
			pos.updatePrice(price)
		}
	}
	p.refreshPeak()
}

// UpdateScore refreshes the live score on a held position without touching
// any monetary state.
func (p *Portfolio) UpdateScore(ticker string, score float64) bool {
	pos, held := p.positions[ticker]
	if !held {
		return false
	}
	pos.CurrentScore = score
	return true
}

func (p *Portfolio) appendTrade(ticker string, tradeType TradeType, price float64, shares int, score float64, reason string) {
	p.trades = append(p.trades, Trade{
		ID:         p.nextTradeID,
		Timestamp:  p.now(),
		Ticker:     ticker,
		Type:       tradeType,
		Price:      price,
		Shares:     shares,
		TotalValue: price * float64(shares),
		Score:      score,
		Reason:     reason,
	})
	p.nextTradeID++
}

func (p *Portfolio) refreshPeak() {
	if v := p.TotalValue(); v > p.peakValue {
		p.peakValue = v
	}
}

// Capital returns the immutable starting capital.
func (p *Portfolio) Capital() float64 { return p.capital }

// Cash returns the uninvested balance. Never negative.
func (p *Portfolio) Cash() float64 { return p.cash }

// PeakValue returns the highest total value ever observed.
func (p *Portfolio) PeakValue() float64 { return p.peakValue }

// CreatedAt returns the ledger construction time.
func (p *Portfolio) CreatedAt() time.Time { return p.createdAt }

// TotalValue returns cash plus the marked value of every holding.
func (p *Portfolio) TotalValue() float64 {
	return p.cash + p.HoldingsValue()
}

// HoldingsValue returns the marked value of all holdings.
func (p *Portfolio) HoldingsValue() float64 {
	total := 0.0
	for _, pos := range p.positions {
		total += pos.Value()
	}
	return total
}

// TotalReturnPercent returns the overall return against starting capital.
func (p *Portfolio) TotalReturnPercent() float64 {
	return (p.TotalValue() - p.capital) / p.capital * 100
}

// UnrealizedPnL returns the open profit or loss across all holdings.
func (p *Portfolio) UnrealizedPnL() float64 {
	total := 0.0
	for _, pos := range p.positions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// UnrealizedPnLPercent returns open P&L relative to the holdings cost basis.
func (p *Portfolio) UnrealizedPnLPercent() float64 {
	basis := 0.0
	for _, pos := range p.positions {
		basis += pos.EntryValue()
	}
	if basis == 0 {
		return 0
	}
	return p.UnrealizedPnL() / basis * 100
}

// RealizedPnL returns profit locked in by closed positions.
func (p *Portfolio) RealizedPnL() float64 {
	return p.TotalValue() - p.capital - p.UnrealizedPnL()
}

// MaxDrawdown returns the percentage decline of current total value from the
// peak value. Zero or negative by construction.
func (p *Portfolio) MaxDrawdown() float64 {
	if p.peakValue == 0 {
		return 0
	}
	return (p.TotalValue() - p.peakValue) / p.peakValue * 100
}

// IsCircuitBreakerHit reports whether drawdown has reached the threshold
// percent (e.g. -30). The boundary is inclusive.
func (p *Portfolio) IsCircuitBreakerHit(thresholdPercent float64) bool {
	return p.MaxDrawdown() <= thresholdPercent
}

// CashPercent returns cash as a share of total value.
func (p *Portfolio) CashPercent() float64 {
	total := p.TotalValue()
	if total == 0 {
		return 0
	}
	return p.cash / total * 100
}

// NumPositions returns the count of open holdings.
func (p *Portfolio) NumPositions() int { return len(p.positions) }

// Holds reports whether the ticker is currently held.
func (p *Portfolio) Holds(ticker string) bool {
	_, held := p.positions[ticker]
	return held
}

// Position returns a copy of the named holding.
func (p *Portfolio) Position(ticker string) (Position, bool) {
	pos, held := p.positions[ticker]
	if !held {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all holdings, ordered by ticker.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// StoppedOut returns tickers whose unrealized P&L breaches the stop-loss
// threshold, ordered by ticker.
func (p *Portfolio) StoppedOut(thresholdPercent float64) []string {
	var out []string
	for ticker, pos := range p.positions {
		if pos.IsStopLossHit(thresholdPercent) {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// Trades returns a copy of the append-only trade log in execution order.
func (p *Portfolio) Trades() []Trade {
	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// TradeCount returns the number of recorded trades.
func (p *Portfolio) TradeCount() int { return len(p.trades) }

// ClearTrades empties the trade log. Exists only for test and backtest
// resets; live ledgers never call it.
func (p *Portfolio) ClearTrades() {
	p.trades = nil
}
