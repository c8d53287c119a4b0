package portfolio

import "time"

// Position is a single holding. Positions are owned exclusively by the
// Portfolio that created them; accessors hand out value copies.
type Position struct {
	Ticker       string    `json:"ticker"`
	Shares       int       `json:"shares"`
	EntryPrice   float64   `json:"entry_price"`
	EntryScore   float64   `json:"entry_score"`
	EntryTime    time.Time `json:"entry_time"`
	CurrentPrice float64   `json:"current_price"`
	CurrentScore float64   `json:"current_score"`

	// PeakPrice is the highest price observed since entry. It never
	// decreases and always satisfies PeakPrice >= EntryPrice.
	PeakPrice float64 `json:"peak_price"`
}

// Value returns the marked-to-market value of the holding.
func (p *Position) Value() float64 {
	return float64(p.Shares) * p.CurrentPrice
}

// EntryValue returns the cost basis of the holding.
func (p *Position) EntryValue() float64 {
	return float64(p.Shares) * p.EntryPrice
}

// UnrealizedPnL returns the open profit or loss in dollars.
func (p *Position) UnrealizedPnL() float64 {
	return p.Value() - p.EntryValue()
}

// UnrealizedPnLPercent returns the open profit or loss relative to entry.
func (p *Position) UnrealizedPnLPercent() float64 {
	entry := p.EntryValue()
	if entry == 0 {
		return 0
	}
	return p.UnrealizedPnL() / entry * 100
}

// Drawdown returns the percentage decline of the current price from the peak
// price observed since entry. Zero or negative.
func (p *Position) Drawdown() float64 {
	if p.PeakPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.PeakPrice) / p.PeakPrice * 100
}

// IsStopLossHit reports whether unrealized P&L has fallen to or below the
// threshold percent (e.g. -15). The boundary is inclusive.
func (p *Position) IsStopLossHit(thresholdPercent float64) bool {
	return p.UnrealizedPnLPercent() <= thresholdPercent
}

// updatePrice marks the holding to a new price, advancing the peak
// monotonically. Only the owning Portfolio calls this.
func (p *Position) updatePrice(price float64) {
	p.CurrentPrice = price
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
}
