package portfolio

import (
	"fmt"
	"time"
)

// Snapshot is the serializable shape of a ledger. A Portfolio is fully
// reconstructable from its Snapshot, which is what the persistence
// collaborator stores and restores.
type Snapshot struct {
	CreatedAt      time.Time  `json:"created_at"`
	InitialCapital float64    `json:"initial_capital"`
	Cash           float64    `json:"cash"`
	PeakValue      float64    `json:"peak_value"`
	NextTradeID    int64      `json:"next_trade_id"`
	TotalValue     float64    `json:"total_value"`
	HoldingsValue  float64    `json:"holdings_value"`
	UnrealizedPnL  float64    `json:"unrealized_pnl"`
	RealizedPnL    float64    `json:"realized_pnl"`
	TotalReturnPct float64    `json:"total_return_pct"`
	MaxDrawdownPct float64    `json:"max_drawdown_pct"`
	CashPct        float64    `json:"cash_pct"`
	NumPositions   int        `json:"num_positions"`
	Positions      []Position `json:"positions"`
	Trades         []Trade    `json:"trades"`
}

// Snapshot captures the full ledger state plus derived metrics.
func (p *Portfolio) Snapshot() Snapshot {
	return Snapshot{
		CreatedAt:      p.createdAt,
		InitialCapital: p.capital,
		Cash:           p.cash,
		PeakValue:      p.peakValue,
		NextTradeID:    p.nextTradeID,
		TotalValue:     p.TotalValue(),
		HoldingsValue:  p.HoldingsValue(),
		UnrealizedPnL:  p.UnrealizedPnL(),
		RealizedPnL:    p.RealizedPnL(),
		TotalReturnPct: p.TotalReturnPercent(),
		MaxDrawdownPct: p.MaxDrawdown(),
		CashPct:        p.CashPercent(),
		NumPositions:   p.NumPositions(),
		Positions:      p.Positions(),
		Trades:         p.Trades(),
	}
}

// FromSnapshot rebuilds a ledger from persisted state. Derived metrics in the
// snapshot are ignored; only authoritative fields are restored.
func FromSnapshot(s Snapshot) (*Portfolio, error) {
	p, err := New(s.InitialCapital)
	if err != nil {
		return nil, fmt.Errorf("restore portfolio: %w", err)
	}

	if s.Cash < 0 {
		return nil, fmt.Errorf("restore portfolio: negative cash %v", s.Cash)
	}
	p.cash = s.Cash
	if !s.CreatedAt.IsZero() {
		p.createdAt = s.CreatedAt
	}
	if s.PeakValue > 0 {
		p.peakValue = s.PeakValue
	}
	if s.NextTradeID > 0 {
		p.nextTradeID = s.NextTradeID
	}

	for _, pos := range s.Positions {
		if pos.Shares <= 0 {
			return nil, fmt.Errorf("restore portfolio: position %s has %d shares", pos.Ticker, pos.Shares)
		}
		restored := pos
		if restored.PeakPrice < restored.EntryPrice {
			restored.PeakPrice = restored.EntryPrice
		}
		p.positions[restored.Ticker] = &restored
	}

	for _, tr := range s.Trades {
		if !tr.Type.Valid() {
			return nil, fmt.Errorf("restore portfolio: unknown trade type %q", tr.Type)
		}
		p.trades = append(p.trades, tr)
		if tr.ID >= p.nextTradeID {
			p.nextTradeID = tr.ID + 1
		}
	}

	p.refreshPeak()
	return p, nil
}
