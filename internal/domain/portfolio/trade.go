package portfolio

import "time"

// TradeType is the closed set of ledger entry kinds.
type TradeType string

const (
	TradeBuy         TradeType = "BUY"
	TradeSell        TradeType = "SELL"
	TradeRotationIn  TradeType = "ROTATION_IN"
	TradeRotationOut TradeType = "ROTATION_OUT"
)

// Valid reports whether t is one of the four known trade types.
func (t TradeType) Valid() bool {
	switch t {
	case TradeBuy, TradeSell, TradeRotationIn, TradeRotationOut:
		return true
	}
	return false
}

// Trade is an immutable, append-only ledger record. IDs are monotonic and
// unique within a portfolio.
type Trade struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Ticker     string    `json:"ticker"`
	Type       TradeType `json:"type"`
	Price      float64   `json:"price"`
	Shares     int       `json:"shares"`
	TotalValue float64   `json:"total_value"`
	Score      float64   `json:"score,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}
