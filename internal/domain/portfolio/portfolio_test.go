package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPortfolio(t *testing.T, capital float64) *Portfolio {
	t.Helper()
	p, err := New(capital)
	require.NoError(t, err)
	return p
}

// checkInvariant asserts the ledger identity: total value == cash + sum of
// position values.
func checkInvariant(t *testing.T, p *Portfolio) {
	t.Helper()
	sum := 0.0
	for _, pos := range p.Positions() {
		sum += pos.Value()
	}
	assert.InDelta(t, p.Cash()+sum, p.TotalValue(), 1e-9)
}

func TestNew_RejectsInvalidCapital(t *testing.T) {
	for _, capital := range []float64{0, -1, -10000} {
		_, err := New(capital)
		assert.Error(t, err, "capital=%v", capital)
	}
}

func TestAddPosition_Basic(t *testing.T) {
	p := newTestPortfolio(t, 10000)

	res := p.AddPosition("NVDA", 50, 100, 0.8)
	require.True(t, res.OK())

	assert.Equal(t, 5000.0, p.Cash())
	assert.Equal(t, 1, p.NumPositions())
	assert.InDelta(t, 10000.0, p.TotalValue(), 1e-9)

	pos, held := p.Position("NVDA")
	require.True(t, held)
	assert.Equal(t, 100, pos.Shares)
	assert.Equal(t, 50.0, pos.EntryPrice)
	assert.Equal(t, 50.0, pos.PeakPrice)
	assert.Equal(t, 0.8, pos.EntryScore)

	require.Len(t, p.Trades(), 1)
	trade := p.Trades()[0]
	assert.Equal(t, TradeBuy, trade.Type)
	assert.Equal(t, int64(1), trade.ID)
	assert.Equal(t, 5000.0, trade.TotalValue)
	checkInvariant(t, p)
}

func TestAddPosition_InsufficientFunds(t *testing.T) {
	p := newTestPortfolio(t, 1000)

	res := p.AddPosition("NVDA", 50, 100, 0.8)
	assert.Equal(t, RejectInsufficientFunds, res.Reject)
	assert.False(t, res.OK())

	// No mutation on rejection.
	assert.Equal(t, 1000.0, p.Cash())
	assert.Equal(t, 0, p.NumPositions())
	assert.Equal(t, 0, p.TradeCount())
}

func TestAddPosition_TopUpKeepsEntryPrice(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("AMD", 100, 40, 0.6).OK())
	require.True(t, p.AddPosition("AMD", 120, 10, 0.7).OK())

	pos, _ := p.Position("AMD")
	assert.Equal(t, 50, pos.Shares)
	assert.Equal(t, 100.0, pos.EntryPrice, "entry price is not re-averaged")
	assert.Equal(t, 120.0, pos.CurrentPrice)
	assert.Equal(t, 120.0, pos.PeakPrice)
	assert.Equal(t, 1, p.NumPositions())
	assert.Equal(t, 2, p.TradeCount())
	checkInvariant(t, p)
}

func TestRemovePosition(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("NVDA", 50, 100, 0.8).OK())

	res := p.RemovePosition("NVDA", 60)
	require.True(t, res.OK())
	assert.Equal(t, 11000.0, p.Cash())
	assert.Equal(t, 0, p.NumPositions())
	assert.Equal(t, 11000.0, p.PeakValue(), "peak follows the realized gain")

	trades := p.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, TradeSell, trades[1].Type)
	assert.Equal(t, int64(2), trades[1].ID)
	checkInvariant(t, p)
}

func TestRemovePosition_Unknown(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	res := p.RemovePosition("TSLA", 200)
	assert.Equal(t, RejectUnknownPosition, res.Reject)
	assert.Equal(t, 0, p.TradeCount())
}

func TestUpdatePrices_PeaksAndStalePrices(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("NVDA", 50, 100, 0.8).OK())

	p.UpdatePrices(map[string]float64{"NVDA": 110})
	assert.InDelta(t, 16000.0, p.PeakValue(), 1e-9)

	p.UpdatePrices(map[string]float64{"NVDA": 95, "TSLA": 999})

	pos, _ := p.Position("NVDA")
	assert.Equal(t, 95.0, pos.CurrentPrice)
	assert.Equal(t, 110.0, pos.PeakPrice, "peak persists after price falls")
	assert.InDelta(t, -13.64, pos.Drawdown(), 0.01)

	assert.Less(t, p.MaxDrawdown(), 0.0)
	assert.False(t, pos.IsStopLossHit(DefaultStopLossPercent), "+90%% from entry is not a stop-loss")
	assert.InDelta(t, 16000.0, p.PeakValue(), 1e-9, "peak value never decreases")
	checkInvariant(t, p)

	// A ticker absent from the map keeps its stale price.
	p.UpdatePrices(map[string]float64{})
	pos, _ = p.Position("NVDA")
	assert.Equal(t, 95.0, pos.CurrentPrice)
}

func TestPosition_StopLossBoundary(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("NET", 100, 50, 0.5).OK())

	p.UpdatePrices(map[string]float64{"NET": 85.01})
	pos, _ := p.Position("NET")
	assert.False(t, pos.IsStopLossHit(-15), "just above the bar")

	p.UpdatePrices(map[string]float64{"NET": 85})
	pos, _ = p.Position("NET")
	assert.True(t, pos.IsStopLossHit(-15), "boundary is inclusive")
}

func TestPosition_DrawdownFromPeak(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("SMCI", 50, 100, 0.5).OK())

	p.UpdatePrices(map[string]float64{"SMCI": 85})
	pos, _ := p.Position("SMCI")
	assert.InDelta(t, 70.0, pos.UnrealizedPnLPercent(), 1e-9, "a rise to 85 is a +70%% gain, not a stop")
	assert.False(t, pos.IsStopLossHit(-15))

	p.UpdatePrices(map[string]float64{"SMCI": 110})
	p.UpdatePrices(map[string]float64{"SMCI": 77})
	pos, _ = p.Position("SMCI")
	assert.InDelta(t, -30.0, pos.Drawdown(), 1e-9, "exactly -30%% off the 110 peak")
}

func TestCircuitBreaker_InclusiveBoundary(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("COIN", 100, 100, 0.5).OK())
	require.Equal(t, 0.0, p.Cash())

	p.UpdatePrices(map[string]float64{"COIN": 70.01})
	assert.False(t, p.IsCircuitBreakerHit(DefaultCircuitBreakerPercent))

	p.UpdatePrices(map[string]float64{"COIN": 70})
	assert.InDelta(t, -30.0, p.MaxDrawdown(), 1e-9)
	assert.True(t, p.IsCircuitBreakerHit(DefaultCircuitBreakerPercent))
}

func TestRotatePosition_Success(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("NVDA", 50, 100, 0.6).OK())

	res := p.RotatePosition("NVDA", 50, "PLTR", 30, 0.75, "higher score")
	require.True(t, res.OK())

	assert.False(t, p.Holds("NVDA"))
	pos, held := p.Position("PLTR")
	require.True(t, held)
	assert.Equal(t, 166, pos.Shares, "floor(5000/30)")
	assert.Equal(t, 30.0, pos.EntryPrice)
	assert.Equal(t, 0.75, pos.EntryScore)

	// 5000 cash remaining + 5000 proceeds - 4980 cost.
	assert.InDelta(t, 5020.0, p.Cash(), 1e-9)

	trades := p.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, TradeRotationOut, trades[1].Type)
	assert.Equal(t, "NVDA", trades[1].Ticker)
	assert.Equal(t, TradeRotationIn, trades[2].Type)
	assert.Equal(t, "PLTR", trades[2].Ticker)
	assert.Equal(t, "higher score", trades[2].Reason)
	checkInvariant(t, p)
}

func TestRotatePosition_ZeroSharesIsAtomicNoOp(t *testing.T) {
	p := newTestPortfolio(t, 100)
	require.True(t, p.AddPosition("PENNY", 10, 1, 0.4).OK())
	cashBefore := p.Cash()
	tradesBefore := p.TradeCount()

	res := p.RotatePosition("PENNY", 10, "BIG", 500, 0.9, "")
	assert.Equal(t, RejectDegenerateRounding, res.Reject)

	// Neither leg applied, no trade appended.
	assert.True(t, p.Holds("PENNY"))
	assert.Equal(t, cashBefore, p.Cash())
	assert.Equal(t, tradesBefore, p.TradeCount())
	checkInvariant(t, p)
}

func TestRotatePosition_UnknownSource(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	res := p.RotatePosition("GHOST", 10, "NVDA", 50, 0.9, "")
	assert.Equal(t, RejectUnknownPosition, res.Reject)
}

func TestInvariant_AfterMutationSequence(t *testing.T) {
	p := newTestPortfolio(t, 50000)

	require.True(t, p.AddPosition("NVDA", 50, 200, 0.8).OK())
	checkInvariant(t, p)
	require.True(t, p.AddPosition("AMD", 100, 100, 0.6).OK())
	checkInvariant(t, p)
	p.UpdatePrices(map[string]float64{"NVDA": 60, "AMD": 90})
	checkInvariant(t, p)
	require.True(t, p.RotatePosition("AMD", 90, "PLTR", 25, 0.7, "").OK())
	checkInvariant(t, p)
	require.True(t, p.RemovePosition("NVDA", 55).OK())
	checkInvariant(t, p)
	p.UpdatePrices(map[string]float64{"PLTR": 27})
	checkInvariant(t, p)

	// Trade IDs are monotonic and unique.
	trades := p.Trades()
	for i := 1; i < len(trades); i++ {
		assert.Greater(t, trades[i].ID, trades[i-1].ID)
	}
}

func TestStoppedOut(t *testing.T) {
	p := newTestPortfolio(t, 100000)
	require.True(t, p.AddPosition("AAA", 100, 100, 0.5).OK())
	require.True(t, p.AddPosition("BBB", 100, 100, 0.5).OK())
	require.True(t, p.AddPosition("CCC", 100, 100, 0.5).OK())

	p.UpdatePrices(map[string]float64{"AAA": 80, "BBB": 90, "CCC": 84})
	assert.Equal(t, []string{"AAA", "CCC"}, p.StoppedOut(-15))
}

func TestSnapshot_Roundtrip(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	p.SetClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })

	require.True(t, p.AddPosition("NVDA", 50, 100, 0.8).OK())
	p.UpdatePrices(map[string]float64{"NVDA": 110})
	require.True(t, p.RotatePosition("NVDA", 110, "AMD", 95, 0.85, "rotation").OK())

	snap := p.Snapshot()
	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.InDelta(t, p.Cash(), restored.Cash(), 1e-9)
	assert.InDelta(t, p.TotalValue(), restored.TotalValue(), 1e-9)
	assert.InDelta(t, p.PeakValue(), restored.PeakValue(), 1e-9)
	assert.Equal(t, p.Capital(), restored.Capital())
	assert.Equal(t, p.NumPositions(), restored.NumPositions())
	assert.Equal(t, p.TradeCount(), restored.TradeCount())
	assert.Equal(t, p.Positions(), restored.Positions())

	// New trades continue the ID sequence.
	require.True(t, restored.AddPosition("NET", 10, 1, 0.1).OK())
	trades := restored.Trades()
	assert.Equal(t, snap.NextTradeID, trades[len(trades)-1].ID)
}

func TestFromSnapshot_RejectsCorruptState(t *testing.T) {
	_, err := FromSnapshot(Snapshot{InitialCapital: 0})
	assert.Error(t, err)

	_, err = FromSnapshot(Snapshot{InitialCapital: 1000, Cash: -5})
	assert.Error(t, err)

	_, err = FromSnapshot(Snapshot{
		InitialCapital: 1000,
		Positions:      []Position{{Ticker: "X", Shares: 0}},
	})
	assert.Error(t, err)

	_, err = FromSnapshot(Snapshot{
		InitialCapital: 1000,
		Trades:         []Trade{{ID: 1, Type: TradeType("SHORT")}},
	})
	assert.Error(t, err)
}

func TestClearTrades(t *testing.T) {
	p := newTestPortfolio(t, 10000)
	require.True(t, p.AddPosition("NVDA", 50, 10, 0.5).OK())
	require.Equal(t, 1, p.TradeCount())

	p.ClearTrades()
	assert.Equal(t, 0, p.TradeCount())
	assert.Equal(t, 1, p.NumPositions(), "positions survive a trade-log reset")
}
