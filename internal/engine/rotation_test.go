package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketmill/rotor/internal/domain/portfolio"
)

func newEngine(cfg Config) *Engine {
	return New(cfg, zerolog.Nop())
}

func newLedger(t *testing.T, capital float64) *portfolio.Portfolio {
	t.Helper()
	p, err := portfolio.New(capital)
	require.NoError(t, err)
	return p
}

func TestEvaluate_EmptyPortfolioBuysBestCandidate(t *testing.T) {
	e := newEngine(DefaultConfig())
	p := newLedger(t, 10000)

	scores := map[string]float64{"NVDA": 0.85, "AMD": 0.70, "NET": 0.40}
	prices := map[string]float64{"NVDA": 100, "AMD": 150, "NET": 80}

	decisions := e.Evaluate(p, scores, prices)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionBuy, decisions[0].Action)
	assert.Equal(t, "NVDA", decisions[0].ToTicker)
	assert.Equal(t, 90, decisions[0].Shares, "90%% of 10k cash at 100")
}

func TestEvaluate_NoCandidateClearsEntryBar(t *testing.T) {
	e := newEngine(DefaultConfig())
	p := newLedger(t, 10000)

	decisions := e.Evaluate(p, map[string]float64{"NET": 0.55}, map[string]float64{"NET": 80})
	assert.Empty(t, decisions, "0.55 does not clear the 0.60 bar")
}

func TestEvaluate_RotationAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtectSoleHolding = false
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 80, 100, 0.50).OK())

	scores := map[string]float64{"NVDA": 0.60, "NET": 0.50}
	prices := map[string]float64{"NVDA": 100, "NET": 80}

	decisions := e.Evaluate(p, scores, prices)
	require.NotEmpty(t, decisions)
	rot := decisions[0]
	assert.Equal(t, ActionRotate, rot.Action)
	assert.Equal(t, "NET", rot.FromTicker)
	assert.Equal(t, "NVDA", rot.ToTicker)
}

func TestEvaluate_RotationWithinThresholdHolds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtectSoleHolding = false
	cfg.MinCash = 1e12 // suppress buys for this case
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 80, 100, 0.50).OK())

	// +0.02 exactly does not exceed the threshold; tiny deltas never thrash.
	decisions := e.Evaluate(p, map[string]float64{"NVDA": 0.52}, map[string]float64{"NVDA": 100})
	assert.Empty(t, decisions)
}

func TestEvaluate_SoleHoldingProtection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCash = 1e12
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 80, 100, 0.30).OK())

	decisions := e.Evaluate(p, map[string]float64{"NVDA": 0.90}, map[string]float64{"NVDA": 100})
	assert.Empty(t, decisions, "sole holding is protected by default")

	cfg.ProtectSoleHolding = false
	decisions = newEngine(cfg).Evaluate(p, map[string]float64{"NVDA": 0.90}, map[string]float64{"NVDA": 100})
	assert.NotEmpty(t, decisions)
}

func TestEvaluate_MaxRotationsPerRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtectSoleHolding = false
	cfg.MinCash = 1e12
	e := newEngine(cfg)

	p := newLedger(t, 100000)
	require.True(t, p.AddPosition("AAA", 100, 100, 0.30).OK())
	require.True(t, p.AddPosition("BBB", 100, 100, 0.35).OK())

	scores := map[string]float64{"XXX": 0.90, "YYY": 0.85}
	prices := map[string]float64{"XXX": 50, "YYY": 60, "AAA": 100, "BBB": 100}

	decisions := e.Evaluate(p, scores, prices)
	rotations := 0
	for _, d := range decisions {
		if d.Action == ActionRotate {
			rotations++
		}
	}
	assert.Equal(t, 1, rotations)
}

func TestEvaluate_StopLossOverridesScores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCash = 1e12
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 100, 80, 0.90).OK())
	p.UpdatePrices(map[string]float64{"NET": 80}) // -20% from entry

	// The holding scores far above every candidate; the stop-loss still
	// wins.
	decisions := e.Evaluate(p, map[string]float64{"NVDA": 0.10}, map[string]float64{"NVDA": 100, "NET": 80})
	require.NotEmpty(t, decisions)
	assert.Equal(t, ActionSell, decisions[0].Action)
	assert.Equal(t, "NET", decisions[0].FromTicker)
	assert.Contains(t, decisions[0].Reason, "stop-loss")
}

func TestEvaluateWithExits_SellsFlaggedHoldings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCash = 1e12
	e := newEngine(cfg)

	p := newLedger(t, 20000)
	require.True(t, p.AddPosition("NVDA", 100, 90, 0.8).OK())
	require.True(t, p.AddPosition("AMD", 100, 90, 0.7).OK())

	exits := map[string]string{"NVDA": "RSI > 75 (overbought)", "GHOST": "not held"}
	decisions := e.EvaluateWithExits(p, nil, map[string]float64{"NVDA": 100, "AMD": 100}, exits)

	require.Len(t, decisions, 1)
	assert.Equal(t, ActionSell, decisions[0].Action)
	assert.Equal(t, "NVDA", decisions[0].FromTicker)
	assert.Contains(t, decisions[0].Reason, "exit signal")
}

func TestEvaluateWithExits_StopLossTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCash = 1e12
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 100, 80, 0.9).OK())
	p.UpdatePrices(map[string]float64{"NET": 80})

	decisions := e.EvaluateWithExits(p, nil, map[string]float64{"NET": 80}, map[string]string{"NET": "overbought"})
	require.Len(t, decisions, 1)
	assert.Contains(t, decisions[0].Reason, "stop-loss", "one sell, stop-loss reason wins")
}

func TestEvaluate_CircuitBreakerLiquidatesEverything(t *testing.T) {
	e := newEngine(DefaultConfig())

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("AAA", 50, 100, 0.5).OK())
	require.True(t, p.AddPosition("BBB", 50, 100, 0.5).OK())
	p.UpdatePrices(map[string]float64{"AAA": 20, "BBB": 20})

	decisions := e.Evaluate(p, map[string]float64{"CCC": 0.99}, map[string]float64{"CCC": 10})
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, ActionSell, d.Action)
		assert.Contains(t, d.Reason, "circuit breaker")
	}
}

func TestExecute_AppliesDecisionsInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProtectSoleHolding = false
	e := newEngine(cfg)

	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("NET", 80, 100, 0.50).OK())

	scores := map[string]float64{"NVDA": 0.80}
	prices := map[string]float64{"NET": 80, "NVDA": 100}
	decisions := e.Evaluate(p, scores, prices)
	require.NotEmpty(t, decisions)

	results := e.Execute(p, decisions, prices, scores)
	require.Len(t, results, len(decisions))
	assert.True(t, results[0].Applied)
	assert.True(t, p.Holds("NVDA"))
	assert.False(t, p.Holds("NET"))
}

func TestExecute_SkipsFailuresWithoutAborting(t *testing.T) {
	e := newEngine(DefaultConfig())
	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("AAA", 100, 90, 0.5).OK())

	decisions := []Decision{
		{Action: ActionRotate, FromTicker: "GHOST", ToTicker: "NVDA", Reason: "bad source"},
		{Action: ActionBuy, ToTicker: "NVDA", Shares: 5000, Reason: "too big"},
		{Action: ActionSell, FromTicker: "AAA", Reason: "fine"},
	}
	prices := map[string]float64{"NVDA": 100, "AAA": 100}

	results := e.Execute(p, decisions, prices, map[string]float64{"NVDA": 0.8})
	require.Len(t, results, 3)

	assert.False(t, results[0].Applied)
	assert.Equal(t, portfolio.RejectUnknownPosition, results[0].Reject)
	assert.False(t, results[1].Applied)
	assert.Equal(t, portfolio.RejectInsufficientFunds, results[1].Reject)
	assert.True(t, results[2].Applied, "later decisions still run")
	assert.False(t, p.Holds("AAA"))
}

func TestExecute_SellFallsBackToLastKnownPrice(t *testing.T) {
	e := newEngine(DefaultConfig())
	p := newLedger(t, 10000)
	require.True(t, p.AddPosition("AAA", 100, 50, 0.5).OK())
	p.UpdatePrices(map[string]float64{"AAA": 90})

	results := e.Execute(p, []Decision{{Action: ActionSell, FromTicker: "AAA"}}, map[string]float64{}, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Applied)
	assert.InDelta(t, 5000+4500, p.Cash(), 1e-9)
}
