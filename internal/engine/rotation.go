// Package engine decides and executes portfolio rotations: it compares held
// positions against watchlist candidates, applies risk overrides, and
// mutates the ledger through its public operations only.
package engine

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/domain/portfolio"
	"github.com/marketmill/rotor/internal/domain/sizing"
)

// Action is the decision kind emitted for one cycle.
type Action string

const (
	ActionHold   Action = "HOLD"
	ActionBuy    Action = "BUY"
	ActionSell   Action = "SELL"
	ActionRotate Action = "ROTATE"
)

// Decision is an ephemeral instruction produced by Evaluate and consumed by
// Execute in the same cycle.
type Decision struct {
	Action     Action  `json:"action"`
	FromTicker string  `json:"from_ticker,omitempty"`
	ToTicker   string  `json:"to_ticker,omitempty"`
	Shares     int     `json:"shares,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Reason     string  `json:"reason"`
}

// ExecutionResult reports how one decision fared against the ledger. A
// rejected decision is skipped, never fatal to the batch.
type ExecutionResult struct {
	Decision Decision         `json:"decision"`
	Applied  bool             `json:"applied"`
	Reject   portfolio.Reject `json:"reject,omitempty"`
}

// Config tunes the rotation policy.
type Config struct {
	// RotationThreshold is the minimum score advantage a candidate needs
	// over a holding before a rotation is emitted.
	RotationThreshold float64

	// EntryBar is the minimum candidate score for opening a position with
	// idle cash.
	EntryBar float64

	StopLossPercent       float64
	CircuitBreakerPercent float64

	// MinCash is the smallest cash balance worth deploying.
	MinCash float64

	// MaxRotationsPerRun bounds churn per cycle.
	MaxRotationsPerRun int

	// ProtectSoleHolding, when set, refuses to rotate out of the only
	// position so one marginal upgrade cannot concentrate the book.
	ProtectSoleHolding bool

	MaxAllocationOfCash float64
}

// DefaultConfig returns the standard policy settings.
func DefaultConfig() Config {
	return Config{
		RotationThreshold:     0.02,
		EntryBar:              0.60,
		StopLossPercent:       portfolio.DefaultStopLossPercent,
		CircuitBreakerPercent: portfolio.DefaultCircuitBreakerPercent,
		MinCash:               10,
		MaxRotationsPerRun:    1,
		ProtectSoleHolding:    true,
		MaxAllocationOfCash:   sizing.DefaultMaxAllocation,
	}
}

// Engine applies the rotation policy to one ledger at a time. Callers must
// not run overlapping cycles against the same portfolio.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New creates a rotation engine.
func New(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.MaxRotationsPerRun <= 0 {
		cfg.MaxRotationsPerRun = 1
	}
	return &Engine{cfg: cfg, log: logger.With().Str("component", "rotation").Logger()}
}

// Evaluate produces this cycle's decisions from current holdings, candidate
// scores and prices. Risk overrides come first: a tripped circuit breaker
// liquidates everything; stop-losses sell regardless of relative scores.
// Score-driven rotations and cash deployments follow. An empty slice means
// hold.
func (e *Engine) Evaluate(p *portfolio.Portfolio, scores map[string]float64, prices map[string]float64) []Decision {
	return e.EvaluateWithExits(p, scores, prices, nil)
}

// EvaluateWithExits is Evaluate with scanner exit signals merged into the
// risk overrides: a held ticker present in exits is sold with the given
// reason before rotations are considered.
func (e *Engine) EvaluateWithExits(p *portfolio.Portfolio, scores map[string]float64, prices map[string]float64, exits map[string]string) []Decision {
	var decisions []Decision

	if p.IsCircuitBreakerHit(e.cfg.CircuitBreakerPercent) {
		for _, pos := range p.Positions() {
			decisions = append(decisions, Decision{
				Action:     ActionSell,
				FromTicker: pos.Ticker,
				Reason:     fmt.Sprintf("circuit breaker: drawdown %.1f%% <= %.1f%%", p.MaxDrawdown(), e.cfg.CircuitBreakerPercent),
			})
		}
		e.log.Warn().Float64("drawdown_pct", p.MaxDrawdown()).Msg("circuit breaker tripped, liquidating")
		return decisions
	}

	sold := make(map[string]bool)
	for _, pos := range p.Positions() {
		switch {
		case pos.IsStopLossHit(e.cfg.StopLossPercent):
			sold[pos.Ticker] = true
			decisions = append(decisions, Decision{
				Action:     ActionSell,
				FromTicker: pos.Ticker,
				Reason:     fmt.Sprintf("stop-loss: %.1f%% <= %.1f%%", pos.UnrealizedPnLPercent(), e.cfg.StopLossPercent),
			})
		case exits[pos.Ticker] != "":
			sold[pos.Ticker] = true
			decisions = append(decisions, Decision{
				Action:     ActionSell,
				FromTicker: pos.Ticker,
				Reason:     fmt.Sprintf("exit signal: %s", exits[pos.Ticker]),
			})
		}
	}

	rotations := e.rotationCandidates(p, scores, sold)
	rotatedTo := make(map[string]bool)
	for _, rot := range rotations {
		if len(rotatedTo) >= e.cfg.MaxRotationsPerRun {
			break
		}
		if rotatedTo[rot.to] || sold[rot.from] {
			continue
		}
		if _, ok := prices[rot.to]; !ok {
			continue
		}
		rotatedTo[rot.to] = true
		sold[rot.from] = true
		decisions = append(decisions, Decision{
			Action:     ActionRotate,
			FromTicker: rot.from,
			ToTicker:   rot.to,
			Score:      scores[rot.to],
			Reason:     fmt.Sprintf("score improved from %.3f to %.3f (+%.3f)", rot.heldScore, scores[rot.to], rot.gain),
		})
	}

	if buy := e.buyDecision(p, scores, prices, rotatedTo); buy != nil {
		decisions = append(decisions, *buy)
	}

	return decisions
}

type rotation struct {
	from      string
	to        string
	heldScore float64
	gain      float64
}

// rotationCandidates pairs every holding with every better-scoring unheld
// candidate, best gains first.
func (e *Engine) rotationCandidates(p *portfolio.Portfolio, scores map[string]float64, sold map[string]bool) []rotation {
	if e.cfg.ProtectSoleHolding && p.NumPositions() == 1 {
		return nil
	}

	var out []rotation
	for _, pos := range p.Positions() {
		if sold[pos.Ticker] {
			continue
		}
		heldScore := pos.CurrentScore
		for candidate, score := range scores {
			if p.Holds(candidate) {
				continue
			}
			if gain := score - heldScore; gain > e.cfg.RotationThreshold {
				out = append(out, rotation{from: pos.Ticker, to: candidate, heldScore: heldScore, gain: gain})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].gain != out[j].gain {
			return out[i].gain > out[j].gain
		}
		return out[i].to < out[j].to
	})
	return out
}

// buyDecision deploys idle cash into the best unheld candidate clearing the
// entry bar, skipping tickers already being rotated into.
func (e *Engine) buyDecision(p *portfolio.Portfolio, scores map[string]float64, prices map[string]float64, rotatedTo map[string]bool) *Decision {
	if p.Cash() < e.cfg.MinCash {
		return nil
	}

	bestTicker := ""
	bestScore := e.cfg.EntryBar
	for candidate, score := range scores {
		if p.Holds(candidate) || rotatedTo[candidate] {
			continue
		}
		if score > bestScore || (score == bestScore && bestTicker != "" && candidate < bestTicker) {
			bestTicker = candidate
			bestScore = score
		}
	}
	if bestTicker == "" {
		return nil
	}

	price, ok := prices[bestTicker]
	if !ok || price <= 0 {
		return nil
	}

	shares := sizing.CalculateSharesWithCash(p.Cash(), price, e.cfg.MaxAllocationOfCash)
	if shares == 0 {
		return nil
	}

	return &Decision{
		Action:   ActionBuy,
		ToTicker: bestTicker,
		Shares:   shares,
		Score:    bestScore,
		Reason:   fmt.Sprintf("score %.3f clears entry bar %.3f", bestScore, e.cfg.EntryBar),
	}
}

// Execute applies decisions to the ledger in order at current prices. Each
// rejection is reported and skipped; the batch always runs to completion.
func (e *Engine) Execute(p *portfolio.Portfolio, decisions []Decision, prices map[string]float64, scores map[string]float64) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(decisions))

	for _, d := range decisions {
		var res portfolio.Result

		switch d.Action {
		case ActionSell:
			price, ok := prices[d.FromTicker]
			if !ok {
				if pos, held := p.Position(d.FromTicker); held {
					price, ok = pos.CurrentPrice, true
				}
			}
			if !ok {
				res = portfolio.Result{Reject: portfolio.RejectUnknownPosition}
				break
			}
			res = p.RemovePositionWithReason(d.FromTicker, price, d.Reason)

		case ActionRotate:
			fromPrice, fromOK := prices[d.FromTicker]
			if !fromOK {
				if pos, held := p.Position(d.FromTicker); held {
					fromPrice, fromOK = pos.CurrentPrice, true
				}
			}
			if !fromOK {
				res = portfolio.Result{Reject: portfolio.RejectUnknownPosition}
				break
			}
			toPrice, toOK := prices[d.ToTicker]
			if !toOK || toPrice <= 0 {
				res = portfolio.Result{Reject: portfolio.RejectDegenerateRounding}
				break
			}
			res = p.RotatePosition(d.FromTicker, fromPrice, d.ToTicker, toPrice, scores[d.ToTicker], d.Reason)

		case ActionBuy:
			price, ok := prices[d.ToTicker]
			if !ok {
				res = portfolio.Result{Reject: portfolio.RejectInsufficientFunds}
				break
			}
			res = p.AddPositionWithReason(d.ToTicker, price, d.Shares, d.Score, d.Reason)

		case ActionHold:
			res = portfolio.Result{}

		default:
			res = portfolio.Result{}
		}

		if !res.OK() {
			e.log.Warn().
				Str("action", string(d.Action)).
				Str("from", d.FromTicker).
				Str("to", d.ToTicker).
				Str("reject", string(res.Reject)).
				Msg("decision skipped")
		}
		results = append(results, ExecutionResult{Decision: d, Applied: res.OK(), Reject: res.Reject})
	}

	return results
}
