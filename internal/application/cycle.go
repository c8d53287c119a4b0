package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/catalyst"
	"github.com/marketmill/rotor/internal/domain/market"
	"github.com/marketmill/rotor/internal/domain/portfolio"
	"github.com/marketmill/rotor/internal/domain/scoring"
	"github.com/marketmill/rotor/internal/engine"
	"github.com/marketmill/rotor/internal/perf"
	"github.com/marketmill/rotor/internal/persistence"
	"github.com/marketmill/rotor/internal/telemetry"
)

// Report summarizes one cycle for logs, persistence and the status API.
type Report struct {
	CycleID   string                   `json:"cycle_id"`
	StartedAt time.Time                `json:"started_at"`
	Duration  time.Duration            `json:"duration"`
	DryRun    bool                     `json:"dry_run"`
	Scores    []scoring.Score          `json:"scores"`
	Decisions []engine.Decision        `json:"decisions"`
	Results   []engine.ExecutionResult `json:"results,omitempty"`
	Snapshot  portfolio.Snapshot       `json:"snapshot"`
	Stats     perf.Stats               `json:"stats"`
}

// Cycle runs one full evaluate-and-execute pass: fetch, scan, score, decide,
// apply, persist. Collaborators marked optional may be nil.
type Cycle struct {
	cfg     Config
	data    DataProvider
	scanner catalyst.Scanner
	scorer  *scoring.Scorer
	engine  *engine.Engine
	tracker *perf.Tracker

	store   persistence.PortfolioStore // optional
	journal persistence.CycleStore     // optional
	metrics *telemetry.Metrics         // optional

	log zerolog.Logger
	now func() time.Time
}

// DataProvider is the slice of the market-data surface a cycle needs.
type DataProvider interface {
	FetchCandles(ctx context.Context, ticker string, days int) (market.Candles, error)
}

// NewCycle assembles a cycle runner.
func NewCycle(cfg Config, data DataProvider, scanner catalyst.Scanner, logger zerolog.Logger) *Cycle {
	return &Cycle{
		cfg:     cfg,
		data:    data,
		scanner: scanner,
		scorer:  scoring.NewScorer(),
		engine:  engine.New(cfg.EngineConfig(), logger),
		tracker: perf.NewTracker(),
		log:     logger.With().Str("component", "cycle").Logger(),
		now:     time.Now,
	}
}

// WithStores attaches persistence collaborators.
func (c *Cycle) WithStores(store persistence.PortfolioStore, journal persistence.CycleStore) *Cycle {
	c.store = store
	c.journal = journal
	return c
}

// WithMetrics attaches the telemetry registry.
func (c *Cycle) WithMetrics(m *telemetry.Metrics) *Cycle {
	c.metrics = m
	return c
}

// WithClock overrides the wall clock.
func (c *Cycle) WithClock(now func() time.Time) *Cycle {
	c.now = now
	return c
}

// Tracker exposes the value series for reporting.
func (c *Cycle) Tracker() *perf.Tracker {
	return c.tracker
}

// Run executes one cycle against the ledger for the watchlist tickers. Held
// tickers are always included so stale positions keep getting marked. A
// per-ticker fetch failure is logged and skipped; Run fails only when no
// market data at all is available.
func (c *Cycle) Run(ctx context.Context, p *portfolio.Portfolio, watchlist []string) (Report, error) {
	started := c.now()
	report := Report{
		CycleID:   uuid.NewString(),
		StartedAt: started,
		DryRun:    c.cfg.DryRun,
	}
	log := c.log.With().Str("cycle_id", report.CycleID).Logger()

	tickers := unionTickers(watchlist, p)
	candles := c.fetchAll(ctx, tickers)
	if len(candles) == 0 {
		c.countCycle("no_data")
		return report, fmt.Errorf("cycle %s: no market data for %d tickers", report.CycleID, len(tickers))
	}

	prices := make(map[string]float64, len(candles))
	ordered := make([]market.Candles, 0, len(candles))
	for _, ticker := range tickers {
		series, ok := candles[ticker]
		if !ok {
			continue
		}
		ordered = append(ordered, series)
		if price := series.LastPrice(); price > 0 {
			prices[ticker] = price
		}
	}

	p.UpdatePrices(prices)

	catalystByTicker := make(map[string]float64, len(ordered))
	for _, sig := range c.scanner.ScanMultiple(ordered) {
		catalystByTicker[sig.Ticker] = sig.AggregatedScore
	}

	scores := make(map[string]float64, len(ordered))
	for _, series := range ordered {
		sc := c.scorer.ScoreTickerWithCandles(series.Ticker, series, catalystByTicker[series.Ticker])
		sc.ExpectedReturn = c.scorer.ApplyMomentumAcceleration(sc.ExpectedReturn)
		scores[sc.Ticker] = sc.ExpectedReturn
		report.Scores = append(report.Scores, sc)
		if p.Holds(sc.Ticker) {
			p.UpdateScore(sc.Ticker, sc.ExpectedReturn)
		}
	}
	sort.Slice(report.Scores, func(i, j int) bool {
		return report.Scores[i].ExpectedReturn > report.Scores[j].ExpectedReturn
	})

	report.Decisions = c.engine.EvaluateWithExits(p, scores, prices, c.exitSignals(p, candles))
	if c.cfg.DryRun {
		log.Info().Int("decisions", len(report.Decisions)).Msg("dry run, decisions not applied")
	} else {
		report.Results = c.engine.Execute(p, report.Decisions, prices, scores)
	}

	c.tracker.Record(c.now(), p.TotalValue())
	report.Snapshot = p.Snapshot()
	report.Stats = c.tracker.Stats(p.Trades())
	report.Duration = c.now().Sub(started)

	c.observe(report)
	c.persist(ctx, report, log)

	log.Info().
		Int("tickers", len(tickers)).
		Int("decisions", len(report.Decisions)).
		Float64("total_value", report.Snapshot.TotalValue).
		Dur("duration", report.Duration).
		Msg("cycle complete")
	return report, nil
}

// ExitScanner is the optional scanner capability for held-position exit
// signals (overbought, bearish crossover, target achieved, sustained
// negative momentum).
type ExitScanner interface {
	ShouldExit(candles market.Candles, consecutiveNegativeDays int) catalyst.ExitCheck
}

// exitSignals collects exit reasons for held tickers when the scanner
// supports exit checks.
func (c *Cycle) exitSignals(p *portfolio.Portfolio, candles map[string]market.Candles) map[string]string {
	es, ok := c.scanner.(ExitScanner)
	if !ok {
		return nil
	}

	exits := make(map[string]string)
	for _, pos := range p.Positions() {
		series, ok := candles[pos.Ticker]
		if !ok {
			continue
		}
		if check := es.ShouldExit(series, trailingDownDays(series.Prices)); check.ShouldExit {
			exits[pos.Ticker] = check.Reason
		}
	}
	return exits
}

// trailingDownDays counts consecutive down-closes at the end of the series.
func trailingDownDays(prices []float64) int {
	down := 0
	for i := len(prices) - 1; i > 0 && prices[i] < prices[i-1]; i-- {
		down++
	}
	return down
}

// fetchAll pulls candles for every ticker concurrently. The provider's own
// throttles serialize the actual network calls.
func (c *Cycle) fetchAll(ctx context.Context, tickers []string) map[string]market.Candles {
	var mu sync.Mutex
	out := make(map[string]market.Candles, len(tickers))

	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			series, err := c.data.FetchCandles(ctx, ticker, c.cfg.HistoryDays)
			if err != nil {
				c.log.Warn().Err(err).Str("ticker", ticker).Msg("candle fetch failed, skipping")
				if c.metrics != nil {
					c.metrics.ProviderErrors.WithLabelValues("fetch_candles").Inc()
				}
				return
			}
			mu.Lock()
			out[ticker] = series
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return out
}

func (c *Cycle) observe(report Report) {
	c.countCycle("ok")
	if c.metrics == nil {
		return
	}
	c.metrics.CycleDuration.Observe(report.Duration.Seconds())
	c.metrics.PortfolioValue.Set(report.Snapshot.TotalValue)
	c.metrics.Cash.Set(report.Snapshot.Cash)
	c.metrics.DrawdownPct.Set(report.Snapshot.MaxDrawdownPct)
	c.metrics.OpenPositions.Set(float64(report.Snapshot.NumPositions))
	for _, res := range report.Results {
		if res.Applied {
			c.metrics.TradesTotal.WithLabelValues(string(res.Decision.Action)).Inc()
		} else {
			c.metrics.RejectsTotal.WithLabelValues(string(res.Reject)).Inc()
		}
	}
}

func (c *Cycle) countCycle(outcome string) {
	if c.metrics != nil {
		c.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	}
}

// persist saves the snapshot and journals the cycle. Storage failures are
// logged, never fatal: the in-memory ledger stays authoritative.
func (c *Cycle) persist(ctx context.Context, report Report, log zerolog.Logger) {
	if c.store != nil && !report.DryRun {
		if err := c.store.Save(ctx, report.Snapshot); err != nil {
			log.Error().Err(err).Msg("snapshot save failed")
		}
	}
	if c.journal == nil {
		return
	}
	applied, rejected := 0, 0
	for _, res := range report.Results {
		if res.Applied {
			applied++
		} else {
			rejected++
		}
	}
	rec := persistence.CycleRecord{
		CycleID:    report.CycleID,
		StartedAt:  report.StartedAt,
		DurationMS: report.Duration.Milliseconds(),
		TotalValue: report.Snapshot.TotalValue,
		Cash:       report.Snapshot.Cash,
		Decisions:  len(report.Decisions),
		Applied:    applied,
		Rejected:   rejected,
		DryRun:     report.DryRun,
	}
	if err := c.journal.RecordCycle(ctx, rec); err != nil {
		log.Error().Err(err).Msg("cycle journal failed")
	}
}

func unionTickers(watchlist []string, p *portfolio.Portfolio) []string {
	seen := make(map[string]bool, len(watchlist))
	out := make([]string, 0, len(watchlist))
	for _, t := range watchlist {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, pos := range p.Positions() {
		if !seen[pos.Ticker] {
			seen[pos.Ticker] = true
			out = append(out, pos.Ticker)
		}
	}
	return out
}
