// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx. One Store serves the portfolio snapshot, the trade audit trail and
// the cycle journal.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/marketmill/rotor/internal/domain/portfolio"
	"github.com/marketmill/rotor/internal/persistence"
)

const defaultTimeout = 5 * time.Second

// schema is applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS portfolio_state (
	id               INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	created_at       TIMESTAMPTZ NOT NULL,
	initial_capital  DOUBLE PRECISION NOT NULL,
	cash             DOUBLE PRECISION NOT NULL,
	peak_value       DOUBLE PRECISION NOT NULL,
	next_trade_id    BIGINT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
	ticker         TEXT PRIMARY KEY,
	shares         INT NOT NULL CHECK (shares > 0),
	entry_price    DOUBLE PRECISION NOT NULL,
	entry_score    DOUBLE PRECISION NOT NULL,
	entry_time     TIMESTAMPTZ NOT NULL,
	current_price  DOUBLE PRECISION NOT NULL,
	current_score  DOUBLE PRECISION NOT NULL,
	peak_price     DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id           BIGINT PRIMARY KEY,
	executed_at  TIMESTAMPTZ NOT NULL,
	ticker       TEXT NOT NULL,
	trade_type   TEXT NOT NULL,
	price        DOUBLE PRECISION NOT NULL,
	shares       INT NOT NULL,
	total_value  DOUBLE PRECISION NOT NULL,
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	reason       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cycles (
	cycle_id      TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	total_value   DOUBLE PRECISION NOT NULL,
	cash          DOUBLE PRECISION NOT NULL,
	decisions     INT NOT NULL,
	applied       INT NOT NULL,
	rejected      INT NOT NULL,
	dry_run       BOOLEAN NOT NULL,
	error_detail  TEXT NOT NULL DEFAULT ''
);
`

// Store implements PortfolioStore, TradeStore and CycleStore.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

var (
	_ persistence.PortfolioStore = (*Store)(nil)
	_ persistence.TradeStore     = (*Store)(nil)
	_ persistence.CycleStore     = (*Store)(nil)
)

// Connect opens the database, verifies connectivity and ensures the schema.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := NewStore(db, defaultTimeout)
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored state with the snapshot in one transaction, so a
// crash never leaves cash and positions from different cycles.
func (s *Store) Save(ctx context.Context, snap portfolio.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save portfolio: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_state (id, created_at, initial_capital, cash, peak_value, next_trade_id, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			initial_capital = EXCLUDED.initial_capital,
			cash = EXCLUDED.cash,
			peak_value = EXCLUDED.peak_value,
			next_trade_id = EXCLUDED.next_trade_id,
			updated_at = now()`,
		snap.CreatedAt, snap.InitialCapital, snap.Cash, snap.PeakValue, snap.NextTradeID)
	if err != nil {
		return fmt.Errorf("save portfolio: state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("save portfolio: clear positions: %w", err)
	}
	for _, pos := range snap.Positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (ticker, shares, entry_price, entry_score, entry_time, current_price, current_score, peak_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			pos.Ticker, pos.Shares, pos.EntryPrice, pos.EntryScore, pos.EntryTime,
			pos.CurrentPrice, pos.CurrentScore, pos.PeakPrice)
		if err != nil {
			return fmt.Errorf("save portfolio: position %s: %w", pos.Ticker, err)
		}
	}

	for _, tr := range snap.Trades {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trades (id, executed_at, ticker, trade_type, price, shares, total_value, score, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			tr.ID, tr.Timestamp, tr.Ticker, string(tr.Type), tr.Price, tr.Shares, tr.TotalValue, tr.Score, tr.Reason)
		if err != nil {
			return fmt.Errorf("save portfolio: trade %d: %w", tr.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save portfolio: commit: %w", err)
	}
	return nil
}

type stateRow struct {
	CreatedAt      time.Time `db:"created_at"`
	InitialCapital float64   `db:"initial_capital"`
	Cash           float64   `db:"cash"`
	PeakValue      float64   `db:"peak_value"`
	NextTradeID    int64     `db:"next_trade_id"`
}

type positionRow struct {
	Ticker       string    `db:"ticker"`
	Shares       int       `db:"shares"`
	EntryPrice   float64   `db:"entry_price"`
	EntryScore   float64   `db:"entry_score"`
	EntryTime    time.Time `db:"entry_time"`
	CurrentPrice float64   `db:"current_price"`
	CurrentScore float64   `db:"current_score"`
	PeakPrice    float64   `db:"peak_price"`
}

type tradeRow struct {
	ID         int64     `db:"id"`
	ExecutedAt time.Time `db:"executed_at"`
	Ticker     string    `db:"ticker"`
	TradeType  string    `db:"trade_type"`
	Price      float64   `db:"price"`
	Shares     int       `db:"shares"`
	TotalValue float64   `db:"total_value"`
	Score      float64   `db:"score"`
	Reason     string    `db:"reason"`
}

// Load returns the last saved snapshot, or persistence.ErrNotFound when the
// state table is empty.
func (s *Store) Load(ctx context.Context) (portfolio.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var state stateRow
	err := s.db.GetContext(ctx, &state, `
		SELECT created_at, initial_capital, cash, peak_value, next_trade_id
		FROM portfolio_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return portfolio.Snapshot{}, persistence.ErrNotFound
	}
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("load portfolio: state: %w", err)
	}

	var positions []positionRow
	err = s.db.SelectContext(ctx, &positions, `
		SELECT ticker, shares, entry_price, entry_score, entry_time, current_price, current_score, peak_price
		FROM positions ORDER BY ticker`)
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("load portfolio: positions: %w", err)
	}

	var trades []tradeRow
	err = s.db.SelectContext(ctx, &trades, `
		SELECT id, executed_at, ticker, trade_type, price, shares, total_value, score, reason
		FROM trades ORDER BY id`)
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("load portfolio: trades: %w", err)
	}

	snap := portfolio.Snapshot{
		CreatedAt:      state.CreatedAt,
		InitialCapital: state.InitialCapital,
		Cash:           state.Cash,
		PeakValue:      state.PeakValue,
		NextTradeID:    state.NextTradeID,
	}
	for _, row := range positions {
		snap.Positions = append(snap.Positions, portfolio.Position{
			Ticker:       row.Ticker,
			Shares:       row.Shares,
			EntryPrice:   row.EntryPrice,
			EntryScore:   row.EntryScore,
			EntryTime:    row.EntryTime,
			CurrentPrice: row.CurrentPrice,
			CurrentScore: row.CurrentScore,
			PeakPrice:    row.PeakPrice,
		})
	}
	for _, row := range trades {
		snap.Trades = append(snap.Trades, portfolio.Trade{
			ID:         row.ID,
			Timestamp:  row.ExecutedAt,
			Ticker:     row.Ticker,
			Type:       portfolio.TradeType(row.TradeType),
			Price:      row.Price,
			Shares:     row.Shares,
			TotalValue: row.TotalValue,
			Score:      row.Score,
			Reason:     row.Reason,
		})
	}
	snap.NumPositions = len(snap.Positions)
	return snap, nil
}

// Append stores one executed trade, tolerating replays of the same ID.
func (s *Store) Append(ctx context.Context, trade portfolio.Trade) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, executed_at, ticker, trade_type, price, shares, total_value, score, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		trade.ID, trade.Timestamp, trade.Ticker, string(trade.Type),
		trade.Price, trade.Shares, trade.TotalValue, trade.Score, trade.Reason)
	if err != nil {
		return fmt.Errorf("append trade %d: %w", trade.ID, err)
	}
	return nil
}

// History returns trades executed at or after since, oldest first.
func (s *Store) History(ctx context.Context, since time.Time) ([]portfolio.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []tradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, executed_at, ticker, trade_type, price, shares, total_value, score, reason
		FROM trades WHERE executed_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("trade history: %w", err)
	}

	trades := make([]portfolio.Trade, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, portfolio.Trade{
			ID:         row.ID,
			Timestamp:  row.ExecutedAt,
			Ticker:     row.Ticker,
			Type:       portfolio.TradeType(row.TradeType),
			Price:      row.Price,
			Shares:     row.Shares,
			TotalValue: row.TotalValue,
			Score:      row.Score,
			Reason:     row.Reason,
		})
	}
	return trades, nil
}

// RecordCycle journals one cycle summary.
func (s *Store) RecordCycle(ctx context.Context, rec persistence.CycleRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO cycles (cycle_id, started_at, duration_ms, total_value, cash, decisions, applied, rejected, dry_run, error_detail)
		VALUES (:cycle_id, :started_at, :duration_ms, :total_value, :cash, :decisions, :applied, :rejected, :dry_run, :error_detail)
		ON CONFLICT (cycle_id) DO NOTHING`, rec)
	if err != nil {
		return fmt.Errorf("record cycle %s: %w", rec.CycleID, err)
	}
	return nil
}
