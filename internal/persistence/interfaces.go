// Package persistence defines the storage contracts for portfolio state and
// trade history. Implementations live in subpackages (postgres).
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/marketmill/rotor/internal/domain/portfolio"
)

// ErrNotFound is returned when no saved state exists yet.
var ErrNotFound = errors.New("persistence: not found")

// PortfolioStore persists a full ledger snapshot: authoritative state,
// open positions and the trade log, saved and restored as one unit.
type PortfolioStore interface {
	// Save replaces the stored state with the snapshot.
	Save(ctx context.Context, snapshot portfolio.Snapshot) error

	// Load returns the last saved snapshot, or ErrNotFound on first run.
	Load(ctx context.Context) (portfolio.Snapshot, error)
}

// TradeStore appends executed trades for the permanent audit trail, beyond
// the snapshot's bounded in-memory log.
type TradeStore interface {
	Append(ctx context.Context, trade portfolio.Trade) error

	// History returns trades executed at or after since, oldest first.
	History(ctx context.Context, since time.Time) ([]portfolio.Trade, error)
}

// CycleStore records per-cycle summaries for performance reporting.
type CycleStore interface {
	RecordCycle(ctx context.Context, record CycleRecord) error
}

// CycleRecord is one engine cycle's outcome.
type CycleRecord struct {
	CycleID     string    `db:"cycle_id" json:"cycle_id"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	DurationMS  int64     `db:"duration_ms" json:"duration_ms"`
	TotalValue  float64   `db:"total_value" json:"total_value"`
	Cash        float64   `db:"cash" json:"cash"`
	Decisions   int       `db:"decisions" json:"decisions"`
	Applied     int       `db:"applied" json:"applied"`
	Rejected    int       `db:"rejected" json:"rejected"`
	DryRun      bool      `db:"dry_run" json:"dry_run"`
	ErrorDetail string    `db:"error_detail" json:"error_detail,omitempty"`
}
