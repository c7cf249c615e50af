// Package journal persists emitted signals and backtest results to
// Postgres. Writes are best effort from the caller's point of view; the
// pipeline never blocks on the journal.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/quantonic/setforge/internal/backtest"
	"github.com/quantonic/setforge/internal/domain"
)

// ErrDuplicate marks a signal already journaled for the same bar.
var ErrDuplicate = errors.New("journal: duplicate signal")

// Repo wraps the Postgres connection.
type Repo struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open connects and pings within the timeout.
func Open(ctx context.Context, dsn string, timeout time.Duration, log zerolog.Logger) (*Repo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewRepo(db, log), nil
}

// NewRepo wraps an existing connection; tests pass a mock.
func NewRepo(db *sqlx.DB, log zerolog.Logger) *Repo {
	return &Repo{db: db, log: log.With().Str("component", "journal").Logger()}
}

// Close releases the connection pool.
func (r *Repo) Close() error { return r.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id           UUID PRIMARY KEY,
		symbol       TEXT NOT NULL,
		interval     TEXT NOT NULL,
		bar_ts       TIMESTAMPTZ NOT NULL,
		direction    TEXT NOT NULL,
		confidence   DOUBLE PRECISION NOT NULL,
		entry        DOUBLE PRECISION NOT NULL,
		stop_loss    DOUBLE PRECISION NOT NULL,
		take_profit  DOUBLE PRECISION NOT NULL,
		dca_levels   JSONB NOT NULL DEFAULT '[]',
		factors      JSONB NOT NULL DEFAULT '[]',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (symbol, interval, bar_ts, direction)
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id            UUID PRIMARY KEY,
		symbol        TEXT NOT NULL,
		interval      TEXT NOT NULL,
		bars          INTEGER NOT NULL,
		options       JSONB NOT NULL,
		summary       JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS closed_trades (
		id           BIGSERIAL PRIMARY KEY,
		run_id       UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
		symbol       TEXT NOT NULL,
		direction    TEXT NOT NULL,
		open_index   INTEGER NOT NULL,
		close_index  INTEGER NOT NULL,
		open_time    TIMESTAMPTZ NOT NULL,
		close_time   TIMESTAMPTZ NOT NULL,
		avg_entry    DOUBLE PRECISION NOT NULL,
		exit_price   DOUBLE PRECISION NOT NULL,
		quantity     DOUBLE PRECISION NOT NULL,
		pnl          DOUBLE PRECISION NOT NULL,
		r_multiple   DOUBLE PRECISION NOT NULL,
		exit_reason  TEXT NOT NULL,
		fills        JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_symbol_ts ON signals (symbol, bar_ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_run ON closed_trades (run_id)`,
}

// EnsureSchema creates the tables when missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: ensure schema: %w", err)
		}
	}
	return nil
}

// SignalRow is the persisted shape of one emitted signal.
type SignalRow struct {
	ID         string          `db:"id"`
	Symbol     string          `db:"symbol"`
	Interval   string          `db:"interval"`
	BarTS      time.Time       `db:"bar_ts"`
	Direction  string          `db:"direction"`
	Confidence float64         `db:"confidence"`
	Entry      float64         `db:"entry"`
	StopLoss   float64         `db:"stop_loss"`
	TakeProfit float64         `db:"take_profit"`
	DCALevels  json.RawMessage `db:"dca_levels"`
	Factors    json.RawMessage `db:"factors"`
	CreatedAt  time.Time       `db:"created_at"`
}

// InsertSignal journals one setup. A second insert for the same
// (symbol, interval, bar, direction) returns ErrDuplicate.
func (r *Repo) InsertSignal(ctx context.Context, s domain.Setup) error {
	dca, err := json.Marshal(s.DCALevels)
	if err != nil {
		return fmt.Errorf("journal: encode dca levels: %w", err)
	}
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return fmt.Errorf("journal: encode factors: %w", err)
	}

	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signals (id, symbol, interval, bar_ts, direction, confidence, entry, stop_loss, take_profit, dca_levels, factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, s.Symbol, string(s.Interval), s.Timestamp, string(s.Direction),
		s.Confidence, s.Entry, s.StopLoss, s.TakeProfit, dca, factors,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("journal: insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the newest journaled signals, newest first.
func (r *Repo) RecentSignals(ctx context.Context, limit int) ([]SignalRow, error) {
	var rows []SignalRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, symbol, interval, bar_ts, direction, confidence, entry, stop_loss, take_profit, dca_levels, factors, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent signals: %w", err)
	}
	return rows, nil
}

// InsertBacktestRun journals one replay's options and summary, plus its
// closed trades, in one transaction. Returns the run ID.
func (r *Repo) InsertBacktestRun(ctx context.Context, symbol string, tf domain.Timeframe, bars int, opts backtest.Options, res *backtest.Result) (string, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("journal: encode options: %w", err)
	}
	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return "", fmt.Errorf("journal: encode summary: %w", err)
	}

	runID := uuid.NewString()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, symbol, interval, bars, options, summary)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, symbol, string(tf), bars, optsJSON, summaryJSON,
	)
	if err != nil {
		return "", fmt.Errorf("journal: insert run: %w", err)
	}

	for _, t := range res.Trades {
		fills, err := json.Marshal(t.Fills)
		if err != nil {
			return "", fmt.Errorf("journal: encode fills: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO closed_trades (run_id, symbol, direction, open_index, close_index, open_time, close_time, avg_entry, exit_price, quantity, pnl, r_multiple, exit_reason, fills)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			runID, t.Symbol, string(t.Direction), t.OpenIndex, t.CloseIndex,
			t.OpenTime, t.CloseTime, t.AvgEntry, t.ExitPrice, t.Quantity,
			t.PnL, t.RMultiple, string(t.Reason), fills,
		)
		if err != nil {
			return "", fmt.Errorf("journal: insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("journal: commit: %w", err)
	}
	r.log.Info().Str("run_id", runID).Int("trades", len(res.Trades)).Msg("backtest run journaled")
	return runID, nil
}

// SymbolPerformance aggregates closed trades per symbol across every
// journaled run.
type SymbolPerformance struct {
	Symbol   string  `db:"symbol"`
	Trades   int     `db:"trades"`
	Wins     int     `db:"wins"`
	WinRate  float64 `db:"win_rate"`
	TotalPnL float64 `db:"total_pnl"`
	AvgR     float64 `db:"avg_r"`
}

// PerformanceBySymbol reads per-symbol win rate, realized P/L and mean
// R-multiple over all journaled trades, best total P/L first.
func (r *Repo) PerformanceBySymbol(ctx context.Context, limit int) ([]SymbolPerformance, error) {
	var rows []SymbolPerformance
	err := r.db.SelectContext(ctx, &rows, `
		SELECT symbol,
		       COUNT(*)                                AS trades,
		       COUNT(*) FILTER (WHERE pnl > 0)         AS wins,
		       COUNT(*) FILTER (WHERE pnl > 0)::float / COUNT(*) AS win_rate,
		       SUM(pnl)                                AS total_pnl,
		       AVG(r_multiple)                         AS avg_r
		FROM closed_trades
		GROUP BY symbol
		ORDER BY total_pnl DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: performance by symbol: %w", err)
	}
	return rows, nil
}

// Ping verifies connectivity for health checks.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal: ping: %w", err)
	}
	return nil
}
