// Package postgres stores backtest ledgers in PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/internal/store"
	"spread-backtester/pkg/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pgErrUniqueViolation = "23505"

// ErrDuplicateRun is returned when a run ID has already been stored.
var ErrDuplicateRun = errors.New("backtest run already stored")

// LedgerStore is a ledger sink backed by PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// New connects to dsn, verifies the connection and applies migrations.
func New(ctx context.Context, dsn string, maxConns int) (*LedgerStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &LedgerStore{pool: pool, loc: utils.NewYorkLocation}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts down the connection pool.
func (s *LedgerStore) Close() {
	s.pool.Close()
}

// migrate applies the embedded migrations in name order, skipping those
// already recorded in schema_migrations.
func (s *LedgerStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveLedger stores the run and its trades in one transaction.
func (s *LedgerStore) SaveLedger(ctx context.Context, run models.BacktestRun, ledger models.Ledger) error {
	strategy, err := json.Marshal(run.Strategy)
	if err != nil {
		return fmt.Errorf("encode strategy: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO backtest_runs (id, trade_date, ticker, model, strategy, started_at, trades, net_pnl)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			run.ID, dateOnly(run.Date), run.Ticker, run.Model, strategy, run.StartedAt, run.Trades, run.NetPnL,
		); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, t := range ledger {
			batch.Queue(`
				INSERT INTO backtest_trades (
					run_id, seq, entry_time, direction, entry_spot, entry_atm_strike, leg1_strike, leg2_strike,
					entry_leg1_price, entry_leg2_price, entry_unit_spread, entry_unit_maxloss, contracts, stoploss,
					exit_time, exit_spot, exit_leg1_price, exit_leg2_price, exit_unit_spread, exit_reason,
					unit_pnl_gross, pnl
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
				run.ID, i, t.EntryTime, int(t.Direction), t.EntrySpot, t.EntryATMStrike, t.Leg1Strike, t.Leg2Strike,
				t.EntryLeg1Price, t.EntryLeg2Price, t.EntryUnitSpread, t.EntryUnitMaxLoss, t.Contracts, t.Stoploss,
				t.ExitTime, t.ExitSpot, t.ExitLeg1Price, t.ExitLeg2Price, t.ExitUnitSpread, string(t.ExitReason),
				t.UnitPnLGross, t.PnL,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("run %s: %w", run.ID, ErrDuplicateRun)
		}
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// GetLedger returns the trades of a run in ledger order.
func (s *LedgerStore) GetLedger(ctx context.Context, runID string) (models.Ledger, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM backtest_runs WHERE id = $1)", runID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("look up run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("run %s: %w", runID, apperrors.ErrDataNotFound)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT entry_time, direction, entry_spot, entry_atm_strike, leg1_strike, leg2_strike,
			entry_leg1_price, entry_leg2_price, entry_unit_spread, entry_unit_maxloss, contracts, stoploss,
			exit_time, exit_spot, exit_leg1_price, exit_leg2_price, exit_unit_spread, exit_reason,
			unit_pnl_gross, pnl
		FROM backtest_trades WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	ledger := models.Ledger{}
	for rows.Next() {
		var t models.ClosedTrade
		var direction int
		var reason string
		if err := rows.Scan(&t.EntryTime, &direction, &t.EntrySpot, &t.EntryATMStrike, &t.Leg1Strike, &t.Leg2Strike,
			&t.EntryLeg1Price, &t.EntryLeg2Price, &t.EntryUnitSpread, &t.EntryUnitMaxLoss, &t.Contracts, &t.Stoploss,
			&t.ExitTime, &t.ExitSpot, &t.ExitLeg1Price, &t.ExitLeg2Price, &t.ExitUnitSpread, &reason,
			&t.UnitPnLGross, &t.PnL); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = models.Direction(direction)
		t.ExitReason = models.ExitReason(reason)
		t.EntryTime = t.EntryTime.In(s.loc)
		t.ExitTime = t.ExitTime.In(s.loc)
		ledger = append(ledger, t)
	}
	return ledger, rows.Err()
}

// GetRuns returns stored runs, newest first.
func (s *LedgerStore) GetRuns(ctx context.Context, filter store.RunFilter) ([]models.BacktestRun, error) {
	query := "SELECT id, trade_date, ticker, model, strategy, started_at, trades, net_pnl FROM backtest_runs WHERE 1=1"
	var args []interface{}

	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		query += fmt.Sprintf(" AND ticker = $%d", len(args))
	}
	if !filter.Date.IsZero() {
		args = append(args, dateOnly(filter.Date))
		query += fmt.Sprintf(" AND trade_date = $%d", len(args))
	}
	if filter.Model != nil {
		args = append(args, *filter.Model)
		query += fmt.Sprintf(" AND model = $%d", len(args))
	}
	query += " ORDER BY started_at DESC, model ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.BacktestRun
	for rows.Next() {
		var r models.BacktestRun
		var day time.Time
		var strategy []byte
		if err := rows.Scan(&r.ID, &day, &r.Ticker, &r.Model, &strategy, &r.StartedAt, &r.Trades, &r.NetPnL); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(strategy, &r.Strategy); err != nil {
			return nil, fmt.Errorf("run %s has bad strategy: %w", r.ID, err)
		}
		r.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
		r.StartedAt = r.StartedAt.In(s.loc)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// dateOnly strips the clock so the DATE column stores the trading day
// rather than the UTC day of midnight New York time.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
