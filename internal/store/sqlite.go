package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

// SQLiteStore implements DataStore using SQLite. Timestamps are stored as
// unix seconds and read back in the store's location.
type SQLiteStore struct {
	db        *sql.DB
	loc       *time.Location
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

var _ DataStore = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLocation sets the timezone timestamps are returned in.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		loc:       utils.NewYorkLocation,
		syncTimes: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One-minute stock bars
	CREATE TABLE IF NOT EXISTS candles (
		ticker TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (ticker, ts)
	);

	-- One-minute option chain rows; seq keeps the feed's strike order
	CREATE TABLE IF NOT EXISTS option_chain (
		ticker TEXT NOT NULL,
		ts INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		strike REAL NOT NULL,
		stock_price REAL NOT NULL,
		call_mid_iv REAL, call_oi INTEGER, call_volume INTEGER,
		call_bid_size INTEGER, call_ask_size INTEGER,
		call_bid REAL NOT NULL, call_ask REAL NOT NULL, call_delta REAL,
		put_mid_iv REAL, put_oi INTEGER, put_volume INTEGER,
		put_bid_size INTEGER, put_ask_size INTEGER,
		put_bid REAL NOT NULL, put_ask REAL NOT NULL, put_delta REAL,
		PRIMARY KEY (ticker, ts, strike)
	);

	-- Backtest runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		ticker TEXT NOT NULL,
		model INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		trades INTEGER NOT NULL,
		net_pnl REAL NOT NULL
	);

	-- Ledger rows, one per closed spread
	CREATE TABLE IF NOT EXISTS trades (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		entry_time INTEGER NOT NULL,
		direction INTEGER NOT NULL,
		entry_spot REAL NOT NULL,
		entry_atm_strike REAL NOT NULL,
		leg1_strike REAL NOT NULL,
		leg2_strike REAL NOT NULL,
		entry_leg1_price REAL NOT NULL,
		entry_leg2_price REAL NOT NULL,
		entry_unit_spread REAL NOT NULL,
		entry_unit_maxloss REAL NOT NULL,
		contracts INTEGER NOT NULL,
		stoploss REAL NOT NULL,
		exit_time INTEGER NOT NULL,
		exit_spot REAL NOT NULL,
		exit_leg1_price REAL NOT NULL,
		exit_leg2_price REAL NOT NULL,
		exit_unit_spread REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		unit_pnl_gross REAL NOT NULL,
		pnl REAL NOT NULL,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_option_chain_ts ON option_chain(ticker, ts, seq);
	CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).In(s.loc)
}

// dayRange returns [midnight, next midnight) of date's day in the store location.
func (s *SQLiteStore) dayRange(date time.Time) (int64, int64) {
	d := date.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return start.Unix(), start.AddDate(0, 0, 1).Unix()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (ticker, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, ticker, c.Timestamp.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles in [from, to).
func (s *SQLiteStore) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE ticker = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, ticker, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = s.fromUnix(ts)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// ============================================================================
// Option Chain Methods
// ============================================================================

// SaveOptionChain saves chain rows. Each minute present in rows replaces
// the stored chain for that minute, so strikes missing from a new download
// do not survive. Rows of the same minute keep their relative order.
func (s *SQLiteStore) SaveOptionChain(ctx context.Context, ticker string, rows []models.StrikeRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cleared := make(map[int64]bool)
	for _, r := range rows {
		ts := r.Time.Unix()
		if cleared[ts] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM option_chain WHERE ticker = ? AND ts = ?`, ticker, ts); err != nil {
			return fmt.Errorf("failed to clear chain at %d: %w", ts, err)
		}
		cleared[ts] = true
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO option_chain (
			ticker, ts, seq, strike, stock_price,
			call_mid_iv, call_oi, call_volume, call_bid_size, call_ask_size, call_bid, call_ask, call_delta,
			put_mid_iv, put_oi, put_volume, put_bid_size, put_ask_size, put_bid, put_ask, put_delta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	seq := make(map[int64]int)
	for _, r := range rows {
		ts := r.Time.Unix()
		c, p := r.Call, r.Put
		_, err := stmt.ExecContext(ctx, ticker, ts, seq[ts], r.Strike, r.StockPrice,
			c.MidIV, c.OpenInterest, c.Volume, c.BidSize, c.AskSize, c.BidPrice, c.AskPrice, c.Delta,
			p.MidIV, p.OpenInterest, p.Volume, p.BidSize, p.AskSize, p.BidPrice, p.AskPrice, p.Delta)
		if err != nil {
			return fmt.Errorf("failed to insert chain row: %w", err)
		}
		seq[ts]++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetOptionChain retrieves all chain rows of date's trading day.
func (s *SQLiteStore) GetOptionChain(ctx context.Context, ticker string, date time.Time) ([]models.StrikeRow, error) {
	from, to := s.dayRange(date)
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, strike, stock_price,
			call_mid_iv, call_oi, call_volume, call_bid_size, call_ask_size, call_bid, call_ask, call_delta,
			put_mid_iv, put_oi, put_volume, put_bid_size, put_ask_size, put_bid, put_ask, put_delta
		FROM option_chain
		WHERE ticker = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, seq ASC
	`, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query option chain: %w", err)
	}
	defer rows.Close()

	var out []models.StrikeRow
	for rows.Next() {
		var r models.StrikeRow
		var ts int64
		c, p := &r.Call, &r.Put
		if err := rows.Scan(&ts, &r.Strike, &r.StockPrice,
			&c.MidIV, &c.OpenInterest, &c.Volume, &c.BidSize, &c.AskSize, &c.BidPrice, &c.AskPrice, &c.Delta,
			&p.MidIV, &p.OpenInterest, &p.Volume, &p.BidSize, &p.AskSize, &p.BidPrice, &p.AskPrice, &p.Delta); err != nil {
			return nil, fmt.Errorf("failed to scan chain row: %w", err)
		}
		r.Time = s.fromUnix(ts)
		out = append(out, r)
	}

	return out, rows.Err()
}

// GetChainDates lists the trading days with option chain data.
func (s *SQLiteStore) GetChainDates(ctx context.Context, ticker string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ts FROM option_chain WHERE ticker = ? ORDER BY ts ASC
	`, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan chain date: %w", err)
		}
		day := utils.DayStart(s.fromUnix(ts))
		if len(dates) == 0 || !dates[len(dates)-1].Equal(day) {
			dates = append(dates, day)
		}
	}

	return dates, rows.Err()
}

// ============================================================================
// Ledger Methods
// ============================================================================

// SaveLedger records a run and its trades in one transaction.
func (s *SQLiteStore) SaveLedger(ctx context.Context, run models.BacktestRun, ledger models.Ledger) error {
	strategy, err := json.Marshal(run.Strategy)
	if err != nil {
		return fmt.Errorf("failed to encode strategy: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, date, ticker, model, strategy, started_at, trades, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, utils.DateKey(run.Date), run.Ticker, run.Model, string(strategy), run.StartedAt.Unix(), run.Trades, run.NetPnL)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (
			run_id, seq, entry_time, direction, entry_spot, entry_atm_strike, leg1_strike, leg2_strike,
			entry_leg1_price, entry_leg2_price, entry_unit_spread, entry_unit_maxloss, contracts, stoploss,
			exit_time, exit_spot, exit_leg1_price, exit_leg2_price, exit_unit_spread, exit_reason,
			unit_pnl_gross, pnl
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, t := range ledger {
		_, err := stmt.ExecContext(ctx, run.ID, i, t.EntryTime.Unix(), int(t.Direction), t.EntrySpot, t.EntryATMStrike,
			t.Leg1Strike, t.Leg2Strike, t.EntryLeg1Price, t.EntryLeg2Price, t.EntryUnitSpread, t.EntryUnitMaxLoss,
			t.Contracts, t.Stoploss, t.ExitTime.Unix(), t.ExitSpot, t.ExitLeg1Price, t.ExitLeg2Price,
			t.ExitUnitSpread, string(t.ExitReason), t.UnitPnLGross, t.PnL)
		if err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetLedger retrieves the trades of a run in ledger order.
func (s *SQLiteStore) GetLedger(ctx context.Context, runID string) (models.Ledger, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, apperrors.ErrDataNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_time, direction, entry_spot, entry_atm_strike, leg1_strike, leg2_strike,
			entry_leg1_price, entry_leg2_price, entry_unit_spread, entry_unit_maxloss, contracts, stoploss,
			exit_time, exit_spot, exit_leg1_price, exit_leg2_price, exit_unit_spread, exit_reason,
			unit_pnl_gross, pnl
		FROM trades WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	ledger := models.Ledger{}
	for rows.Next() {
		var t models.ClosedTrade
		var entryTS, exitTS int64
		var direction int
		var reason string
		if err := rows.Scan(&entryTS, &direction, &t.EntrySpot, &t.EntryATMStrike, &t.Leg1Strike, &t.Leg2Strike,
			&t.EntryLeg1Price, &t.EntryLeg2Price, &t.EntryUnitSpread, &t.EntryUnitMaxLoss, &t.Contracts, &t.Stoploss,
			&exitTS, &t.ExitSpot, &t.ExitLeg1Price, &t.ExitLeg2Price, &t.ExitUnitSpread, &reason,
			&t.UnitPnLGross, &t.PnL); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.EntryTime = s.fromUnix(entryTS)
		t.ExitTime = s.fromUnix(exitTS)
		t.Direction = models.Direction(direction)
		t.ExitReason = models.ExitReason(reason)
		ledger = append(ledger, t)
	}

	return ledger, rows.Err()
}

// GetRuns retrieves backtest runs, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]models.BacktestRun, error) {
	query := "SELECT id, date, ticker, model, strategy, started_at, trades, net_pnl FROM runs WHERE 1=1"
	args := []interface{}{}

	if filter.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, filter.Ticker)
	}
	if !filter.Date.IsZero() {
		query += " AND date = ?"
		args = append(args, utils.DateKey(filter.Date))
	}
	if filter.Model != nil {
		query += " AND model = ?"
		args = append(args, *filter.Model)
	}

	query += " ORDER BY started_at DESC, model ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.BacktestRun
	for rows.Next() {
		var r models.BacktestRun
		var date, strategy string
		var startedAt int64
		if err := rows.Scan(&r.ID, &date, &r.Ticker, &r.Model, &strategy, &startedAt, &r.Trades, &r.NetPnL); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.Date, err = time.ParseInLocation("20060102", date, s.loc); err != nil {
			return nil, fmt.Errorf("run %s has bad date %q: %w", r.ID, date, err)
		}
		if err := json.Unmarshal([]byte(strategy), &r.Strategy); err != nil {
			return nil, fmt.Errorf("run %s has bad strategy: %w", r.ID, err)
		}
		r.StartedAt = s.fromUnix(startedAt)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync int64
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	t := s.fromUnix(lastSync)
	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return t
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
