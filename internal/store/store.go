// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"spread-backtester/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Stock candles
	SaveCandles(ctx context.Context, ticker string, candles []models.Candle) error
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)

	// Option chains
	SaveOptionChain(ctx context.Context, ticker string, rows []models.StrikeRow) error
	GetOptionChain(ctx context.Context, ticker string, date time.Time) ([]models.StrikeRow, error)
	GetChainDates(ctx context.Context, ticker string) ([]time.Time, error)

	// Backtest runs and ledgers
	SaveLedger(ctx context.Context, run models.BacktestRun, ledger models.Ledger) error
	GetLedger(ctx context.Context, runID string) (models.Ledger, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]models.BacktestRun, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// RunFilter represents filters for querying backtest runs.
type RunFilter struct {
	Ticker string
	Date   time.Time
	Model  *int
	Limit  int
}
