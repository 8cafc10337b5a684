package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/logging"
	"spread-backtester/internal/models"
	"spread-backtester/internal/signals"
	"spread-backtester/pkg/utils"
)

// BacktesterConfig holds the settings shared by every simulated day.
type BacktesterConfig struct {
	Ticker   string
	Strategy models.StrategyParameters
	Account  models.AccountParameters
	Workers  int
}

// DayResult is the outcome of one model on one day.
type DayResult struct {
	RunID   string        `json:"run_id"`
	Date    time.Time     `json:"date"`
	Model   signals.Model `json:"model"`
	Ledger  models.Ledger `json:"ledger"`
	Summary Summary       `json:"summary"`
}

// Backtester loads a day from a DaySource, runs the day trader and hands
// the ledger to every sink.
type Backtester struct {
	cfg       BacktesterConfig
	source    DaySource
	sinks     []LedgerSink
	generator *signals.Generator
	logger    zerolog.Logger
}

// NewBacktester creates a backtester.
func NewBacktester(cfg BacktesterConfig, source DaySource, logger zerolog.Logger, sinks ...LedgerSink) *Backtester {
	return &Backtester{
		cfg:       cfg,
		source:    source,
		sinks:     sinks,
		generator: signals.NewGenerator(cfg.Workers),
		logger:    logger,
	}
}

// RunDay simulates one model on date.
func (b *Backtester) RunDay(ctx context.Context, date time.Time, model signals.Model) (*DayResult, error) {
	results, err := b.RunModels(ctx, date, []signals.Model{model})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// RunModels simulates several models on date. Inputs are loaded and
// indicators computed once for all of them.
func (b *Backtester) RunModels(ctx context.Context, date time.Time, grid []signals.Model) ([]*DayResult, error) {
	day := utils.DayStart(date)
	logger := logging.WithTradeDate(b.logger, day)

	snapshots, table, err := b.load(ctx, day)
	if err != nil {
		return nil, err
	}

	results := make([]*DayResult, 0, len(grid))
	for _, model := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := table.Signals(model)
		if err != nil {
			return nil, err
		}

		runID := uuid.New().String()
		runLogger := logging.WithRunID(logger, runID).With().Int("model", model.Number).Logger()

		trader := NewDayTrader(DayTraderOptions{
			Strategy: b.cfg.Strategy,
			Account:  b.cfg.Account,
			Signals:  set,
			Logger:   runLogger,
		})

		startedAt := time.Now()
		ledger, err := trader.Trade(snapshots)
		if err != nil {
			return nil, fmt.Errorf("simulate %s model %d: %w", utils.DateKey(day), model.Number, err)
		}
		if err := ledger.Validate(); err != nil {
			return nil, fmt.Errorf("ledger for model %d: %w", model.Number, err)
		}

		result := &DayResult{
			RunID:   runID,
			Date:    day,
			Model:   model,
			Ledger:  ledger,
			Summary: Summarize(ledger, b.cfg.Account.CommissionDollars),
		}

		run := models.BacktestRun{
			ID:        runID,
			Date:      day,
			Ticker:    b.cfg.Ticker,
			Model:     model.Number,
			Strategy:  b.cfg.Strategy,
			StartedAt: startedAt,
			Trades:    len(ledger),
			NetPnL:    result.Summary.NetPnL,
		}
		for _, sink := range b.sinks {
			if err := sink.SaveLedger(ctx, run, ledger); err != nil {
				return nil, fmt.Errorf("save ledger for run %s: %w", runID, err)
			}
		}

		runLogger.Info().
			Int("trades", result.Summary.Trades).
			Float64("net_pnl", result.Summary.NetPnL).
			Dur("elapsed", time.Since(startedAt)).
			Msg("Backtest day complete")

		results = append(results, result)
	}

	return results, nil
}

func (b *Backtester) load(ctx context.Context, day time.Time) ([]models.OptionChainSnapshot, *signals.Table, error) {
	dateKey := utils.DateKey(day)

	rows, err := b.source.GetOptionChain(ctx, b.cfg.Ticker, day)
	if err != nil {
		return nil, nil, apperrors.NewDataError("options", dateKey, "load option chain", err)
	}
	if len(rows) == 0 {
		return nil, nil, apperrors.NewDataError("options", dateKey, "no option chain rows", apperrors.ErrDataNotFound)
	}

	candles, err := b.source.GetCandles(ctx, b.cfg.Ticker, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, nil, apperrors.NewDataError("stock", dateKey, "load candles", err)
	}
	if len(candles) == 0 {
		return nil, nil, apperrors.NewDataError("stock", dateKey, "no candles", apperrors.ErrDataNotFound)
	}

	table, err := b.generator.Compute(ctx, candles)
	if err != nil {
		return nil, nil, apperrors.NewDataError("stock", dateKey, "compute signals", err)
	}

	return models.GroupSnapshots(rows), table, nil
}
