package datafeed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/logging"
	"spread-backtester/internal/models"
	"spread-backtester/internal/performance"
	"spread-backtester/internal/store/csvfiles"
	"spread-backtester/pkg/utils"
)

// Sync data types recorded after a successful download.
const (
	SyncStock   = "stock"
	SyncOptions = "options"
)

// UpdaterConfig controls which minutes are downloaded and how fast.
type UpdaterConfig struct {
	Ticker            string
	Interval          time.Duration // spacing of option chain snapshots
	StockFrom         time.Duration
	StockTo           time.Duration
	OptionsFrom       time.Duration
	OptionsTo         time.Duration
	Concurrency       int
	RequestsPerSecond float64
	Retry             utils.RetryConfig
}

// DefaultUpdaterConfig returns the session windows the backtester expects:
// premarket bars for indicator warmup and a chain every five minutes.
func DefaultUpdaterConfig() UpdaterConfig {
	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = []error{apperrors.ErrFeedUnavailable}
	return UpdaterConfig{
		Ticker:            "SPY",
		Interval:          5 * time.Minute,
		StockFrom:         7*time.Hour + 30*time.Minute,
		StockTo:           15 * time.Hour,
		OptionsFrom:       9*time.Hour + 30*time.Minute,
		OptionsTo:         15*time.Hour + time.Minute,
		Concurrency:       4,
		RequestsPerSecond: 5,
		Retry:             retry,
	}
}

// Sink receives downloaded data.
type Sink interface {
	csvfiles.Importer
	SetLastSync(dataType string, t time.Time) error
}

// UpdateOptions selects what UpdateDay downloads.
type UpdateOptions struct {
	Stock   bool
	Options bool
}

// UpdateResult reports what was downloaded.
type UpdateResult struct {
	Date           time.Time `json:"date"`
	Candles        int       `json:"candles"`
	Snapshots      int       `json:"snapshots"`
	Rows           int       `json:"rows"`
	MissingMinutes int       `json:"missing_minutes"`
}

// Updater downloads a trading day and persists it.
type Updater struct {
	cfg     UpdaterConfig
	candles CandleFetcher
	chains  ChainFetcher
	files   *csvfiles.Dir
	sink    Sink
	limiter *performance.RateLimiter
	logger  zerolog.Logger
}

// NewUpdater creates an Updater. files and sink may be nil; whichever is
// set receives the data.
func NewUpdater(cfg UpdaterConfig, candles CandleFetcher, chains ChainFetcher, files *csvfiles.Dir, sink Sink, logger zerolog.Logger) *Updater {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	return &Updater{
		cfg:     cfg,
		candles: candles,
		chains:  chains,
		files:   files,
		sink:    sink,
		limiter: performance.NewRateLimiter(cfg.RequestsPerSecond, cfg.Concurrency),
		logger:  logging.WithOperation(logger, "update"),
	}
}

// UpdateDay downloads date's data and writes it to the configured targets.
func (u *Updater) UpdateDay(ctx context.Context, date time.Time, opts UpdateOptions) (UpdateResult, error) {
	date = utils.DayStart(date)
	result := UpdateResult{Date: date}
	logger := logging.WithTradeDate(u.logger, date)

	if opts.Stock {
		candles, err := u.fetchCandles(ctx, date)
		if err != nil {
			return result, err
		}
		result.Candles = len(candles)
		if err := u.persistCandles(ctx, date, candles); err != nil {
			return result, err
		}
		logger.Info().Int("candles", len(candles)).Msg("Stock data updated")
	}

	if opts.Options {
		rows, snapshots, missing, err := u.fetchChains(ctx, date)
		if err != nil {
			return result, err
		}
		result.Rows, result.Snapshots, result.MissingMinutes = len(rows), snapshots, missing
		if err := u.persistChains(ctx, date, rows); err != nil {
			return result, err
		}
		logger.Info().
			Int("rows", len(rows)).
			Int("snapshots", snapshots).
			Int("missing_minutes", missing).
			Msg("Options data updated")
	}

	return result, nil
}

func (u *Updater) fetchCandles(ctx context.Context, date time.Time) ([]models.Candle, error) {
	if u.candles == nil {
		return nil, fmt.Errorf("stock update: no candle feed configured")
	}
	from, to := utils.At(date, u.cfg.StockFrom), utils.At(date, u.cfg.StockTo)
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	candles, err := utils.RetryWithResult(ctx, u.cfg.Retry, func() ([]models.Candle, error) {
		return u.candles.Intraday(ctx, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("stock update: %w", err)
	}
	return candles, nil
}

// fetchChains downloads every snapshot minute concurrently and returns the
// rows in minute order.
func (u *Updater) fetchChains(ctx context.Context, date time.Time) (rows []models.StrikeRow, snapshots, missing int, err error) {
	if u.chains == nil {
		return nil, 0, 0, fmt.Errorf("options update: no chain feed configured")
	}
	minutes := utils.TradeMinutes(date, u.cfg.OptionsFrom, u.cfg.OptionsTo, u.cfg.Interval)
	results := make([][]models.StrikeRow, len(minutes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)
	for i, minute := range minutes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := u.limiter.Wait(gctx); err != nil {
				return err
			}
			chain, err := utils.RetryWithResult(gctx, u.cfg.Retry, func() ([]models.StrikeRow, error) {
				return u.chains.Chain(gctx, minute)
			})
			if err != nil {
				return fmt.Errorf("options update at %s: %w", minute.Format("15:04"), err)
			}
			results[i] = chain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	for i, chain := range results {
		if len(chain) == 0 {
			missing++
			u.logger.Debug().Time("minute", minutes[i]).Msg("No chain for minute")
			continue
		}
		snapshots++
		rows = append(rows, chain...)
	}
	return rows, snapshots, missing, nil
}

func (u *Updater) persistCandles(ctx context.Context, date time.Time, candles []models.Candle) error {
	if u.files != nil {
		if err := u.files.WriteCandles(date, candles); err != nil {
			return err
		}
	}
	if u.sink != nil {
		if err := u.sink.SaveCandles(ctx, u.cfg.Ticker, candles); err != nil {
			return fmt.Errorf("save candles: %w", err)
		}
		if err := u.sink.SetLastSync(SyncStock, time.Now()); err != nil {
			u.logger.Warn().Err(err).Msg("Failed to record stock sync time")
		}
	}
	return nil
}

func (u *Updater) persistChains(ctx context.Context, date time.Time, rows []models.StrikeRow) error {
	if u.files != nil {
		if err := u.files.WriteOptionChain(date, rows); err != nil {
			return err
		}
	}
	if u.sink != nil {
		if err := u.sink.SaveOptionChain(ctx, u.cfg.Ticker, rows); err != nil {
			return fmt.Errorf("save option chain: %w", err)
		}
		if err := u.sink.SetLastSync(SyncOptions, time.Now()); err != nil {
			u.logger.Warn().Err(err).Msg("Failed to record options sync time")
		}
	}
	return nil
}
