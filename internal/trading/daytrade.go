package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/logging"
	"spread-backtester/internal/models"
	"spread-backtester/internal/signals"
)

const (
	// DefaultEntryCutoff is the session clock time after which no spread is opened.
	DefaultEntryCutoff = 14*time.Hour + 30*time.Minute
	// DefaultInterval is the spacing of tradeable minutes.
	DefaultInterval = time.Minute
)

// DayTraderOptions configures a DayTrader.
type DayTraderOptions struct {
	Strategy models.StrategyParameters
	Account  models.AccountParameters
	Signals  signals.Set
	Logger   zerolog.Logger
}

// DayTrader walks one day of option-chain snapshots and trades at most one
// credit spread at a time.
type DayTrader struct {
	strategy       models.StrategyParameters
	account        models.AccountParameters
	signals        signals.Set
	maxRiskDollars float64
	logger         zerolog.Logger
}

// NewDayTrader creates a day trader, filling in the default interval and
// entry cutoff when they are unset.
func NewDayTrader(opts DayTraderOptions) *DayTrader {
	account := opts.Account
	if account.Interval <= 0 {
		account.Interval = DefaultInterval
	}
	if account.EntryCutoff <= 0 {
		account.EntryCutoff = DefaultEntryCutoff
	}
	return &DayTrader{
		strategy:       opts.Strategy,
		account:        account,
		signals:        opts.Signals,
		maxRiskDollars: account.MaxRiskDollars(),
		logger:         opts.Logger,
	}
}

// Trade runs the day and returns its ledger. Snapshots must be in strictly
// increasing minute order. A rejected entry is not an error; a snapshot
// missing a strike the open trade needs is.
func (d *DayTrader) Trade(snapshots []models.OptionChainSnapshot) (models.Ledger, error) {
	if err := checkSnapshots(snapshots); err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return models.Ledger{}, nil
	}

	ledger := models.Ledger{}
	position := Flat
	var open models.OpenTrade

	prev := snapshots[0].Time.Add(-d.account.Interval)
	for _, snap := range snapshots {
		switch position {
		case Flat:
			if !d.beforeCutoff(snap.Time) {
				break
			}
			trade, opened, err := d.tryEnter(snap)
			if err != nil {
				return nil, err
			}
			if opened {
				open = trade
				position = Position(trade.Direction)
				logging.LogTradeOpened(d.logger, trade)
			}

		case Long, Short:
			exits := d.signals.ExitLong
			if position == Short {
				exits = d.signals.ExitShort
			}
			exitSignal := exits.AnyWithin(prev, snap.Time)
			stopped, err := StoplossHit(snap, open)
			if err != nil {
				return nil, err
			}
			if exitSignal || stopped {
				reason := models.ExitReasonStoploss
				if exitSignal {
					reason = models.ExitReasonCriteria
				}
				closed, err := d.close(snap, open, reason)
				if err != nil {
					return nil, err
				}
				ledger = append(ledger, closed)
				position = Flat
			}

		default:
			panic(fmt.Errorf("%w: %s", ErrInvalidPosition, position))
		}
		prev = snap.Time
	}

	if position != Flat {
		closed, err := d.close(snapshots[len(snapshots)-1], open, models.ExitReasonEndOfTime)
		if err != nil {
			return nil, err
		}
		ledger = append(ledger, closed)
	}

	return ledger, nil
}

// tryEnter evaluates the entry signals observed before snap. Long takes
// precedence; short is only tried when enter-long is false.
func (d *DayTrader) tryEnter(snap models.OptionChainSnapshot) (models.OpenTrade, bool, error) {
	var (
		trade models.OpenTrade
		err   error
		dir   models.Direction
	)
	switch {
	case d.signals.EnterLong.LatestBefore(snap.Time):
		dir = models.DirectionLong
		trade, err = OpenLong(snap, d.strategy, d.maxRiskDollars)
	case d.signals.EnterShort.LatestBefore(snap.Time):
		dir = models.DirectionShort
		trade, err = OpenShort(snap, d.strategy, d.maxRiskDollars)
	default:
		return models.OpenTrade{}, false, nil
	}

	if errors.Is(err, ErrEntryRejected) {
		logging.LogRejection(d.logger, snap.Time, dir, err)
		return models.OpenTrade{}, false, nil
	}
	if err != nil {
		return models.OpenTrade{}, false, err
	}
	return trade, true, nil
}

func (d *DayTrader) close(snap models.OptionChainSnapshot, open models.OpenTrade, reason models.ExitReason) (models.ClosedTrade, error) {
	exit, err := Close(snap, open, reason, d.account.CommissionDollars)
	if err != nil {
		return models.ClosedTrade{}, err
	}
	closed := open.Close(exit)
	logging.LogTradeClosed(d.logger, closed)
	return closed, nil
}

func (d *DayTrader) beforeCutoff(t time.Time) bool {
	clock := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	return clock < d.account.EntryCutoff
}

// checkSnapshots enforces minute alignment and chronological order.
func checkSnapshots(snapshots []models.OptionChainSnapshot) error {
	for i, snap := range snapshots {
		if snap.Time.Second() != 0 || snap.Time.Nanosecond() != 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrMalformedTime, snap.Time.Format(time.RFC3339Nano))
		}
		if i > 0 && !snap.Time.After(snapshots[i-1].Time) {
			return fmt.Errorf("snapshot %d at %s is not after %s", i, snap.Time, snapshots[i-1].Time)
		}
	}
	return nil
}
