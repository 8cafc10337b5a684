// Package trading simulates a single-day options credit-spread strategy:
// strike selection, trade construction, position monitoring and the
// per-minute state machine that ties them together.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spread-backtester/internal/models"
)

// DaySource loads the inputs of one simulated day.
type DaySource interface {
	GetOptionChain(ctx context.Context, ticker string, date time.Time) ([]models.StrikeRow, error)
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]models.Candle, error)
}

// LedgerSink persists the ledger of a finished run.
type LedgerSink interface {
	SaveLedger(ctx context.Context, run models.BacktestRun, ledger models.Ledger) error
}

// ErrInvalidPosition marks a position state outside Flat, Long and Short.
var ErrInvalidPosition = errors.New("invalid position state")

// Position is the state of the day trader.
type Position int

const (
	Flat  Position = 0
	Long  Position = Position(models.DirectionLong)
	Short Position = Position(models.DirectionShort)
)

func (p Position) String() string {
	switch p {
	case Flat:
		return "flat"
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Direction returns the trade direction of an open position.
func (p Position) Direction() models.Direction {
	return models.Direction(p)
}
