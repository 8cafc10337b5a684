package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spread-backtester/internal/models"
)

// MinUnitSpread is the smallest credit per unit worth opening.
const MinUnitSpread = 0.01

// ErrEntryRejected matches every soft rejection from OpenLong and OpenShort.
var ErrEntryRejected = errors.New("entry rejected")

// RejectionError describes why a spread was not opened. The day trader
// treats it as a normal outcome and stays flat.
type RejectionError struct {
	Time        time.Time
	Direction   models.Direction
	Reason      string
	UnitSpread  float64
	UnitMaxLoss float64
	CloseCost   float64
	Stoploss    float64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s entry at %s rejected: %s (spread=%.4f maxloss=%.4f close=%.4f stoploss=%.4f)",
		e.Direction, e.Time.Format("15:04"), e.Reason, e.UnitSpread, e.UnitMaxLoss, e.CloseCost, e.Stoploss)
}

func (e *RejectionError) Unwrap() error {
	return ErrEntryRejected
}

// OpenLong builds a credit put spread below spot.
func OpenLong(snap models.OptionChainSnapshot, params models.StrategyParameters, maxRiskDollars float64) (models.OpenTrade, error) {
	return openSpread(snap, params, maxRiskDollars, models.DirectionLong)
}

// OpenShort builds a credit call spread above spot.
func OpenShort(snap models.OptionChainSnapshot, params models.StrategyParameters, maxRiskDollars float64) (models.OpenTrade, error) {
	return openSpread(snap, params, maxRiskDollars, models.DirectionShort)
}

func openSpread(snap models.OptionChainSnapshot, params models.StrategyParameters, maxRiskDollars float64, dir models.Direction) (models.OpenTrade, error) {
	sign := float64(dir)
	side := dir.Side()

	atm, err := NearestStrike(snap, snap.StockPrice)
	if err != nil {
		return models.OpenTrade{}, err
	}
	leg1, err := NearestStrike(snap, atm.Strike-sign*params.Leg1DollarFromATM)
	if err != nil {
		return models.OpenTrade{}, err
	}
	leg2, err := NearestStrike(snap, leg1.Strike-sign*params.Leg2DollarFromLeg1)
	if err != nil {
		return models.OpenTrade{}, err
	}

	sold, bought := leg1.Quote(side), leg2.Quote(side)
	unitSpread := sold.BidPrice - bought.AskPrice
	unitMaxLoss := sign*(leg1.Strike-leg2.Strike) - unitSpread
	stoploss := unitSpread + unitSpread*params.StoplossPctOfMaxProfit
	closeCost := sold.AskPrice - bought.BidPrice

	reject := func(reason string) (models.OpenTrade, error) {
		return models.OpenTrade{}, &RejectionError{
			Time:        snap.Time,
			Direction:   dir,
			Reason:      reason,
			UnitSpread:  unitSpread,
			UnitMaxLoss: unitMaxLoss,
			CloseCost:   closeCost,
			Stoploss:    stoploss,
		}
	}

	switch {
	case unitSpread <= MinUnitSpread:
		return reject("credit too small")
	case unitMaxLoss <= 0:
		return reject("non-positive max loss")
	case closeCost >= stoploss:
		return reject("close cost at or above stoploss")
	}

	return models.OpenTrade{
		EntryTime:        snap.Time,
		Direction:        dir,
		EntrySpot:        snap.StockPrice,
		EntryATMStrike:   atm.Strike,
		Leg1Strike:       leg1.Strike,
		Leg2Strike:       leg2.Strike,
		EntryLeg1Price:   sold.BidPrice,
		EntryLeg2Price:   bought.AskPrice,
		EntryUnitSpread:  round6(unitSpread),
		EntryUnitMaxLoss: round6(unitMaxLoss),
		Contracts:        Contracts(maxRiskDollars, unitMaxLoss),
		Stoploss:         round6(stoploss),
	}, nil
}

// Contracts sizes a spread to half the risk budget, truncated toward zero.
func Contracts(maxRiskDollars, unitMaxLoss float64) int {
	return int(maxRiskDollars / 100 / unitMaxLoss * 0.5)
}

func round6(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}
