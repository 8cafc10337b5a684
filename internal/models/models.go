// Package models provides domain models for the credit-spread backtester.
package models

import (
	"fmt"
	"time"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Direction is the side of the market a credit spread expresses.
type Direction int

const (
	// DirectionLong sells a put spread below spot.
	DirectionLong Direction = 1
	// DirectionShort sells a call spread above spot.
	DirectionShort Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Side returns the option side the direction trades.
func (d Direction) Side() OptionSide {
	if d == DirectionShort {
		return Call
	}
	return Put
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonCriteria  ExitReason = "exit_criteria"
	ExitReasonStoploss  ExitReason = "stoploss"
	ExitReasonEndOfTime ExitReason = "end_of_time"
)

// Valid reports whether r is one of the known exit reasons.
func (r ExitReason) Valid() bool {
	switch r {
	case ExitReasonCriteria, ExitReasonStoploss, ExitReasonEndOfTime:
		return true
	}
	return false
}

// StrategyParameters controls strike selection and the stoploss trigger.
type StrategyParameters struct {
	Leg1DollarFromATM      float64 `json:"opt_leg1_dollar_from_atm"`
	Leg2DollarFromLeg1     float64 `json:"opt_leg2_dollar_from_leg1"`
	StoplossPctOfMaxProfit float64 `json:"stoploss_pct_of_maxprofit"`
}

// AccountParameters holds the account-level settings for one simulated day.
type AccountParameters struct {
	AUM               float64
	MaxRisk           float64 // fraction of AUM
	CommissionDollars float64 // per contract, per leg, per side
	Interval          time.Duration
	EntryCutoff       time.Duration // offset from midnight, e.g. 14h30m
}

// MaxRiskDollars is the dollar risk budget for the day.
func (a AccountParameters) MaxRiskDollars() float64 {
	return a.AUM * a.MaxRisk
}
