package models

import (
	"fmt"
	"time"
)

// OpenTrade holds the entry facts of a credit spread. It is created once by
// the trade constructor and never modified.
type OpenTrade struct {
	EntryTime        time.Time `json:"entry_time"`
	Direction        Direction `json:"direction"`
	EntrySpot        float64   `json:"entry_spot"`
	EntryATMStrike   float64   `json:"entry_atm_strike"`
	Leg1Strike       float64   `json:"leg1_strike"`
	Leg2Strike       float64   `json:"leg2_strike"`
	EntryLeg1Price   float64   `json:"entry_leg1_price"`
	EntryLeg2Price   float64   `json:"entry_leg2_price"`
	EntryUnitSpread  float64   `json:"entry_unit_spread"`
	EntryUnitMaxLoss float64   `json:"entry_unit_maxloss"`
	Contracts        int       `json:"contracts"`
	Stoploss         float64   `json:"stoploss"`
}

// ExitFacts are populated exactly once when a position is closed.
type ExitFacts struct {
	ExitTime       time.Time  `json:"exit_time"`
	ExitSpot       float64    `json:"exit_spot"`
	ExitLeg1Price  float64    `json:"exit_leg1_price"`
	ExitLeg2Price  float64    `json:"exit_leg2_price"`
	ExitUnitSpread float64    `json:"exit_unit_spread"`
	ExitReason     ExitReason `json:"exit_reason"`
	UnitPnLGross   float64    `json:"unit_pnl_gross"`
	PnL            float64    `json:"pnl"`
}

// ClosedTrade is a fully populated ledger row.
type ClosedTrade struct {
	OpenTrade
	ExitFacts
}

// Close merges exit facts into an open trade.
func (t OpenTrade) Close(exit ExitFacts) ClosedTrade {
	return ClosedTrade{OpenTrade: t, ExitFacts: exit}
}

// Ledger is the ordered, append-only record of a day's trades.
type Ledger []ClosedTrade

// TotalPnL sums realized P&L over the ledger.
func (l Ledger) TotalPnL() float64 {
	var total float64
	for _, t := range l {
		total += t.PnL
	}
	return total
}

// Validate checks the chronological and exit-reason invariants of a ledger.
func (l Ledger) Validate() error {
	for i, t := range l {
		if !t.ExitReason.Valid() {
			return fmt.Errorf("trade %d: unknown exit reason %q", i, t.ExitReason)
		}
		if t.ExitTime.Before(t.EntryTime) {
			return fmt.Errorf("trade %d: exit %s before entry %s", i, t.ExitTime, t.EntryTime)
		}
		if t.Contracts < 0 {
			return fmt.Errorf("trade %d: negative contracts %d", i, t.Contracts)
		}
		if t.ExitReason == ExitReasonEndOfTime && i != len(l)-1 {
			return fmt.Errorf("trade %d: end_of_time exit is not the last trade", i)
		}
		if i > 0 && t.EntryTime.Before(l[i-1].ExitTime) {
			return fmt.Errorf("trade %d: entry %s overlaps previous exit %s", i, t.EntryTime, l[i-1].ExitTime)
		}
	}
	return nil
}
