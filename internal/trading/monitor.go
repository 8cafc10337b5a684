package trading

import (
	"spread-backtester/internal/models"
)

// closingQuotes returns the sold and bought legs of an open trade in snap.
func closingQuotes(snap models.OptionChainSnapshot, trade models.OpenTrade) (sold, bought models.SideQuote, err error) {
	side := trade.Direction.Side()
	leg1, err := RowAtStrike(snap, trade.Leg1Strike)
	if err != nil {
		return sold, bought, err
	}
	leg2, err := RowAtStrike(snap, trade.Leg2Strike)
	if err != nil {
		return sold, bought, err
	}
	return leg1.Quote(side), leg2.Quote(side), nil
}

// CloseCost is the per-unit price of buying the spread back now.
func CloseCost(snap models.OptionChainSnapshot, trade models.OpenTrade) (float64, error) {
	sold, bought, err := closingQuotes(snap, trade)
	if err != nil {
		return 0, err
	}
	return sold.AskPrice - bought.BidPrice, nil
}

// StoplossHit reports whether the cost to close has reached the stoploss.
func StoplossHit(snap models.OptionChainSnapshot, trade models.OpenTrade) (bool, error) {
	cost, err := CloseCost(snap, trade)
	if err != nil {
		return false, err
	}
	return cost >= trade.Stoploss, nil
}

// Close computes the exit facts of trade at snap. Commission is charged per
// contract on both legs at entry and exit.
func Close(snap models.OptionChainSnapshot, trade models.OpenTrade, reason models.ExitReason, commissionDollars float64) (models.ExitFacts, error) {
	sold, bought, err := closingQuotes(snap, trade)
	if err != nil {
		return models.ExitFacts{}, err
	}

	exitSpread := sold.AskPrice - bought.BidPrice
	unitPnL := trade.EntryUnitSpread - exitSpread
	contracts := float64(trade.Contracts)

	return models.ExitFacts{
		ExitTime:       snap.Time,
		ExitSpot:       snap.StockPrice,
		ExitLeg1Price:  sold.AskPrice,
		ExitLeg2Price:  bought.BidPrice,
		ExitUnitSpread: exitSpread,
		ExitReason:     reason,
		UnitPnLGross:   unitPnL,
		PnL:            unitPnL*contracts*100 - commissionDollars*4*contracts,
	}, nil
}
