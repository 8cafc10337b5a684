package trading

import (
	"time"

	"github.com/rs/zerolog"

	"spread-backtester/internal/models"
	"spread-backtester/internal/signals"
)

var tradeDay = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return tradeDay.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// quote is one strike of a test chain.
type quote struct {
	strike           float64
	putBid, putAsk   float64
	callBid, callAsk float64
}

func snapshot(hhmm string, stock float64, quotes ...quote) models.OptionChainSnapshot {
	ts := at(hhmm)
	snap := models.OptionChainSnapshot{Time: ts, StockPrice: stock}
	for _, q := range quotes {
		snap.Rows = append(snap.Rows, models.StrikeRow{
			Time:       ts,
			Strike:     q.strike,
			StockPrice: stock,
			Put:        models.SideQuote{BidPrice: q.putBid, AskPrice: q.putAsk},
			Call:       models.SideQuote{BidPrice: q.callBid, AskPrice: q.callAsk},
		})
	}
	return snap
}

// series builds a signal series from "HH:MM" -> value pairs in order.
func series(points ...interface{}) *signals.Series {
	var out []signals.Point
	for i := 0; i < len(points); i += 2 {
		out = append(out, signals.Point{Time: at(points[i].(string)), Value: points[i+1].(bool)})
	}
	return signals.MustSeries(out...)
}

func scenarioStrategy() models.StrategyParameters {
	return models.StrategyParameters{
		Leg1DollarFromATM:      5,
		Leg2DollarFromLeg1:     5,
		StoplossPctOfMaxProfit: 0.5,
	}
}

func scenarioAccount() models.AccountParameters {
	return models.AccountParameters{
		AUM:               100000,
		MaxRisk:           0.025,
		CommissionDollars: 0.15,
		Interval:          time.Minute,
	}
}

func newTrader(set signals.Set) *DayTrader {
	return NewDayTrader(DayTraderOptions{
		Strategy: scenarioStrategy(),
		Account:  scenarioAccount(),
		Signals:  set,
		Logger:   zerolog.Nop(),
	})
}

// entryChain is the 09:30 chain of the reference long scenario.
func entryChain(hhmm string) models.OptionChainSnapshot {
	return snapshot(hhmm, 400,
		quote{strike: 390, putBid: 0.90, putAsk: 1.00},
		quote{strike: 395, putBid: 2.00, putAsk: 2.10},
		quote{strike: 400, putBid: 4.00, putAsk: 4.20},
		quote{strike: 405, putBid: 6.00, putAsk: 6.30},
	)
}

// exitChain prices the long legs at leg1 ask / leg2 bid.
func exitChain(hhmm string, leg1Ask, leg2Bid float64) models.OptionChainSnapshot {
	return snapshot(hhmm, 402,
		quote{strike: 390, putBid: leg2Bid, putAsk: leg2Bid + 0.10},
		quote{strike: 395, putBid: leg1Ask - 0.10, putAsk: leg1Ask},
		quote{strike: 400, putBid: 3.00, putAsk: 3.20},
		quote{strike: 405, putBid: 5.00, putAsk: 5.30},
	)
}
