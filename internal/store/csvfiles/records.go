package csvfiles

import (
	"fmt"
	"time"

	"spread-backtester/internal/models"
)

// TimeLayout is how timestamps are written: wall clock with UTC offset.
const TimeLayout = "2006-01-02 15:04:05-07:00"

type candleRecord struct {
	Datetime string  `csv:"datetime"`
	Open     float64 `csv:"open"`
	High     float64 `csv:"high"`
	Low      float64 `csv:"low"`
	Close    float64 `csv:"close"`
	Volume   int64   `csv:"volume"`
}

type chainRecord struct {
	Strike           float64 `csv:"strike"`
	StockPrice       float64 `csv:"stockPrice"`
	CallDelta        float64 `csv:"callDelta"`
	PutDelta         float64 `csv:"putDelta"`
	CallMidIV        float64 `csv:"callMidIv"`
	PutMidIV         float64 `csv:"putMidIv"`
	CallOpenInterest int64   `csv:"callOpenInterest"`
	CallVolume       int64   `csv:"callVolume"`
	CallBidSize      int64   `csv:"callBidSize"`
	CallAskSize      int64   `csv:"callAskSize"`
	CallBidPrice     float64 `csv:"callBidPrice"`
	CallAskPrice     float64 `csv:"callAskPrice"`
	PutOpenInterest  int64   `csv:"putOpenInterest"`
	PutVolume        int64   `csv:"putVolume"`
	PutBidSize       int64   `csv:"putBidSize"`
	PutAskSize       int64   `csv:"putAskSize"`
	PutBidPrice      float64 `csv:"putBidPrice"`
	PutAskPrice      float64 `csv:"putAskPrice"`
	Time             string  `csv:"time"`
}

type tradeRecord struct {
	EntryTime        string  `csv:"entry_time"`
	Direction        int     `csv:"direction"`
	EntrySpot        float64 `csv:"entry_spot"`
	EntryATMStrike   float64 `csv:"entry_atm_strike"`
	Leg1Strike       float64 `csv:"leg1_strike"`
	Leg2Strike       float64 `csv:"leg2_strike"`
	EntryLeg1Price   float64 `csv:"entry_leg1_price"`
	EntryLeg2Price   float64 `csv:"entry_leg2_price"`
	EntryUnitSpread  float64 `csv:"entry_unit_spread"`
	EntryUnitMaxLoss float64 `csv:"entry_unit_maxloss"`
	Contracts        int     `csv:"contracts"`
	Stoploss         float64 `csv:"stoploss"`
	ExitTime         string  `csv:"exit_time"`
	ExitSpot         float64 `csv:"exit_spot"`
	ExitLeg1Price    float64 `csv:"exit_leg1_price"`
	ExitLeg2Price    float64 `csv:"exit_leg2_price"`
	ExitUnitSpread   float64 `csv:"exit_unit_spread"`
	ExitReason       string  `csv:"exit_reason"`
	UnitPnLGross     float64 `csv:"unit_pnl_gross"`
	PnL              float64 `csv:"pnl"`
}

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.In(loc), nil
}

func toCandleRecord(c models.Candle) candleRecord {
	return candleRecord{
		Datetime: formatTime(c.Timestamp),
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
	}
}

func (r candleRecord) candle(loc *time.Location) (models.Candle, error) {
	ts, err := parseTime(r.Datetime, loc)
	if err != nil {
		return models.Candle{}, err
	}
	return models.Candle{Timestamp: ts, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}, nil
}

func toChainRecord(r models.StrikeRow) chainRecord {
	return chainRecord{
		Strike:           r.Strike,
		StockPrice:       r.StockPrice,
		CallDelta:        r.Call.Delta,
		PutDelta:         r.Put.Delta,
		CallMidIV:        r.Call.MidIV,
		PutMidIV:         r.Put.MidIV,
		CallOpenInterest: r.Call.OpenInterest,
		CallVolume:       r.Call.Volume,
		CallBidSize:      r.Call.BidSize,
		CallAskSize:      r.Call.AskSize,
		CallBidPrice:     r.Call.BidPrice,
		CallAskPrice:     r.Call.AskPrice,
		PutOpenInterest:  r.Put.OpenInterest,
		PutVolume:        r.Put.Volume,
		PutBidSize:       r.Put.BidSize,
		PutAskSize:       r.Put.AskSize,
		PutBidPrice:      r.Put.BidPrice,
		PutAskPrice:      r.Put.AskPrice,
		Time:             formatTime(r.Time),
	}
}

func (c chainRecord) row(loc *time.Location) (models.StrikeRow, error) {
	ts, err := parseTime(c.Time, loc)
	if err != nil {
		return models.StrikeRow{}, err
	}
	return models.StrikeRow{
		Time:       ts,
		Strike:     c.Strike,
		StockPrice: c.StockPrice,
		Call: models.SideQuote{
			MidIV:        c.CallMidIV,
			OpenInterest: c.CallOpenInterest,
			Volume:       c.CallVolume,
			BidSize:      c.CallBidSize,
			AskSize:      c.CallAskSize,
			BidPrice:     c.CallBidPrice,
			AskPrice:     c.CallAskPrice,
			Delta:        c.CallDelta,
		},
		Put: models.SideQuote{
			MidIV:        c.PutMidIV,
			OpenInterest: c.PutOpenInterest,
			Volume:       c.PutVolume,
			BidSize:      c.PutBidSize,
			AskSize:      c.PutAskSize,
			BidPrice:     c.PutBidPrice,
			AskPrice:     c.PutAskPrice,
			Delta:        c.PutDelta,
		},
	}, nil
}

func toTradeRecord(t models.ClosedTrade) tradeRecord {
	return tradeRecord{
		EntryTime:        formatTime(t.EntryTime),
		Direction:        int(t.Direction),
		EntrySpot:        t.EntrySpot,
		EntryATMStrike:   t.EntryATMStrike,
		Leg1Strike:       t.Leg1Strike,
		Leg2Strike:       t.Leg2Strike,
		EntryLeg1Price:   t.EntryLeg1Price,
		EntryLeg2Price:   t.EntryLeg2Price,
		EntryUnitSpread:  t.EntryUnitSpread,
		EntryUnitMaxLoss: t.EntryUnitMaxLoss,
		Contracts:        t.Contracts,
		Stoploss:         t.Stoploss,
		ExitTime:         formatTime(t.ExitTime),
		ExitSpot:         t.ExitSpot,
		ExitLeg1Price:    t.ExitLeg1Price,
		ExitLeg2Price:    t.ExitLeg2Price,
		ExitUnitSpread:   t.ExitUnitSpread,
		ExitReason:       string(t.ExitReason),
		UnitPnLGross:     t.UnitPnLGross,
		PnL:              t.PnL,
	}
}

func (r tradeRecord) trade(loc *time.Location) (models.ClosedTrade, error) {
	entry, err := parseTime(r.EntryTime, loc)
	if err != nil {
		return models.ClosedTrade{}, err
	}
	exit, err := parseTime(r.ExitTime, loc)
	if err != nil {
		return models.ClosedTrade{}, err
	}
	return models.OpenTrade{
		EntryTime:        entry,
		Direction:        models.Direction(r.Direction),
		EntrySpot:        r.EntrySpot,
		EntryATMStrike:   r.EntryATMStrike,
		Leg1Strike:       r.Leg1Strike,
		Leg2Strike:       r.Leg2Strike,
		EntryLeg1Price:   r.EntryLeg1Price,
		EntryLeg2Price:   r.EntryLeg2Price,
		EntryUnitSpread:  r.EntryUnitSpread,
		EntryUnitMaxLoss: r.EntryUnitMaxLoss,
		Contracts:        r.Contracts,
		Stoploss:         r.Stoploss,
	}.Close(models.ExitFacts{
		ExitTime:       exit,
		ExitSpot:       r.ExitSpot,
		ExitLeg1Price:  r.ExitLeg1Price,
		ExitLeg2Price:  r.ExitLeg2Price,
		ExitUnitSpread: r.ExitUnitSpread,
		ExitReason:     models.ExitReason(r.ExitReason),
		UnitPnLGross:   r.UnitPnLGross,
		PnL:            r.PnL,
	}), nil
}
