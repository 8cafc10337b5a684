package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2023, 3, 1, 9, 30, 0, 0, time.UTC)

func minute(n int) time.Time {
	return day.Add(time.Duration(n) * time.Minute)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "long", DirectionLong.String())
	assert.Equal(t, "short", DirectionShort.String())
	assert.Equal(t, Put, DirectionLong.Side())
	assert.Equal(t, Call, DirectionShort.Side())
	assert.Equal(t, "direction(0)", Direction(0).String())
}

func TestAccountParameters_MaxRiskDollars(t *testing.T) {
	a := AccountParameters{AUM: 100000, MaxRisk: 0.025}
	assert.InDelta(t, 2500, a.MaxRiskDollars(), 1e-9)
}

func TestGroupSnapshots(t *testing.T) {
	rows := []StrikeRow{
		{Time: minute(1), Strike: 400, StockPrice: 401},
		{Time: minute(0), Strike: 405, StockPrice: 400},
		{Time: minute(1), Strike: 395, StockPrice: 401.5},
		{Time: minute(0), Strike: 395, StockPrice: 400},
	}

	snaps := GroupSnapshots(rows)
	require.Len(t, snaps, 2)

	assert.Equal(t, minute(0), snaps[0].Time)
	assert.Equal(t, 400.0, snaps[0].StockPrice)
	assert.Equal(t, []float64{405, 395}, []float64{snaps[0].Rows[0].Strike, snaps[0].Rows[1].Strike}, "native order kept")

	assert.Equal(t, minute(1), snaps[1].Time)
	assert.Equal(t, 401.0, snaps[1].StockPrice, "first row wins")
	assert.Equal(t, 2, snaps[1].Len())

	assert.Len(t, FlattenSnapshots(snaps), 4)
}

func TestStrikeRow_Quote(t *testing.T) {
	row := StrikeRow{Call: SideQuote{BidPrice: 1}, Put: SideQuote{BidPrice: 2}}
	assert.Equal(t, 1.0, row.Quote(Call).BidPrice)
	assert.Equal(t, 2.0, row.Quote(Put).BidPrice)
}

func trade(entry, exit int, reason ExitReason, pnl float64) ClosedTrade {
	return OpenTrade{EntryTime: minute(entry), Direction: DirectionLong, Contracts: 1}.
		Close(ExitFacts{ExitTime: minute(exit), ExitReason: reason, PnL: pnl})
}

func TestLedger_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ledger  Ledger
		wantErr bool
	}{
		{"empty", Ledger{}, false},
		{"sequential", Ledger{trade(0, 5, ExitReasonCriteria, 1), trade(5, 9, ExitReasonEndOfTime, 1)}, false},
		{"exit before entry", Ledger{trade(5, 4, ExitReasonStoploss, 1)}, true},
		{"overlap", Ledger{trade(0, 5, ExitReasonCriteria, 1), trade(4, 9, ExitReasonCriteria, 1)}, true},
		{"end of time not last", Ledger{trade(0, 5, ExitReasonEndOfTime, 1), trade(6, 9, ExitReasonCriteria, 1)}, true},
		{"unknown reason", Ledger{trade(0, 5, ExitReason("margin_call"), 1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ledger.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProperty_SequentialLedgersValidate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("non-overlapping trades form a valid ledger", prop.ForAll(
		func(holds []int, gaps []int, endOfTime bool) bool {
			n := len(holds)
			if len(gaps) < n {
				n = len(gaps)
			}
			ledger := Ledger{}
			clock := 0
			var total float64
			for i := 0; i < n; i++ {
				entry := clock + gaps[i]
				exit := entry + holds[i]
				reason := ExitReasonCriteria
				if i == n-1 && endOfTime {
					reason = ExitReasonEndOfTime
				}
				ledger = append(ledger, trade(entry, exit, reason, float64(i)))
				total += float64(i)
				clock = exit
			}
			return ledger.Validate() == nil && ledger.TotalPnL() == total
		},
		gen.SliceOf(gen.IntRange(0, 30)),
		gen.SliceOf(gen.IntRange(0, 30)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
