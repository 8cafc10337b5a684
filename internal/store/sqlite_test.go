package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

func nyTime(hh, mm int) time.Time {
	return time.Date(2023, 3, 1, hh, mm, 0, 0, utils.NewYorkLocation)
}

func chainRow(ts time.Time, strike float64) models.StrikeRow {
	return models.StrikeRow{
		Time:       ts,
		Strike:     strike,
		StockPrice: 400,
		Call:       models.SideQuote{BidPrice: 1, AskPrice: 1.1, OpenInterest: 10, Delta: 0.4},
		Put:        models.SideQuote{BidPrice: 2, AskPrice: 2.1, BidSize: 5, Delta: -0.6},
	}
}

func TestSQLiteStore_OptionChainKeepsNativeOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []models.StrikeRow{
		chainRow(nyTime(9, 30), 405),
		chainRow(nyTime(9, 30), 395),
		chainRow(nyTime(9, 30), 400),
		chainRow(nyTime(9, 31), 400),
		chainRow(time.Date(2023, 3, 2, 9, 30, 0, 0, utils.NewYorkLocation), 400),
	}
	require.NoError(t, store.SaveOptionChain(ctx, "SPY", rows))

	got, err := store.GetOptionChain(ctx, "SPY", nyTime(0, 0))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []float64{405, 395, 400, 400}, []float64{got[0].Strike, got[1].Strike, got[2].Strike, got[3].Strike})
	assert.Equal(t, rows[0].Put, got[0].Put)
	assert.Equal(t, rows[0].Call, got[0].Call)
	assert.True(t, got[0].Time.Equal(nyTime(9, 30)))
	assert.Equal(t, 9, got[0].Time.Hour(), "read back in New York time")

	dates, err := store.GetChainDates(ctx, "SPY")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "20230301", utils.DateKey(dates[0]))
	assert.Equal(t, "20230302", utils.DateKey(dates[1]))
}

func TestSQLiteStore_OptionChainResaveReplacesMinute(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveOptionChain(ctx, "SPY", []models.StrikeRow{
		chainRow(nyTime(9, 30), 390),
		chainRow(nyTime(9, 30), 395),
		chainRow(nyTime(9, 30), 400),
		chainRow(nyTime(9, 31), 390),
	}))

	fresh := chainRow(nyTime(9, 30), 400)
	fresh.Put.BidPrice = 3
	require.NoError(t, store.SaveOptionChain(ctx, "SPY", []models.StrikeRow{
		chainRow(nyTime(9, 30), 395),
		fresh,
	}))

	got, err := store.GetOptionChain(ctx, "SPY", nyTime(0, 0))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{395, 400, 390}, []float64{got[0].Strike, got[1].Strike, got[2].Strike})
	assert.Equal(t, 3.0, got[1].Put.BidPrice)
	assert.True(t, got[2].Time.Equal(nyTime(9, 31)), "other minutes are untouched")

	other, err := store.GetOptionChain(ctx, "QQQ", nyTime(0, 0))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_LedgerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ledger := models.Ledger{
		models.OpenTrade{
			EntryTime:        nyTime(9, 30),
			Direction:        models.DirectionLong,
			EntrySpot:        400,
			EntryATMStrike:   400,
			Leg1Strike:       395,
			Leg2Strike:       390,
			EntryLeg1Price:   2,
			EntryLeg2Price:   1,
			EntryUnitSpread:  1,
			EntryUnitMaxLoss: 4,
			Contracts:        3,
			Stoploss:         1.5,
		}.Close(models.ExitFacts{
			ExitTime:       nyTime(10, 0),
			ExitSpot:       402,
			ExitLeg1Price:  1.5,
			ExitLeg2Price:  0.6,
			ExitUnitSpread: 0.9,
			ExitReason:     models.ExitReasonCriteria,
			UnitPnLGross:   0.1,
			PnL:            28.2,
		}),
	}
	run := models.BacktestRun{
		ID:        "run-1",
		Date:      nyTime(0, 0),
		Ticker:    "SPY",
		Model:     4,
		Strategy:  models.StrategyParameters{Leg1DollarFromATM: 5, Leg2DollarFromLeg1: 5, StoplossPctOfMaxProfit: 0.5},
		StartedAt: nyTime(18, 0),
		Trades:    1,
		NetPnL:    28.2,
	}
	require.NoError(t, store.SaveLedger(ctx, run, ledger))

	got, err := store.GetLedger(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].EntryTime.Equal(ledger[0].EntryTime))
	assert.True(t, got[0].ExitTime.Equal(ledger[0].ExitTime))
	got[0].EntryTime, got[0].ExitTime = ledger[0].EntryTime, ledger[0].ExitTime
	assert.Equal(t, ledger[0], got[0])

	model := 4
	runs, err := store.GetRuns(ctx, RunFilter{Date: nyTime(12, 0), Model: &model})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Strategy, runs[0].Strategy)
	assert.Equal(t, "20230301", utils.DateKey(runs[0].Date))

	other := 5
	runs, err = store.GetRuns(ctx, RunFilter{Model: &other})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = store.GetLedger(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestSQLiteStore_EmptyLedgerIsRecorded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLedger(ctx, models.BacktestRun{ID: "empty", Date: nyTime(0, 0), Ticker: "SPY"}, nil))

	ledger, err := store.GetLedger(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestSQLiteStore_LastSync(t *testing.T) {
	store := newTestStore(t)

	assert.True(t, store.GetLastSync("options").IsZero())

	ts := nyTime(15, 1)
	require.NoError(t, store.SetLastSync("options", ts))
	assert.True(t, store.GetLastSync("options").Equal(ts))
}
