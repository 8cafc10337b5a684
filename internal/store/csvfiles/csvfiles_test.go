package csvfiles

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spread-backtester/internal/errors"
	"spread-backtester/internal/models"
	"spread-backtester/pkg/utils"
)

var date = time.Date(2023, 3, 1, 0, 0, 0, 0, utils.NewYorkLocation)

func ny(hh, mm int) time.Time {
	return time.Date(2023, 3, 1, hh, mm, 0, 0, utils.NewYorkLocation)
}

type memImporter struct {
	candles []models.Candle
	rows    []models.StrikeRow
}

func (m *memImporter) SaveCandles(_ context.Context, _ string, c []models.Candle) error {
	m.candles = append(m.candles, c...)
	return nil
}

func (m *memImporter) SaveOptionChain(_ context.Context, _ string, r []models.StrikeRow) error {
	m.rows = append(m.rows, r...)
	return nil
}

func TestDir_CandlesRoundTrip(t *testing.T) {
	dir := New(t.TempDir(), nil)
	candles := []models.Candle{
		{Timestamp: ny(7, 30), Open: 400.1, High: 400.5, Low: 399.9, Close: 400.2, Volume: 1200},
		{Timestamp: ny(7, 31), Open: 400.2, High: 400.6, Low: 400.0, Close: 400.4, Volume: 900},
	}
	require.NoError(t, dir.WriteCandles(date, candles))

	data, err := os.ReadFile(dir.StockPath(date))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "datetime,open,high,low,close,volume"))
	assert.Contains(t, string(data), "2023-03-01 07:30:00-05:00")

	got, err := dir.ReadCandles(date)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range candles {
		assert.True(t, candles[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, candles[i].Close, got[i].Close)
		assert.Equal(t, candles[i].Volume, got[i].Volume)
	}
}

func TestDir_OptionChainRoundTrip(t *testing.T) {
	dir := New(t.TempDir(), nil)
	rows := []models.StrikeRow{
		{Time: ny(9, 30), Strike: 405, StockPrice: 400, Put: models.SideQuote{BidPrice: 6, AskPrice: 6.3, Delta: -0.7}},
		{Time: ny(9, 30), Strike: 395, StockPrice: 400, Call: models.SideQuote{BidPrice: 7, AskPrice: 7.2, OpenInterest: 120, MidIV: 0.18}},
	}
	require.NoError(t, dir.WriteOptionChain(date, rows))

	got, err := dir.ReadOptionChain(date)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 405.0, got[0].Strike, "file order kept")
	assert.Equal(t, rows[0].Put, got[0].Put)
	assert.Equal(t, rows[1].Call, got[1].Call)
	assert.Equal(t, 9, got[0].Time.Hour())
}

func TestDir_LedgerRoundTrip(t *testing.T) {
	dir := New(t.TempDir(), nil)
	ledger := models.Ledger{
		models.OpenTrade{
			EntryTime: ny(9, 30), Direction: models.DirectionShort, EntrySpot: 400,
			EntryATMStrike: 400, Leg1Strike: 405, Leg2Strike: 410,
			EntryLeg1Price: 2, EntryLeg2Price: 1, EntryUnitSpread: 1, EntryUnitMaxLoss: 4,
			Contracts: 3, Stoploss: 1.5,
		}.Close(models.ExitFacts{
			ExitTime: ny(10, 0), ExitSpot: 399, ExitLeg1Price: 1.5, ExitLeg2Price: 0.6,
			ExitUnitSpread: 0.9, ExitReason: models.ExitReasonCriteria, UnitPnLGross: 0.1, PnL: 28.2,
		}),
	}

	run := models.BacktestRun{ID: "r", Date: date, Model: 3}
	require.NoError(t, dir.SaveLedger(context.Background(), run, ledger))
	assert.FileExists(t, dir.LedgerPath(date, 3))
	assert.Equal(t, "trades_20230301_m03.csv", LedgerFileName(date, 3))

	got, err := dir.ReadLedger(date, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].EntryTime.Equal(ledger[0].EntryTime))
	assert.Equal(t, models.DirectionShort, got[0].Direction)
	assert.Equal(t, models.ExitReasonCriteria, got[0].ExitReason)
	assert.Equal(t, 28.2, got[0].PnL)
}

func TestEncodeLedger_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeLedger(&buf, models.Ledger{}))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "entry_time,direction,entry_spot,entry_atm_strike,leg1_strike,leg2_strike,"+
		"entry_leg1_price,entry_leg2_price,entry_unit_spread,entry_unit_maxloss,contracts,stoploss,"+
		"exit_time,exit_spot,exit_leg1_price,exit_leg2_price,exit_unit_spread,exit_reason,unit_pnl_gross,pnl", header)

	ledger, err := DecodeLedger(&buf, utils.NewYorkLocation)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestDir_MissingFiles(t *testing.T) {
	dir := New(t.TempDir(), nil)

	_, err := dir.ReadCandles(date)
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
	_, err = dir.ReadOptionChain(date)
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
	_, err = dir.ReadLedger(date, 0)
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestDir_ImportDay(t *testing.T) {
	dir := New(t.TempDir(), nil)
	require.NoError(t, dir.WriteCandles(date, []models.Candle{{Timestamp: ny(7, 30), Close: 400}}))
	require.NoError(t, dir.WriteOptionChain(date, []models.StrikeRow{
		{Time: ny(9, 30), Strike: 400}, {Time: ny(9, 30), Strike: 405},
	}))

	dst := &memImporter{}
	candles, rows, err := dir.ImportDay(context.Background(), dst, "SPY", date)
	require.NoError(t, err)
	assert.Equal(t, 1, candles)
	assert.Equal(t, 2, rows)
	assert.Len(t, dst.rows, 2)
}
